package gateway

import (
	"context"
	"time"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/config"
	"cedra_orders/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/refund"
)

// Stripe refuse une expiration à moins de 30 minutes.
const minSessionLifetime = 31 * time.Minute

// Stripe utilise la clé globale stripe.Key, positionnée au démarrage.
type Stripe struct {
	cfg config.StripeConfig
	ttl time.Duration
}

func NewStripe(cfg config.StripeConfig, sessionTTL time.Duration) *Stripe {
	stripe.Key = cfg.SecretKey
	if sessionTTL < minSessionLifetime {
		sessionTTL = minSessionLifetime
	}
	return &Stripe{cfg: cfg, ttl: sessionTTL}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, order *models.Order, payment *models.Payment, meta Metadata) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(order.ID),
		ExpiresAt:         stripe.Int64(time.Now().Add(s.ttl).Unix()),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"orderId": order.ID, "paymentId": payment.ID},
		},
	}
	for _, item := range order.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.cfg.Currency),
				UnitAmount: stripe.Int64(models.ToCents(item.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(lineName(item)),
				},
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	for k, v := range meta.ToMap() {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	// une nouvelle tentative réseau ne crée pas une seconde session
	params.SetIdempotencyKey("checkout-" + payment.ID)

	sess, err := session.New(params)
	if err != nil {
		return nil, apperr.External("payment gateway unavailable", err)
	}
	return fromStripe(sess), nil
}

func (s *Stripe) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	return VerifyPayload(payload, signature, s.cfg.WebhookSecret)
}

func (s *Stripe) GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(sessionID, params)
	if err != nil {
		return nil, apperr.External("payment gateway unavailable", err)
	}
	return fromStripe(sess), nil
}

func (s *Stripe) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := session.Expire(sessionID, params); err != nil {
		return apperr.External("payment gateway unavailable", err)
	}
	return nil
}

func (s *Stripe) Refund(ctx context.Context, paymentIntentID string, amount decimal.Decimal, reason string) (string, error) {
	if reason == "" {
		reason = string(stripe.RefundReasonRequestedByCustomer)
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(models.ToCents(amount)),
		Reason:        stripe.String(reason),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + paymentIntentID)

	r, err := refund.New(params)
	if err != nil {
		return "", apperr.External("refund failed", err)
	}
	return r.ID, nil
}

func lineName(item models.OrderItem) string {
	if item.ListingID != "" {
		return "Article " + item.ListingID
	}
	return "Produit " + item.ProductID
}
