// Package gateway encapsule le prestataire de paiement (sessions de checkout,
// webhooks signés, remboursements).
package gateway

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, order *models.Order, payment *models.Payment, meta Metadata) (*CheckoutSession, error)
	VerifyWebhook(payload []byte, signature string) (*Event, error)
	GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
	Refund(ctx context.Context, paymentIntentID string, amount decimal.Decimal, reason string) (string, error)
}

const (
	SessionOpen     = "open"
	SessionComplete = "complete"
	SessionExpired  = "expired"

	PaymentPaid   = "paid"
	PaymentUnpaid = "unpaid"
)

type CheckoutSession struct {
	ID              string
	URL             string
	Status          string
	PaymentStatus   string
	PaymentIntentID string
	Metadata        map[string]string
}

// Paid indique une session terminée dont les fonds sont capturés.
func (s *CheckoutSession) Paid() bool {
	return s.Status == SessionComplete && s.PaymentStatus == PaymentPaid
}

// Event est un événement webhook vérifié. Session est nil pour les types non gérés.
type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

const (
	EventSessionCompleted      = string(stripe.EventTypeCheckoutSessionCompleted)
	EventAsyncPaymentSucceeded = string(stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded)
	EventAsyncPaymentFailed    = string(stripe.EventTypeCheckoutSessionAsyncPaymentFailed)
	EventSessionExpired        = string(stripe.EventTypeCheckoutSessionExpired)
)

var sessionEvents = map[string]bool{
	EventSessionCompleted:      true,
	EventAsyncPaymentSucceeded: true,
	EventAsyncPaymentFailed:    true,
	EventSessionExpired:        true,
}

// Metadata relie une session distante aux entités internes.
type Metadata struct {
	OrderID           string
	PaymentID         string
	UserID            string
	ShippingAddressID string
	TotalAmount       decimal.Decimal
	Items             []models.OrderItem
	PaymentMode       models.PaymentMode
}

// Limites des métadonnées côté Stripe.
const (
	maxMetadataValue  = 500
	maxMetadataKeys   = 50
	fixedMetadataKeys = 6
)

// Clés des lignes : items si elles tiennent dans une valeur, sinon items_0..n.
// itemsOmitted porte le nombre de lignes quand même le découpage ne suffit pas.
const (
	itemsKey        = "items"
	itemsChunkKey   = "items_"
	itemsOmittedKey = "itemsOmitted"
)

type metadataItem struct {
	ProductID string          `json:"p"`
	ListingID string          `json:"l"`
	VendorID  string          `json:"v"`
	Quantity  int             `json:"q"`
	UnitPrice decimal.Decimal `json:"u"`
}

func NewMetadata(order *models.Order, payment *models.Payment) Metadata {
	return Metadata{
		OrderID:           order.ID,
		PaymentID:         payment.ID,
		UserID:            order.BuyerID,
		ShippingAddressID: order.ShippingAddressID,
		TotalAmount:       order.TotalAmount,
		Items:             order.Items,
		PaymentMode:       order.PaymentMode,
	}
}

// ItemsFit indique si les lignes tiennent dans les métadonnées, découpées au besoin.
func (m Metadata) ItemsFit() bool {
	_, ok := splitItems(m.compactItems())
	return ok
}

func (m Metadata) compactItems() []metadataItem {
	compact := make([]metadataItem, 0, len(m.Items))
	for _, item := range m.Items {
		compact = append(compact, metadataItem{
			ProductID: item.ProductID,
			ListingID: item.ListingID,
			VendorID:  item.VendorID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return compact
}

// splitItems respecte aussi le nombre de clés : les clés fixes plus une par morceau.
func splitItems(compact []metadataItem) ([]string, bool) {
	chunks, ok := packItems(compact)
	if !ok || fixedMetadataKeys+len(chunks) > maxMetadataKeys {
		return nil, false
	}
	return chunks, true
}

func (m Metadata) ToMap() map[string]string {
	out := map[string]string{
		"orderId":           m.OrderID,
		"paymentId":         m.PaymentID,
		"userId":            m.UserID,
		"shippingAddressId": m.ShippingAddressID,
		"totalAmount":       m.TotalAmount.StringFixed(2),
		"paymentMode":       string(m.PaymentMode),
	}
	chunks, ok := splitItems(m.compactItems())
	switch {
	case !ok:
		// la commande reste la source des lignes
		out[itemsOmittedKey] = strconv.Itoa(len(m.Items))
	case len(chunks) == 1:
		out[itemsKey] = chunks[0]
	default:
		for i, chunk := range chunks {
			out[itemsChunkKey+strconv.Itoa(i)] = chunk
		}
	}
	return out
}

// packItems regroupe les lignes en tableaux JSON d'au plus maxMetadataValue
// octets. ok vaut false si une ligne seule dépasse la limite.
func packItems(items []metadataItem) (chunks []string, ok bool) {
	if len(items) == 0 {
		return []string{"[]"}, true
	}
	var (
		current []metadataItem
		encoded string
	)
	for _, item := range items {
		raw, err := json.Marshal(append(current, item))
		if err != nil {
			return nil, false
		}
		if len(raw) <= maxMetadataValue {
			current = append(current, item)
			encoded = string(raw)
			continue
		}
		if len(current) == 0 {
			return nil, false
		}
		chunks = append(chunks, encoded)
		raw, err = json.Marshal([]metadataItem{item})
		if err != nil || len(raw) > maxMetadataValue {
			return nil, false
		}
		current = []metadataItem{item}
		encoded = string(raw)
	}
	return append(chunks, encoded), true
}

func itemChunks(md map[string]string) []string {
	if v := md[itemsKey]; v != "" {
		return []string{v}
	}
	var chunks []string
	for i := 0; ; i++ {
		v, ok := md[itemsChunkKey+strconv.Itoa(i)]
		if !ok {
			return chunks
		}
		chunks = append(chunks, v)
	}
}

// ParseMetadata échoue si orderId, paymentId ou userId manque.
func ParseMetadata(md map[string]string) (Metadata, error) {
	m := Metadata{
		OrderID:           strings.TrimSpace(md["orderId"]),
		PaymentID:         strings.TrimSpace(md["paymentId"]),
		UserID:            strings.TrimSpace(md["userId"]),
		ShippingAddressID: md["shippingAddressId"],
		PaymentMode:       models.PaymentMode(md["paymentMode"]),
	}
	var missing []string
	if m.OrderID == "" {
		missing = append(missing, "orderId")
	}
	if m.PaymentID == "" {
		missing = append(missing, "paymentId")
	}
	if m.UserID == "" {
		missing = append(missing, "userId")
	}
	if len(missing) > 0 {
		return m, apperr.Validation("missing metadata: " + strings.Join(missing, ", "))
	}

	if v := md["totalAmount"]; v != "" {
		total, err := decimal.NewFromString(v)
		if err != nil {
			return m, apperr.Validation("invalid metadata totalAmount")
		}
		m.TotalAmount = total
	}
	for _, v := range itemChunks(md) {
		var compact []metadataItem
		if err := json.Unmarshal([]byte(v), &compact); err != nil {
			return m, apperr.Validation("invalid metadata items")
		}
		for _, c := range compact {
			m.Items = append(m.Items, models.OrderItem{
				ProductID:  c.ProductID,
				ListingID:  c.ListingID,
				VendorID:   c.VendorID,
				Quantity:   c.Quantity,
				UnitPrice:  c.UnitPrice,
				TotalPrice: c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity))),
			})
		}
	}
	return m, nil
}

// VerifyPayload contrôle la signature sur le corps brut puis décode l'événement.
func VerifyPayload(payload []byte, signature, secret string) (*Event, error) {
	raw, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperr.Security("invalid signature", err)
	}
	return parseEvent(raw)
}

func parseEvent(raw stripe.Event) (*Event, error) {
	ev := &Event{ID: raw.ID, Type: string(raw.Type)}
	if !sessionEvents[ev.Type] || raw.Data == nil {
		return ev, nil
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(raw.Data.Raw, &s); err != nil {
		return nil, apperr.Validation("invalid checkout session payload")
	}
	ev.Session = fromStripe(&s)
	return ev, nil
}

func fromStripe(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}
