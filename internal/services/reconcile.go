package services

import (
	"context"
	"errors"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/gateway"
	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"

	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeConfirmed      Outcome = "confirmed"
	OutcomeRefundRequired Outcome = "refund_required"
	OutcomeRefunded       Outcome = "refunded"
	OutcomeExpired        Outcome = "expired"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeIgnored        Outcome = "ignored"
)

// Reconciler applique les résultats de paiement annoncés par la passerelle.
// Chaque événement est réclamé par son identifiant avant d'être appliqué.
type Reconciler struct {
	orders    *OrderService
	processed repository.ProcessedEventStore
}

func NewReconciler(orders *OrderService, processed repository.ProcessedEventStore) *Reconciler {
	return &Reconciler{orders: orders, processed: processed}
}

// HandleWebhook vérifie la signature sur le corps brut puis traite l'événement.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	ev, err := r.orders.Gateway.VerifyWebhook(payload, signature)
	if err != nil {
		return "", err
	}
	return r.HandleEvent(ctx, ev)
}

func (r *Reconciler) HandleEvent(ctx context.Context, ev *gateway.Event) (Outcome, error) {
	log := r.orders.Log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	if ev.Session == nil {
		log.Debug("événement ignoré")
		return OutcomeIgnored, nil
	}

	claimed, err := r.processed.Claim(ctx, ev.ID)
	if err != nil {
		return "", err
	}
	if !claimed {
		log.Info("événement déjà traité")
		return OutcomeDuplicate, nil
	}

	outcome, err := r.apply(ctx, ev)
	if err != nil {
		// une erreur de validation ne se corrigera pas à la relivraison
		if apperr.Is(err, apperr.KindValidation) {
			if cerr := r.processed.Complete(ctx, ev.ID); cerr != nil {
				log.Warn("clôture événement", zap.Error(cerr))
			}
			log.Warn("événement rejeté", zap.Error(err))
			return "", err
		}
		if rerr := r.processed.Release(ctx, ev.ID); rerr != nil {
			log.Warn("libération événement", zap.Error(rerr))
		}
		log.Error("réconciliation échouée", zap.Error(err))
		return "", err
	}

	if err := r.processed.Complete(ctx, ev.ID); err != nil {
		log.Warn("clôture événement", zap.Error(err))
	}
	log.Info("événement appliqué", zap.String("outcome", string(outcome)), zap.String("session_id", ev.Session.ID))
	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, ev *gateway.Event) (Outcome, error) {
	switch ev.Type {
	case gateway.EventSessionCompleted:
		// paiement asynchrone (virement) : on attend async_payment_succeeded
		if !ev.Session.Paid() {
			return OutcomeIgnored, nil
		}
		return r.ApplySuccess(ctx, ev.Session)
	case gateway.EventAsyncPaymentSucceeded:
		return r.ApplySuccess(ctx, ev.Session)
	case gateway.EventSessionExpired, gateway.EventAsyncPaymentFailed:
		meta, err := gateway.ParseMetadata(ev.Session.Metadata)
		if err != nil {
			return "", err
		}
		return r.ExpirePayment(ctx, meta.PaymentID, meta.OrderID)
	}
	return OutcomeIgnored, nil
}

// ApplySuccess confirme paiement et commande. Les effets de bord (purge du
// panier, facture, e-mail) ne partent que si la commande vient d'être confirmée.
func (r *Reconciler) ApplySuccess(ctx context.Context, sess *gateway.CheckoutSession) (Outcome, error) {
	s := r.orders
	meta, err := gateway.ParseMetadata(sess.Metadata)
	if err != nil {
		return "", err
	}

	var payment *models.Payment
	err = retryOnConflict(ctx, func() error {
		p, err := s.Payments.Get(ctx, meta.PaymentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Validation("unknown payment " + meta.PaymentID)
			}
			return err
		}
		if p.OrderID != meta.OrderID {
			return apperr.Validation("payment does not belong to order")
		}
		payment = p
		if p.Status == models.PaymentSuccess {
			return nil
		}
		p.Status = models.PaymentSuccess
		if sess.PaymentIntentID != "" {
			p.TransactionID = sess.PaymentIntentID
		}
		p.UpdatedAt = s.Now()
		return s.Payments.Update(ctx, p)
	})
	if err != nil {
		return "", err
	}

	var (
		order          *models.Order
		confirmed      bool
		refundRequired bool
	)
	err = retryOnConflict(ctx, func() error {
		o, err := s.Orders.Get(ctx, meta.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Validation("unknown order " + meta.OrderID)
			}
			return err
		}
		if o.BuyerID != meta.UserID {
			return apperr.Validation("metadata user does not own order")
		}
		order = o
		confirmed, refundRequired = false, false

		switch {
		case o.Status == models.OrderPending:
			o.Status = models.OrderConfirmed
			confirmed = true
		case o.Status == models.OrderCanceled && o.PaymentStatus != models.PaymentSuccess:
			refundRequired = true
		case o.PaymentStatus == models.PaymentSuccess:
			return nil
		}
		o.PaymentStatus = models.PaymentSuccess
		o.UpdatedAt = s.Now()
		return s.Orders.Update(ctx, o)
	})
	if err != nil {
		return "", err
	}

	switch {
	case confirmed:
		s.clearCart(ctx, order.BuyerID, order.ID)
		s.Notifier.OrderConfirmed(order)
		return OutcomeConfirmed, nil
	case refundRequired:
		if s.compensate(ctx, order, payment) {
			return OutcomeRefunded, nil
		}
		return OutcomeRefundRequired, nil
	}
	return OutcomeAlreadyApplied, nil
}

// ExpirePayment marque le paiement en échec et annule la commande si elle
// attend encore son paiement.
func (r *Reconciler) ExpirePayment(ctx context.Context, paymentID, orderID string) (Outcome, error) {
	s := r.orders
	if _, err := s.failPayment(ctx, paymentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.Validation("unknown payment " + paymentID)
		}
		return "", err
	}

	var canceled *models.Order
	err := retryOnConflict(ctx, func() error {
		o, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Validation("unknown order " + orderID)
			}
			return err
		}
		if o.Status != models.OrderPending || o.PaymentStatus == models.PaymentSuccess {
			canceled = nil
			return nil
		}
		o.Status = models.OrderCanceled
		o.PaymentStatus = models.PaymentFailed
		o.UpdatedAt = s.Now()
		if err := s.Orders.Update(ctx, o); err != nil {
			return err
		}
		canceled = o
		return nil
	})
	if err != nil {
		return "", err
	}
	if canceled == nil {
		return OutcomeAlreadyApplied, nil
	}
	s.Log.Info("paiement expiré, commande annulée", zap.String("order_id", orderID), zap.String("payment_id", paymentID))
	s.Notifier.OrderCancelled(canceled, false)
	return OutcomeExpired, nil
}
