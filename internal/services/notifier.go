package services

import (
	"context"

	"cedra_orders/internal/events"
	"cedra_orders/internal/models"
	"cedra_orders/internal/outbound"
	"cedra_orders/internal/repository"
	"cedra_orders/internal/utils"

	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, e utils.Email) error
}

type OrderIndex interface {
	Index(ctx context.Context, order *models.Order) error
}

type NotifierDeps struct {
	Dispatcher *outbound.Dispatcher
	Publisher  events.Publisher
	Mailer     Mailer     // optionnel
	Index      OrderIndex // optionnel
	Users      repository.UserRepository
	Log        *zap.Logger
}

// Notifier regroupe les effets de bord secondaires d'une commande. Chaque
// méthode soumet des tâches au dispatcher et retourne immédiatement.
type Notifier struct {
	d NotifierDeps
}

func NewNotifier(d NotifierDeps) *Notifier {
	return &Notifier{d: d}
}

func (n *Notifier) OrderCreated(order *models.Order) {
	n.publish(models.EventOrderCreated, order, map[string]string{
		"paymentMode": string(order.PaymentMode),
		"totalAmount": order.TotalAmount.StringFixed(2),
	})
	n.index(order)
}

// OrderConfirmed envoie l'e-mail de confirmation et demande la facture.
func (n *Notifier) OrderConfirmed(order *models.Order) {
	snapshot := order.Clone()
	if n.d.Mailer != nil {
		n.d.Dispatcher.Submit("email.confirmation", func(ctx context.Context) error {
			user, err := n.d.Users.Get(ctx, snapshot.BuyerID)
			if err != nil {
				return err
			}
			html, err := utils.OrderConfirmationHTML(snapshot, user.Name)
			if err != nil {
				return err
			}
			return n.d.Mailer.Send(ctx, utils.Email{
				To:      user.Email,
				Subject: "Confirmation de votre commande Cedra",
				HTML:    html,
			})
		})
	}
	n.publish(models.EventInvoiceGenerate, snapshot, nil)
	n.index(snapshot)
}

func (n *Notifier) OrderCancelled(order *models.Order, refund bool) {
	snapshot := order.Clone()
	n.publish(models.EventOrderCancelled, snapshot, nil)
	if n.d.Mailer != nil {
		n.d.Dispatcher.Submit("email.cancellation", func(ctx context.Context) error {
			user, err := n.d.Users.Get(ctx, snapshot.BuyerID)
			if err != nil {
				return err
			}
			html, err := utils.CancellationHTML(snapshot, refund)
			if err != nil {
				return err
			}
			return n.d.Mailer.Send(ctx, utils.Email{To: user.Email, Subject: "Commande annulée", HTML: html})
		})
	}
	n.index(snapshot)
}

// RefundRequired signale un paiement capturé que la passerelle n'a pas pu rembourser.
func (n *Notifier) RefundRequired(order *models.Order, payment *models.Payment) {
	n.d.Log.Warn("remboursement à traiter manuellement",
		zap.String("order_id", order.ID), zap.String("payment_id", payment.ID))
	n.publish(models.EventRefundRequired, order, map[string]string{
		"paymentId":       payment.ID,
		"paymentIntentId": payment.TransactionID,
		"amount":          payment.Amount.StringFixed(2),
	})
	n.index(order)
}

func (n *Notifier) OrderReturned(order *models.Order, returnID string) {
	n.publish(models.EventOrderReturned, order, map[string]string{"returnId": returnID})
	n.index(order)
}

func (n *Notifier) OrderRefunded(order *models.Order, refundID string) {
	n.publish(models.EventOrderRefunded, order, map[string]string{"refundId": refundID})
	n.index(order)
}

func (n *Notifier) OrderUpdated(order *models.Order) {
	n.index(order)
}

// Retry soumet une tâche de rattrapage (purge de panier, etc.).
func (n *Notifier) Retry(name string, fn outbound.Task) {
	n.d.Dispatcher.Submit(name, fn)
}

func (n *Notifier) publish(typ string, order *models.Order, data map[string]string) {
	if n.d.Publisher == nil {
		return
	}
	ev := models.Event{Type: typ, OrderID: order.ID, UserID: order.BuyerID, Data: data}
	n.d.Dispatcher.Submit("event."+typ, func(ctx context.Context) error {
		return n.d.Publisher.Publish(ctx, ev)
	})
}

func (n *Notifier) index(order *models.Order) {
	if n.d.Index == nil {
		return
	}
	snapshot := order.Clone()
	n.d.Dispatcher.Submit("index.order", func(ctx context.Context) error {
		return n.d.Index.Index(ctx, snapshot)
	})
}
