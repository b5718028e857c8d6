package services

import (
	"context"
	"strings"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ReturnApprove = "approve"
	ReturnReject  = "reject"

	RefundReasonCustomer = "requested_by_customer"
	ManualRefundPrefix   = "manual_"
)

type ReturnService struct {
	orders  *OrderService
	returns repository.ReturnRepository
}

func NewReturnService(orders *OrderService, returns repository.ReturnRepository) *ReturnService {
	return &ReturnService{orders: orders, returns: returns}
}

// RequestReturn ouvre une demande de retour sur une commande livrée.
func (s *ReturnService) RequestReturn(ctx context.Context, orderID, userID, reason string) (*models.ReturnRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	order, err := s.orders.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "order not found")
	}
	if order.BuyerID != userID {
		return nil, apperr.Forbidden("order does not belong to user")
	}
	if order.Status != models.OrderDelivered {
		return nil, apperr.Conflict("only delivered orders can be returned")
	}

	existing, err := s.returns.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "list returns")
	}
	for _, r := range existing {
		if r.Status == models.ReturnPending {
			return nil, apperr.Conflict("a return request is already open for this order")
		}
	}

	req := &models.ReturnRequest{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		UserID:    userID,
		Reason:    reason,
		Status:    models.ReturnPending,
		CreatedAt: s.orders.Now(),
	}
	if err := s.returns.Create(ctx, req); err != nil {
		return nil, storeErr(err, "create return request")
	}
	return req, nil
}

// DecideReturn : approve passe la commande en returned, reject ferme la demande.
func (s *ReturnService) DecideReturn(ctx context.Context, returnID, action string) (*models.ReturnRequest, error) {
	if action != ReturnApprove && action != ReturnReject {
		return nil, apperr.Validation("action must be approve or reject")
	}
	req, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return nil, storeErr(err, "return request not found")
	}
	if req.Status != models.ReturnPending {
		return nil, apperr.Conflict("return request already decided")
	}

	var returned *models.Order
	if action == ReturnApprove {
		err := retryOnConflict(ctx, func() error {
			order, err := s.orders.Orders.Get(ctx, req.OrderID)
			if err != nil {
				return storeErr(err, "order not found")
			}
			if order.Status == models.OrderReturned {
				returned = nil
				return nil
			}
			if !order.Status.CanTransitionTo(models.OrderReturned) {
				return apperr.Conflict("order can no longer be returned")
			}
			order.Status = models.OrderReturned
			order.UpdatedAt = s.orders.Now()
			if err := s.orders.Orders.Update(ctx, order); err != nil {
				return err
			}
			returned = order
			return nil
		})
		if err != nil {
			return nil, err
		}
		req.Status = models.ReturnApproved
	} else {
		req.Status = models.ReturnRejected
	}

	t := s.orders.Now()
	req.UpdatedAt = &t
	if err := s.returns.Update(ctx, req); err != nil {
		return nil, storeErr(err, "update return request")
	}
	if returned != nil {
		s.orders.Log.Info("retour approuvé", zap.String("order_id", returned.ID), zap.String("return_id", req.ID))
		s.orders.Notifier.OrderReturned(returned, req.ID)
		s.refundReturned(ctx, returned)
	}
	return req, nil
}

// refundReturned rembourse une commande retournée. Un échec laisse la commande
// en returned avec order.refund_required, POST /admin/orders/:id/refund la reprend.
func (s *ReturnService) refundReturned(ctx context.Context, order *models.Order) {
	refunds := &RefundService{orders: s.orders}
	if _, err := refunds.RefundOrder(ctx, order.ID, RefundReasonCustomer); err != nil {
		s.orders.Log.Error("remboursement du retour échoué", zap.String("order_id", order.ID), zap.Error(err))
		paid, perr := s.orders.settledPayment(ctx, order.ID)
		if perr == nil && paid != nil {
			s.orders.Notifier.RefundRequired(order, paid)
		}
	}
}

func (s *ReturnService) ListMine(ctx context.Context, userID string) ([]*models.ReturnRequest, error) {
	reqs, err := s.returns.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "list returns")
	}
	if reqs == nil {
		reqs = []*models.ReturnRequest{}
	}
	return reqs, nil
}

type RefundResult struct {
	Order    *models.Order `json:"order"`
	RefundID string        `json:"refundId,omitempty"`
}

type RefundService struct {
	orders *OrderService
}

func NewRefundService(orders *OrderService) *RefundService {
	return &RefundService{orders: orders}
}

// RefundOrder rembourse le paiement encaissé puis passe la commande en refunded.
// Une commande annulée garde son statut, seul le paiement en ligne est
// remboursé. Un paiement COD est marqué remboursé sans appel à la passerelle.
func (s *RefundService) RefundOrder(ctx context.Context, orderID, reason string) (*RefundResult, error) {
	o := s.orders
	order, err := o.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "order not found")
	}
	// annulée ou retournée : le paiement est remboursé, le statut reste
	canceled := order.Status == models.OrderCanceled
	keepStatus := canceled || order.Status == models.OrderReturned
	if !keepStatus && order.Status != models.OrderRefunded && !order.Status.CanTransitionTo(models.OrderRefunded) {
		return nil, apperr.Conflict("order cannot be refunded in status " + string(order.Status))
	}

	paid, err := o.settledPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if paid == nil || (canceled && !paid.Method.Online()) {
		return nil, apperr.Conflict("order has no settled payment")
	}

	refundID, fresh, err := o.refundPayment(ctx, paid, reason)
	if err != nil {
		return nil, err
	}
	if keepStatus {
		if fresh {
			o.Notifier.OrderRefunded(order, refundID)
		}
		return &RefundResult{Order: order, RefundID: refundID}, nil
	}

	var refunded *models.Order
	err = retryOnConflict(ctx, func() error {
		cur, err := o.Orders.Get(ctx, orderID)
		if err != nil {
			return storeErr(err, "order not found")
		}
		if cur.Status == models.OrderRefunded {
			refunded = cur
			return nil
		}
		if !cur.Status.CanTransitionTo(models.OrderRefunded) {
			return apperr.Conflict("order cannot be refunded in status " + string(cur.Status))
		}
		cur.Status = models.OrderRefunded
		cur.UpdatedAt = o.Now()
		if err := o.Orders.Update(ctx, cur); err != nil {
			return err
		}
		refunded = cur
		o.Notifier.OrderRefunded(cur, refundID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &RefundResult{Order: refunded, RefundID: refundID}, nil
}

// settledPayment retourne le paiement encaissé de la commande, nil sinon.
func (s *OrderService) settledPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	payments, err := s.Payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "list payments")
	}
	var paid *models.Payment
	for _, p := range payments {
		if p.Status == models.PaymentSuccess {
			paid = p
		}
	}
	return paid, nil
}

// refundPayment rembourse un paiement une seule fois : un RefundID déjà
// enregistré est retourné tel quel. Un paiement COD est rendu hors ligne, sous
// l'identifiant manual_<paymentId>. fresh vaut true pour un nouveau remboursement.
func (s *OrderService) refundPayment(ctx context.Context, paid *models.Payment, reason string) (refundID string, fresh bool, err error) {
	if paid.RefundID != "" {
		return paid.RefundID, false, nil
	}
	if paid.Method.Online() {
		refundID, err = s.Gateway.Refund(ctx, paid.TransactionID, paid.Amount, reason)
		if err != nil {
			s.Log.Error("remboursement refusé",
				zap.String("order_id", paid.OrderID), zap.String("payment_id", paid.ID), zap.Error(err))
			return "", false, err
		}
	} else {
		refundID = ManualRefundPrefix + paid.ID
	}
	fresh = true
	err = retryOnConflict(ctx, func() error {
		p, err := s.Payments.Get(ctx, paid.ID)
		if err != nil {
			return err
		}
		// un remboursement concurrent a déjà été enregistré
		if p.RefundID != "" {
			refundID, fresh = p.RefundID, false
			return nil
		}
		p.RefundID = refundID
		p.UpdatedAt = s.Now()
		return s.Payments.Update(ctx, p)
	})
	if err != nil {
		s.Log.Error("identifiant de remboursement non enregistré",
			zap.String("payment_id", paid.ID), zap.String("refund_id", refundID), zap.Error(err))
	}
	paid.RefundID = refundID
	if fresh {
		s.Log.Info("paiement remboursé",
			zap.String("order_id", paid.OrderID), zap.String("payment_id", paid.ID), zap.String("refund_id", refundID))
	}
	return refundID, fresh, nil
}

// compensate rembourse le paiement capturé d'une commande annulée. Si la
// passerelle refuse, order.refund_required part pour un rattrapage manuel.
func (s *OrderService) compensate(ctx context.Context, order *models.Order, paid *models.Payment) bool {
	refundID, fresh, err := s.refundPayment(ctx, paid, RefundReasonCustomer)
	if err != nil {
		s.Notifier.RefundRequired(order, paid)
		return false
	}
	if fresh {
		s.Notifier.OrderRefunded(order, refundID)
	}
	return true
}
