package services

import (
	"context"
	"errors"
	"time"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/gateway"
	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultDispatchSLA = 5 * 24 * time.Hour

const (
	cartClearAttempts = 3
	cartClearBackoff  = 100 * time.Millisecond
)

type OrderDeps struct {
	Orders    repository.OrderRepository
	Payments  repository.PaymentRepository
	Addresses repository.AddressRepository
	Listings  repository.ListingRepository // optionnel
	Users     repository.UserRepository
	Cart      *CartService
	Gateway   gateway.Gateway
	Notifier  *Notifier
	Log       *zap.Logger

	DispatchSLA time.Duration
	Now         func() time.Time
}

type OrderService struct {
	OrderDeps
}

func NewOrderService(d OrderDeps) *OrderService {
	if d.DispatchSLA <= 0 {
		d.DispatchSLA = DefaultDispatchSLA
	}
	if d.Now == nil {
		d.Now = now
	}
	return &OrderService{OrderDeps: d}
}

type OrderItemInput struct {
	ProductID string
	VendorID  string
	ListingID string
	Quantity  int
	Price     decimal.Decimal
}

type PlaceOrderInput struct {
	Items             []OrderItemInput
	TotalAmount       decimal.Decimal
	ShippingAddressID string
	PaymentMode       models.PaymentMode
}

type PlaceOrderResult struct {
	Order       *models.Order
	Payment     *models.Payment
	CheckoutURL string
	SessionID   string
}

// Actor identifie l'appelant d'une lecture ou d'une mise à jour d'expédition.
type Actor struct {
	UserID   string
	Role     string
	VendorID string
}

func (a Actor) IsAdmin() bool { return a.Role == "admin" }

func (a Actor) IsVendor() bool { return a.Role == "vendor" && a.VendorID != "" }

// PlaceOrder valide la commande puis la crée : COD est confirmée et payée
// immédiatement, card/upi restent en attente du webhook de paiement.
func (s *OrderService) PlaceOrder(ctx context.Context, buyerID string, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if !in.PaymentMode.Valid() {
		return nil, apperr.Validation("invalid payment mode")
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	for _, item := range in.Items {
		if item.ListingID == "" || item.ProductID == "" || item.VendorID == "" {
			return nil, apperr.Validation("each item needs productId, vendorId and listingId")
		}
		if item.Quantity <= 0 {
			return nil, apperr.Validation("item quantity must be positive")
		}
		if item.Price.IsNegative() {
			return nil, apperr.Validation("item price must not be negative")
		}
		if !models.WholeCents(item.Price) {
			return nil, apperr.Validation("item price must have at most 2 decimals")
		}
	}
	if !models.WholeCents(in.TotalAmount) {
		return nil, apperr.Validation("total amount must have at most 2 decimals")
	}

	addr, err := s.Addresses.Get(ctx, in.ShippingAddressID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && addr.UserID != buyerID) {
		return nil, apperr.NotFound("shipping address not found")
	}
	if err != nil {
		return nil, storeErr(err, "load shipping address")
	}

	if err := s.verifyListings(ctx, in.Items); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, models.OrderItem{
			ProductID:  item.ProductID,
			ListingID:  item.ListingID,
			VendorID:   item.VendorID,
			Quantity:   item.Quantity,
			UnitPrice:  item.Price,
			TotalPrice: item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	total := models.SumItems(items)
	if !total.Equal(in.TotalAmount) {
		return nil, apperr.Validation("Total amount mismatch")
	}

	placedAt := s.Now()
	order := &models.Order{
		ID:                uuid.NewString(),
		BuyerID:           buyerID,
		Items:             items,
		TotalAmount:       total,
		ShippingAddressID: addr.ID,
		ShippingAddress:   addr,
		PaymentMode:       in.PaymentMode,
		DispatchStatus:    models.DispatchNotStarted,
		PlacedAt:          placedAt,
		UpdatedAt:         placedAt,
	}
	payment := &models.Payment{
		ID:        uuid.NewString(),
		UserID:    buyerID,
		OrderID:   order.ID,
		Amount:    total,
		Method:    in.PaymentMode,
		CreatedAt: placedAt,
		UpdatedAt: placedAt,
	}

	if in.PaymentMode == models.PaymentCOD {
		return s.placeCOD(ctx, order, payment)
	}
	return s.placeOnline(ctx, order, payment)
}

func (s *OrderService) placeCOD(ctx context.Context, order *models.Order, payment *models.Payment) (*PlaceOrderResult, error) {
	dispatchBy := order.PlacedAt.Add(s.DispatchSLA)
	order.Status = models.OrderConfirmed
	order.PaymentStatus = models.PaymentSuccess
	order.DispatchTime = &dispatchBy
	payment.Status = models.PaymentSuccess

	if err := s.Orders.Create(ctx, order); err != nil {
		return nil, storeErr(err, "create order")
	}
	if err := s.Payments.Create(ctx, payment); err != nil {
		s.voidOrder(ctx, order.ID, models.OrderConfirmed)
		return nil, storeErr(err, "create payment")
	}

	s.clearCart(ctx, order.BuyerID, order.ID)

	s.Log.Info("commande COD confirmée",
		zap.String("order_id", order.ID), zap.String("buyer_id", order.BuyerID), zap.String("total", order.TotalAmount.StringFixed(2)))
	s.Notifier.OrderCreated(order)
	s.Notifier.OrderConfirmed(order)
	return &PlaceOrderResult{Order: order, Payment: payment}, nil
}

func (s *OrderService) placeOnline(ctx context.Context, order *models.Order, payment *models.Payment) (*PlaceOrderResult, error) {
	order.Status = models.OrderPending
	order.PaymentStatus = models.PaymentPending
	payment.Status = models.PaymentPending

	if err := s.Orders.Create(ctx, order); err != nil {
		return nil, storeErr(err, "create order")
	}
	if err := s.Payments.Create(ctx, payment); err != nil {
		s.abandon(ctx, order, nil, "")
		return nil, storeErr(err, "create payment")
	}

	meta := gateway.NewMetadata(order, payment)
	if !meta.ItemsFit() {
		s.Log.Warn("lignes absentes des métadonnées de session",
			zap.String("order_id", order.ID), zap.Int("items", len(order.Items)))
	}
	sess, err := s.Gateway.CreateCheckoutSession(ctx, order, payment, meta)
	if err != nil {
		s.Log.Error("création session de paiement échouée", zap.String("order_id", order.ID), zap.Error(err))
		s.abandon(ctx, order, payment, "")
		if apperr.KindOf(err) == apperr.KindExternal {
			return nil, err
		}
		return nil, apperr.External("payment gateway unavailable", err)
	}

	payment.TransactionID = sess.ID
	payment.UpdatedAt = s.Now()
	if err := s.Payments.Update(ctx, payment); err != nil {
		s.Log.Error("enregistrement session échoué", zap.String("payment_id", payment.ID), zap.Error(err))
		s.abandon(ctx, order, payment, sess.ID)
		return nil, storeErr(err, "record checkout session")
	}

	s.Log.Info("session de paiement créée",
		zap.String("order_id", order.ID), zap.String("payment_id", payment.ID), zap.String("session_id", sess.ID))
	s.Notifier.OrderCreated(order)
	return &PlaceOrderResult{Order: order, Payment: payment, CheckoutURL: sess.URL, SessionID: sess.ID}, nil
}

// abandon compense une création partielle : paiement en échec, commande annulée.
func (s *OrderService) abandon(ctx context.Context, order *models.Order, payment *models.Payment, sessionID string) {
	if sessionID != "" {
		if err := s.Gateway.ExpireSession(ctx, sessionID); err != nil {
			s.Log.Warn("expiration session échouée", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	if payment != nil {
		if _, err := s.failPayment(ctx, payment.ID); err != nil {
			s.Log.Error("compensation paiement échouée", zap.String("payment_id", payment.ID), zap.Error(err))
		}
	}
	s.voidOrder(ctx, order.ID, models.OrderPending)
}

// voidOrder annule une commande dont la création n'a pas abouti, tant
// qu'elle est encore dans le statut from.
func (s *OrderService) voidOrder(ctx context.Context, orderID string, from models.OrderStatus) {
	err := retryOnConflict(ctx, func() error {
		current, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != from {
			return nil
		}
		current.Status = models.OrderCanceled
		current.PaymentStatus = models.PaymentFailed
		current.DispatchTime = nil
		current.UpdatedAt = s.Now()
		return s.Orders.Update(ctx, current)
	})
	if err != nil {
		s.Log.Error("compensation commande échouée", zap.String("order_id", orderID), zap.Error(err))
	}
}

// failPayment passe un paiement en attente à failed. Retourne false s'il
// n'était plus en attente.
func (s *OrderService) failPayment(ctx context.Context, paymentID string) (bool, error) {
	changed := false
	err := retryOnConflict(ctx, func() error {
		p, err := s.Payments.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentPending {
			changed = false
			return nil
		}
		p.Status = models.PaymentFailed
		p.UpdatedAt = s.Now()
		changed = true
		return s.Payments.Update(ctx, p)
	})
	return changed, err
}

// clearCart vide le panier actif. Un échec est journalisé puis rejoué hors
// requête, cartClearAttempts fois au plus.
func (s *OrderService) clearCart(ctx context.Context, buyerID, orderID string) {
	if err := s.Cart.ClearActive(ctx, buyerID); err != nil {
		s.Log.Error("purge du panier échouée",
			zap.String("buyer_id", buyerID), zap.String("order_id", orderID), zap.Error(err))
		s.Notifier.Retry("cart.clear", func(ctx context.Context) error {
			return retryWithBackoff(ctx, cartClearAttempts, cartClearBackoff, func() error {
				return s.Cart.ClearActive(ctx, buyerID)
			})
		})
	}
}

func (s *OrderService) verifyListings(ctx context.Context, items []OrderItemInput) error {
	if s.Listings == nil {
		return nil
	}
	for _, item := range items {
		listing, err := s.Listings.Get(ctx, item.ListingID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Validation("unknown listing " + item.ListingID)
		}
		if err != nil {
			return storeErr(err, "load listing")
		}
		if listing.VendorID != item.VendorID || listing.ProductID != item.ProductID {
			return apperr.Validation("listing " + item.ListingID + " does not match product or vendor")
		}
		if !listing.Price.Equal(item.Price) {
			return apperr.Validation("price changed for listing " + item.ListingID)
		}
		if listing.Stock < item.Quantity {
			return apperr.Validation("insufficient stock for listing " + item.ListingID)
		}
	}
	return nil
}

type CancelResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Order   *models.Order `json:"order,omitempty"`
}

// CancelOrder refuse sans erreur une commande expédiée ou livrée.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, buyerID string) (*CancelResult, error) {
	var (
		result   *CancelResult
		canceled *models.Order
	)
	err := retryOnConflict(ctx, func() error {
		order, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return storeErr(err, "order not found")
		}
		if order.BuyerID != buyerID {
			return apperr.Forbidden("order does not belong to user")
		}
		if order.Status == models.OrderCanceled {
			return apperr.Conflict("order already canceled")
		}
		if order.DispatchStatus.InFlight() || order.Status == models.OrderDelivered {
			result = &CancelResult{Success: false, Message: "Order cannot be canceled once dispatched or delivered", Order: order}
			return nil
		}
		if !order.Status.CanTransitionTo(models.OrderCanceled) {
			result = &CancelResult{Success: false, Message: "Order can no longer be canceled", Order: order}
			return nil
		}

		order.Status = models.OrderCanceled
		order.UpdatedAt = s.Now()
		if err := s.Orders.Update(ctx, order); err != nil {
			return err
		}
		canceled = order
		result = &CancelResult{Success: true, Message: "Order canceled", Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if canceled == nil {
		return result, nil
	}

	refund := s.settleCanceledPayments(ctx, canceled)
	s.Log.Info("commande annulée", zap.String("order_id", canceled.ID), zap.Bool("refund", refund))
	s.Notifier.OrderCancelled(canceled, refund)
	return result, nil
}

// settleCanceledPayments clôt les sessions ouvertes et rembourse les paiements
// en ligne déjà encaissés. Retourne true si de l'argent est rendu à l'acheteur.
func (s *OrderService) settleCanceledPayments(ctx context.Context, order *models.Order) bool {
	payments, err := s.Payments.ListByOrder(ctx, order.ID)
	if err != nil {
		s.Log.Error("lecture paiements après annulation", zap.String("order_id", order.ID), zap.Error(err))
		return false
	}
	refund := false
	for _, p := range payments {
		switch {
		case p.Status == models.PaymentPending && p.Method.Online():
			if p.TransactionID != "" {
				if err := s.Gateway.ExpireSession(ctx, p.TransactionID); err != nil {
					s.Log.Warn("expiration session échouée", zap.String("session_id", p.TransactionID), zap.Error(err))
				}
			}
			if _, err := s.failPayment(ctx, p.ID); err != nil {
				s.Log.Error("échec du paiement non enregistré", zap.String("payment_id", p.ID), zap.Error(err))
			}
		case p.Status == models.PaymentSuccess && p.Method.Online():
			refund = true
			s.compensate(ctx, order, p)
		}
	}
	return refund
}

// UpdateOrderStatus applique une transition administrateur. returned et
// refunded passent par les retours et les remboursements.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	target := models.OrderStatus(status)
	if !target.Valid() {
		return nil, apperr.Validation("invalid order status: " + status)
	}
	if target == models.OrderReturned || target == models.OrderRefunded {
		return nil, apperr.Validation("status " + status + " is set by the returns and refunds flows")
	}

	var updated *models.Order
	changed := false
	err := retryOnConflict(ctx, func() error {
		order, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return storeErr(err, "order not found")
		}
		if order.Status == target {
			updated, changed = order, false
			return nil
		}
		if !order.Status.CanTransitionTo(target) {
			return apperr.Conflict("illegal status transition " + string(order.Status) + " -> " + status)
		}

		switch target {
		case models.OrderConfirmed, models.OrderShipped:
			if order.PaymentStatus != models.PaymentSuccess {
				return apperr.Conflict("payment not settled")
			}
			if target == models.OrderShipped && !order.DispatchStatus.InFlight() {
				order.DispatchStatus = models.DispatchDispatched
			}
		case models.OrderDelivered:
			order.DispatchStatus = models.DispatchDelivered
		case models.OrderCanceled:
			if order.DispatchStatus.InFlight() {
				return apperr.Conflict("order already dispatched")
			}
		}
		order.Status = target
		order.UpdatedAt = s.Now()
		if err := s.Orders.Update(ctx, order); err != nil {
			return err
		}
		updated, changed = order, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if target == models.OrderCanceled {
			s.Notifier.OrderCancelled(updated, s.settleCanceledPayments(ctx, updated))
		} else {
			s.Notifier.OrderUpdated(updated)
		}
	}
	return updated, nil
}

// UpdateDispatchStatus fait avancer la piste d'expédition et maintient le
// statut cohérent : dispatched/in_transit expédient, delivered livre.
func (s *OrderService) UpdateDispatchStatus(ctx context.Context, orderID, dispatch string, actor Actor) (*models.Order, error) {
	target := models.DispatchStatus(dispatch)
	if !target.Valid() {
		return nil, apperr.Validation("invalid dispatch status: " + dispatch)
	}

	var updated *models.Order
	changed := false
	err := retryOnConflict(ctx, func() error {
		order, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return storeErr(err, "order not found")
		}
		if !actor.IsAdmin() && !(actor.IsVendor() && order.HasVendor(actor.VendorID)) {
			return apperr.Forbidden("not allowed to update this order")
		}
		if order.DispatchStatus == target {
			updated, changed = order, false
			return nil
		}
		if order.Status != models.OrderConfirmed && order.Status != models.OrderShipped {
			return apperr.Conflict("order is not awaiting dispatch (status " + string(order.Status) + ")")
		}
		if target.RequiresPayment() && order.PaymentStatus != models.PaymentSuccess {
			return apperr.Conflict("payment not settled")
		}
		if !order.DispatchStatus.CanAdvanceTo(target) {
			return apperr.Conflict("illegal dispatch transition " + string(order.DispatchStatus) + " -> " + dispatch)
		}

		order.DispatchStatus = target
		switch {
		case target == models.DispatchDelivered:
			order.Status = models.OrderDelivered
		case target.InFlight() && order.Status == models.OrderConfirmed:
			order.Status = models.OrderShipped
		}
		order.UpdatedAt = s.Now()
		if err := s.Orders.Update(ctx, order); err != nil {
			return err
		}
		updated, changed = order, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.Notifier.OrderUpdated(updated)
	}
	return updated, nil
}
