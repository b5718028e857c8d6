package services

import (
	"context"
	"errors"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"

	"golang.org/x/sync/errgroup"
)

// OrderView est la projection renvoyée aux clients : commande, acheteur, paiements.
type OrderView struct {
	*models.Order
	Buyer    *models.BuyerSummary `json:"buyer,omitempty"`
	Payments []*models.Payment    `json:"payments"`
}

func (s *OrderService) GetOrdersByUser(ctx context.Context, buyerID string) ([]OrderView, error) {
	orders, err := s.Orders.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, storeErr(err, "list orders")
	}
	return s.views(ctx, orders)
}

// GetOrder : visible par l'acheteur, un administrateur ou un vendeur présent dans la commande.
func (s *OrderService) GetOrder(ctx context.Context, orderID string, actor Actor) (*OrderView, error) {
	order, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "order not found")
	}
	allowed := order.BuyerID == actor.UserID ||
		actor.IsAdmin() ||
		(actor.IsVendor() && order.HasVendor(actor.VendorID))
	if !allowed {
		return nil, apperr.Forbidden("order does not belong to user")
	}
	views, err := s.views(ctx, []*models.Order{order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// GetVendorOrders ne garde que les lignes du vendeur dans chaque commande.
func (s *OrderService) GetVendorOrders(ctx context.Context, vendorID string) ([]OrderView, error) {
	orders, err := s.Orders.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, storeErr(err, "list vendor orders")
	}
	for _, o := range orders {
		mine := o.Items[:0:0]
		for _, item := range o.Items {
			if item.VendorID == vendorID {
				mine = append(mine, item)
			}
		}
		o.Items = mine
	}
	return s.views(ctx, orders)
}

func (s *OrderService) views(ctx context.Context, orders []*models.Order) ([]OrderView, error) {
	views := make([]OrderView, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, o := range orders {
		views[i].Order = o
		g.Go(func() error {
			payments, err := s.Payments.ListByOrder(gctx, o.ID)
			if err != nil {
				return storeErr(err, "list payments")
			}
			if payments == nil {
				payments = []*models.Payment{}
			}
			views[i].Payments = payments

			if s.Users == nil {
				return nil
			}
			user, err := s.Users.Get(gctx, o.BuyerID)
			if errors.Is(err, repository.ErrNotFound) {
				views[i].Buyer = &models.BuyerSummary{ID: o.BuyerID}
				return nil
			}
			if err != nil {
				return storeErr(err, "load buyer")
			}
			views[i].Buyer = &models.BuyerSummary{ID: user.ID, Name: user.Name, Email: user.Email}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}
