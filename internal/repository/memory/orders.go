// Package memory fournit des repositories en mémoire, utilisés par les tests
// et par STORAGE_DRIVER=memory en développement.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"
)

type Orders struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
	now    func() time.Time
}

func NewOrders() *Orders {
	return &Orders{orders: make(map[string]*models.Order), now: time.Now}
}

func (r *Orders) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return repository.ErrAlreadyExists
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *Orders) Get(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *Orders) ListByBuyer(_ context.Context, buyerID string) ([]*models.Order, error) {
	return r.filter(func(o *models.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r *Orders) ListByVendor(_ context.Context, vendorID string) ([]*models.Order, error) {
	return r.filter(func(o *models.Order) bool { return o.HasVendor(vendorID) }), nil
}

func (r *Orders) Update(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != order.Version {
		return repository.ErrVersionConflict
	}
	order.Version++
	order.UpdatedAt = r.now().UTC()
	r.orders[order.ID] = order.Clone()
	return nil
}

// Count sert aux tests qui vérifient qu'aucune ligne n'a été écrite.
func (r *Orders) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

func (r *Orders) filter(keep func(*models.Order) bool) []*models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Order, 0)
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	// plus récentes en premier, comme les tables orders_by_*
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out
}
