package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"
)

type Payments struct {
	mu       sync.RWMutex
	payments map[string]*models.Payment
	now      func() time.Time
}

func NewPayments() *Payments {
	return &Payments{payments: make(map[string]*models.Payment), now: time.Now}
}

func (r *Payments) Create(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.payments[p.ID]; exists {
		return repository.ErrAlreadyExists
	}
	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *Payments) Get(_ context.Context, id string) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *Payments) ListByOrder(_ context.Context, orderID string) ([]*models.Payment, error) {
	return r.filter(func(p *models.Payment) bool { return p.OrderID == orderID }), nil
}

func (r *Payments) ListPendingBefore(_ context.Context, cutoff time.Time) ([]*models.Payment, error) {
	return r.filter(func(p *models.Payment) bool {
		return p.Status == models.PaymentPending && p.CreatedAt.Before(cutoff)
	}), nil
}

func (r *Payments) Update(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.payments[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != p.Version {
		return repository.ErrVersionConflict
	}
	p.Version++
	p.UpdatedAt = r.now().UTC()
	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *Payments) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.payments)
}

func (r *Payments) filter(keep func(*models.Payment) bool) []*models.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Payment, 0)
	for _, p := range r.payments {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
