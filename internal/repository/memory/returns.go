package memory

import (
	"context"
	"sort"
	"sync"

	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"
)

type Returns struct {
	mu   sync.RWMutex
	reqs map[string]models.ReturnRequest
}

func NewReturns() *Returns {
	return &Returns{reqs: make(map[string]models.ReturnRequest)}
}

func (r *Returns) Create(_ context.Context, req *models.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.reqs[req.ID]; exists {
		return repository.ErrAlreadyExists
	}
	r.reqs[req.ID] = *req
	return nil
}

func (r *Returns) Get(_ context.Context, id string) (*models.ReturnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.reqs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r *Returns) ListByUser(_ context.Context, userID string) ([]*models.ReturnRequest, error) {
	return r.filter(func(req models.ReturnRequest) bool { return req.UserID == userID }), nil
}

func (r *Returns) ListByOrder(_ context.Context, orderID string) ([]*models.ReturnRequest, error) {
	return r.filter(func(req models.ReturnRequest) bool { return req.OrderID == orderID }), nil
}

func (r *Returns) Update(_ context.Context, req *models.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reqs[req.ID]; !ok {
		return repository.ErrNotFound
	}
	r.reqs[req.ID] = *req
	return nil
}

func (r *Returns) filter(keep func(models.ReturnRequest) bool) []*models.ReturnRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ReturnRequest, 0)
	for _, req := range r.reqs {
		if keep(req) {
			req := req
			out = append(out, &req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
