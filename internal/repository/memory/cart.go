package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"
)

type cartKey struct {
	userID    string
	saved     bool
	listingID string
}

type Cart struct {
	mu    sync.Mutex
	items map[cartKey]models.CartItem
	now   func() time.Time

	// FailClear force une erreur sur ClearActive (tests de compensation).
	FailClear error
}

func NewCart() *Cart {
	return &Cart{items: make(map[cartKey]models.CartItem), now: time.Now}
}

func (r *Cart) List(_ context.Context, userID string, savedForLater bool) ([]models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.CartItem, 0)
	for k, item := range r.items {
		if k.userID == userID && k.saved == savedForLater {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (r *Cart) Get(_ context.Context, userID, listingID string, savedForLater bool) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[cartKey{userID, savedForLater, listingID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

func (r *Cart) Add(_ context.Context, item models.CartItem) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := cartKey{item.UserID, item.SavedForLater, item.ListingID}
	if existing, ok := r.items[k]; ok {
		existing.Quantity += item.Quantity
		existing.UnitPrice = item.UnitPrice
		r.items[k] = existing
		return &existing, nil
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = r.now().UTC()
	}
	r.items[k] = item
	return &item, nil
}

func (r *Cart) SetQuantity(_ context.Context, userID, listingID string, quantity int) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := cartKey{userID, false, listingID}
	item, ok := r.items[k]
	if !ok {
		return nil, repository.ErrNotFound
	}
	item.Quantity = quantity
	r.items[k] = item
	return &item, nil
}

func (r *Cart) Delete(_ context.Context, userID, listingID string, savedForLater bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := cartKey{userID, savedForLater, listingID}
	if _, ok := r.items[k]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, k)
	return nil
}

func (r *Cart) ClearActive(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailClear != nil {
		return r.FailClear
	}
	for k := range r.items {
		if k.userID == userID && !k.saved {
			delete(r.items, k)
		}
	}
	return nil
}
