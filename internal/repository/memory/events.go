package memory

import (
	"context"
	"sync"
	"time"

	"cedra_orders/internal/repository"
)

type claim struct {
	done      bool
	expiresAt time.Time
}

type ProcessedEvents struct {
	mu     sync.Mutex
	claims map[string]claim
	now    func() time.Time
}

func NewProcessedEvents() *ProcessedEvents {
	return &ProcessedEvents{claims: make(map[string]claim), now: time.Now}
}

func (s *ProcessedEvents) Claim(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.claims[eventID]; ok && (c.done || s.now().Before(c.expiresAt)) {
		return false, nil
	}
	s.claims[eventID] = claim{expiresAt: s.now().Add(repository.ClaimTTL)}
	return true, nil
}

func (s *ProcessedEvents) Complete(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[eventID] = claim{done: true}
	return nil
}

func (s *ProcessedEvents) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.claims[eventID]; ok && !c.done {
		delete(s.claims, eventID)
	}
	return nil
}

var (
	_ repository.ProcessedEventStore = (*ProcessedEvents)(nil)
	_ repository.OrderRepository     = (*Orders)(nil)
	_ repository.PaymentRepository   = (*Payments)(nil)
	_ repository.CartRepository      = (*Cart)(nil)
	_ repository.ReturnRepository    = (*Returns)(nil)
)
