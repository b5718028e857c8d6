package scylla

import (
	"context"
	"time"

	"cedra_orders/internal/repository"

	"github.com/gocql/gocql"
)

// ProcessedEvents : une réclamation "processing" expire via TTL, "done" est permanent.
type ProcessedEvents struct {
	session *gocql.Session
}

func NewProcessedEvents(session *gocql.Session) *ProcessedEvents {
	return &ProcessedEvents{session: session}
}

func (s *ProcessedEvents) Claim(ctx context.Context, eventID string) (bool, error) {
	return s.session.Query(`INSERT INTO processed_events (event_id, status, claimed_at) VALUES (?, 'processing', ?)
		IF NOT EXISTS USING TTL ?`, eventID, time.Now().UTC(), int(repository.ClaimTTL.Seconds())).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
}

// Complete est conditionnel, comme Claim et Release. Une réclamation expirée
// entre-temps est recréée directement à l'état done.
func (s *ProcessedEvents) Complete(ctx context.Context, eventID string) error {
	at := time.Now().UTC()
	prev := map[string]interface{}{}
	applied, err := s.session.Query(`UPDATE processed_events USING TTL 0 SET status = 'done', completed_at = ?
		WHERE event_id = ? IF status = 'processing'`, at, eventID).
		WithContext(ctx).MapScanCAS(prev)
	if err != nil || applied {
		return err
	}
	if status, _ := prev["status"].(string); status == "done" {
		return nil
	}
	_, err = s.session.Query(`INSERT INTO processed_events (event_id, status, claimed_at, completed_at) VALUES (?, 'done', ?, ?)
		IF NOT EXISTS`, eventID, at, at).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	return err
}

func (s *ProcessedEvents) Release(ctx context.Context, eventID string) error {
	_, err := s.session.Query(`DELETE FROM processed_events WHERE event_id = ? IF status = 'processing'`, eventID).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	return err
}

var (
	_ repository.ProcessedEventStore = (*ProcessedEvents)(nil)
	_ repository.OrderRepository     = (*Orders)(nil)
	_ repository.PaymentRepository   = (*Payments)(nil)
	_ repository.CartRepository      = (*Cart)(nil)
	_ repository.ReturnRepository    = (*Returns)(nil)
	_ repository.AddressRepository   = (*Addresses)(nil)
	_ repository.UserRepository      = (*Users)(nil)
	_ repository.ListingRepository   = (*Listings)(nil)
)
