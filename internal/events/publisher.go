// Package events publie et consomme les événements de commande sur un stream Redis.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"cedra_orders/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// streamMaxLen borne le stream (trim approximatif).
const streamMaxLen = 100000

type StreamPublisher struct {
	rdb    *redis.Client
	stream string
}

func NewStreamPublisher(rdb *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev models.Event) error {
	stamp(&ev)
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    ev.Type,
			"payload": string(payload),
		},
	}).Err()
}

// LogPublisher remplace le stream quand Redis n'est pas configuré.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, ev models.Event) error {
	stamp(&ev)
	p.log.Info("événement", zap.String("type", ev.Type), zap.String("order_id", ev.OrderID), zap.String("user_id", ev.UserID))
	return nil
}

// Recorder garde les événements en mémoire, pour les tests.
type Recorder struct {
	mu     sync.Mutex
	events []models.Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	stamp(&ev)
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.events...)
}

func (r *Recorder) OfType(typ string) []models.Event {
	var out []models.Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func stamp(ev *models.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
}
