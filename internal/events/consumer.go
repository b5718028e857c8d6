package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"cedra_orders/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, ev models.Event) error

// Consumer lit le stream dans un consumer group. Un message n'est acquitté
// qu'après un traitement réussi ; les messages restés en attente plus de
// MinIdle sont repris par XAUTOCLAIM.
type Consumer struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	types    map[string]bool
	log      *zap.Logger

	Block   time.Duration
	Count   int64
	MinIdle time.Duration
}

func NewConsumer(rdb *redis.Client, stream, group, consumer string, log *zap.Logger, types ...string) *Consumer {
	filter := make(map[string]bool, len(types))
	for _, t := range types {
		filter[t] = true
	}
	return &Consumer{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		types:    filter,
		log:      log,
		Block:    5 * time.Second,
		Count:    10,
		MinIdle:  5 * time.Minute,
	}
}

// Ensure crée le groupe (et le stream) s'il n'existe pas.
func (c *Consumer) Ensure(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if err := c.Ensure(ctx); err != nil {
		return err
	}
	for {
		if _, err := c.Poll(ctx, handle); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("lecture stream", zap.String("stream", c.stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Poll traite un lot : d'abord les messages abandonnés, puis les nouveaux.
func (c *Consumer) Poll(ctx context.Context, handle Handler) (int, error) {
	claimed, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.MinIdle,
		Start:    "0-0",
		Count:    c.Count,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	processed := c.handleAll(ctx, claimed, handle)

	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.Count,
		Block:    c.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return processed, nil
	}
	if err != nil {
		return processed, err
	}
	for _, s := range streams {
		processed += c.handleAll(ctx, s.Messages, handle)
	}
	return processed, nil
}

func (c *Consumer) handleAll(ctx context.Context, msgs []redis.XMessage, handle Handler) int {
	n := 0
	for _, msg := range msgs {
		typ, _ := msg.Values["type"].(string)
		if len(c.types) > 0 && !c.types[typ] {
			c.ack(ctx, msg.ID)
			continue
		}
		raw, _ := msg.Values["payload"].(string)
		var ev models.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			// message illisible : le rejouer ne le réparera pas
			c.log.Error("payload d'événement invalide", zap.String("message_id", msg.ID), zap.Error(err))
			c.ack(ctx, msg.ID)
			continue
		}
		if err := handle(ctx, ev); err != nil {
			c.log.Warn("traitement échoué, message laissé en attente",
				zap.String("message_id", msg.ID), zap.String("type", ev.Type), zap.String("order_id", ev.OrderID), zap.Error(err))
			continue
		}
		c.ack(ctx, msg.ID)
		n++
	}
	return n
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		c.log.Warn("XACK échoué", zap.String("message_id", id), zap.Error(err))
	}
}
