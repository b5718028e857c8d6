package cache

import (
	"context"
	"encoding/json"
	"time"

	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const UserCacheTTL = 5 * time.Minute

// CartCache est un cache read-through des lignes de panier. Un client Redis
// nil désactive le cache ; toute erreur renvoie vers la source de vérité.
type CartCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewCartCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CartCache {
	return &CartCache{rdb: rdb, ttl: ttl, log: log}
}

func CartKey(userID string, savedForLater bool) string {
	if savedForLater {
		return "wishlist:" + userID
	}
	return "cart:" + userID
}

// CartChannel est le canal pub/sub écouté par la websocket panier.
func CartChannel(userID string) string {
	return "cart:" + userID
}

func (c *CartCache) Get(ctx context.Context, userID string, savedForLater bool) ([]models.CartItem, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, CartKey(userID, savedForLater)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("lecture cache panier", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, false
	}
	var items []models.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (c *CartCache) Set(ctx context.Context, userID string, savedForLater bool, items []models.CartItem) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, CartKey(userID, savedForLater), data, c.ttl).Err(); err != nil {
		c.log.Warn("écriture cache panier", zap.String("user_id", userID), zap.Error(err))
	}
}

// Invalidate supprime les deux vues du panier et notifie les websockets ("updated" ou "cleared").
func (c *CartCache) Invalidate(ctx context.Context, userID, event string) {
	if c == nil || c.rdb == nil {
		return
	}
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, CartKey(userID, false), CartKey(userID, true))
	pipe.Publish(ctx, CartChannel(userID), event)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("invalidation cache panier", zap.String("user_id", userID), zap.Error(err))
	}
}

func (c *CartCache) Subscribe(ctx context.Context, userID string) *redis.PubSub {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Subscribe(ctx, CartChannel(userID))
}

// UserCache décore un UserRepository avec un cache Redis user:<id>.
type UserCache struct {
	next repository.UserRepository
	rdb  *redis.Client
}

func NewUserCache(next repository.UserRepository, rdb *redis.Client) repository.UserRepository {
	if rdb == nil {
		return next
	}
	return &UserCache{next: next, rdb: rdb}
}

func (c *UserCache) Get(ctx context.Context, userID string) (*models.User, error) {
	key := "user:" + userID

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var user models.User
		if json.Unmarshal(data, &user) == nil {
			return &user, nil
		}
	}

	user, err := c.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(user); err == nil {
		c.rdb.Set(ctx, key, data, UserCacheTTL)
	}
	return user, nil
}

func (c *UserCache) Invalidate(ctx context.Context, userID string) {
	c.rdb.Del(ctx, "user:"+userID)
}
