package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter compte les requêtes par clé sur une fenêtre fixe.
type RateLimiter struct {
	rdb *redis.Client
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	if rdb == nil {
		return nil
	}
	return &RateLimiter{rdb: rdb}
}

// Allow incrémente le compteur et retourne le nombre de requêtes restantes.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, err
	}
	// la fenêtre démarre à la première requête
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return true, 0, err
		}
	}
	count := int(n)
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, remaining, nil
}
