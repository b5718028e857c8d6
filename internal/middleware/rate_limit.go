package middleware

import (
	"fmt"
	"net/http"
	"time"

	"cedra_orders/internal/cache"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	OrderMaxRequests = 10 // créations de commande par minute
	CartMaxRequests  = 20 // écritures panier par minute
	RateWindow       = time.Minute
)

// RateLimit limite les requêtes par utilisateur authentifié (ou IP à défaut).
// Sans Redis, ou si Redis échoue, la requête passe.
func RateLimit(limiter *cache.RateLimiter, prefix string, limit int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		who := c.GetString("user_id")
		if who == "" {
			who = c.ClientIP()
		}

		allowed, remaining, err := limiter.Allow(c.Request.Context(), prefix+":"+who, limit, window)
		if err != nil {
			log.Warn("rate limit indisponible", zap.String("key", prefix), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de requêtes. Réessayez dans 1 minute",
				"retry_after": int(window.Seconds()),
			})
			return
		}
		c.Next()
	}
}
