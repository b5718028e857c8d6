package user

import (
	"net/http"
	"time"

	"cedra_orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// origines filtrées en amont par CORS
		return true
	},
}

// CartWebSocket pousse un instantané du panier à chaque notification Redis.
func (h *CartHandler) CartWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non authentifié"})
		return
	}

	ctx := c.Request.Context()
	pubsub := h.cache.Subscribe(ctx, userID)
	if pubsub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Synchronisation panier indisponible"})
		return
	}
	defer pubsub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{
		"type":    "connected",
		"message": "Synchronisation panier activée",
	}); err != nil {
		return
	}

	ch := pubsub.Channel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload != services.CartUpdated && msg.Payload != services.CartCleared {
				continue
			}
			cart, err := h.cart.GetCart(ctx, userID)
			if err != nil {
				h.log.Warn("lecture panier WebSocket", zap.String("user_id", userID), zap.Error(err))
				continue
			}
			if err := conn.WriteJSON(map[string]interface{}{
				"type":  "cart_updated",
				"items": cart.Items,
				"total": cart.Total,
				"count": cart.Count,
			}); err != nil {
				h.log.Debug("envoi WebSocket", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
