package handlers

import (
	"net/http"

	"cedra_orders/internal/outbound"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	dispatcher *outbound.Dispatcher
	driver     string
}

func NewHealthHandler(dispatcher *outbound.Dispatcher, driver string) *HealthHandler {
	return &HealthHandler{dispatcher: dispatcher, driver: driver}
}

// GET /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"storage":  h.driver,
		"outbound": h.dispatcher.Stats(),
	})
}
