package payement

import (
	"net/http"

	"cedra_orders/internal/handlers"
	"cedra_orders/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	orders  *services.OrderService
	sweeper *services.Sweeper
	log     *zap.Logger
}

func NewAdminHandler(orders *services.OrderService, sweeper *services.Sweeper, log *zap.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, sweeper: sweeper, log: log}
}

// PATCH /admin/orders/:orderId/status
func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	ctx, cancel := handlers.Context(c)
	defer cancel()

	order, err := h.orders.UpdateOrderStatus(ctx, c.Param("orderId"), req.Status)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// PATCH /admin/orders/:orderId/dispatch (admin) et /vendor/orders/:orderId/dispatch
func (h *AdminHandler) UpdateDispatchStatus(c *gin.Context) {
	var req struct {
		DispatchStatus string `json:"dispatchStatus" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	ctx, cancel := handlers.Context(c)
	defer cancel()

	order, err := h.orders.UpdateDispatchStatus(ctx, c.Param("orderId"), req.DispatchStatus, handlers.Actor(c))
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// POST /admin/payments/sweep
func (h *AdminHandler) SweepPayments(c *gin.Context) {
	report, err := h.sweeper.SweepOnce(c.Request.Context())
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GET /vendor/orders
func (h *AdminHandler) VendorOrders(c *gin.Context) {
	ctx, cancel := handlers.Context(c)
	defer cancel()

	orders, err := h.orders.GetVendorOrders(ctx, c.GetString("vendor_id"))
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
