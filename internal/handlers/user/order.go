package user

import (
	"net/http"

	"cedra_orders/internal/handlers"
	"cedra_orders/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders  *services.OrderService
	returns *services.ReturnService
	log     *zap.Logger
}

func NewOrderHandler(orders *services.OrderService, returns *services.ReturnService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, returns: returns, log: log}
}

// GET /orders/mine
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	orders, err := h.orders.GetOrdersByUser(ctx, userID)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GET /orders/:orderId
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	if _, ok := handlers.UserID(c); !ok {
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, c.Param("orderId"), handlers.Actor(c))
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// POST /orders/:orderId/cancel
// Une commande expédiée renvoie 200 avec success=false.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	res, err := h.orders.CancelOrder(ctx, c.Param("orderId"), userID)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /orders/:orderId/returns
func (h *OrderHandler) RequestReturn(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required,max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	ret, err := h.returns.RequestReturn(ctx, c.Param("orderId"), userID, req.Reason)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, ret)
}

// GET /orders/returns/mine
func (h *OrderHandler) GetMyReturns(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	returns, err := h.returns.ListMine(ctx, userID)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"returns": returns})
}
