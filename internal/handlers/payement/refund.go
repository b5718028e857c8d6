package payement

import (
	"net/http"

	"cedra_orders/internal/handlers"
	"cedra_orders/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RefundHandler struct {
	refunds *services.RefundService
	returns *services.ReturnService
	log     *zap.Logger
}

func NewRefundHandler(refunds *services.RefundService, returns *services.ReturnService, log *zap.Logger) *RefundHandler {
	return &RefundHandler{refunds: refunds, returns: returns, log: log}
}

// POST /admin/orders/:orderId/refund
func (h *RefundHandler) RefundOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"omitempty,oneof=duplicate fraudulent requested_by_customer"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handlers.BadRequest(c, err)
			return
		}
	}

	ctx, cancel := handlers.Context(c)
	defer cancel()

	res, err := h.refunds.RefundOrder(ctx, c.Param("orderId"), req.Reason)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	h.log.Info("commande remboursée",
		zap.String("order_id", res.Order.ID), zap.String("refund_id", res.RefundID), zap.String("admin_id", c.GetString("user_id")))
	c.JSON(http.StatusOK, res)
}

// POST /admin/returns/:returnId/decision
func (h *RefundHandler) DecideReturn(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required,oneof=approve reject"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	ctx, cancel := handlers.Context(c)
	defer cancel()

	ret, err := h.returns.DecideReturn(ctx, c.Param("returnId"), req.Action)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, ret)
}
