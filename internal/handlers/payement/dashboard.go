package payement

import (
	"errors"
	"net/http"
	"strconv"

	"cedra_orders/internal/handlers"
	"cedra_orders/internal/search"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	index *search.OrderIndexer
	log   *zap.Logger
}

func NewDashboardHandler(index *search.OrderIndexer, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{index: index, log: log}
}

// GET /admin/orders/search?status=&paymentStatus=&vendorId=&buyerId=&size=
func (h *DashboardHandler) SearchOrders(c *gin.Context) {
	size, err := strconv.Atoi(c.DefaultQuery("size", "50"))
	if err != nil || size <= 0 || size > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size invalide"})
		return
	}

	ctx, cancel := handlers.Context(c)
	defer cancel()

	docs, err := h.index.Search(ctx, search.Query{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("paymentStatus"),
		VendorID:      c.Query("vendorId"),
		BuyerID:       c.Query("buyerId"),
		Size:          size,
	})
	if errors.Is(err, search.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Recherche indisponible"})
		return
	}
	if err != nil {
		h.log.Error("recherche commandes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur recherche"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": docs, "count": len(docs)})
}
