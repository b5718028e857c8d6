package user

import (
	"net/http"

	"cedra_orders/internal/handlers"

	"github.com/gin-gonic/gin"
)

// GET /cart/wishlist
func (h *CartHandler) GetWishlist(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	wishlist, err := h.cart.GetWishlist(ctx, userID)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, wishlist)
}

// POST /cart/items/:listingId/save-for-later
// Bascule la ligne entre le panier actif et la liste pour plus tard.
func (h *CartHandler) ToggleSaveForLater(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	item, err := h.cart.ToggleSaveForLater(ctx, userID, c.Param("listingId"))
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
