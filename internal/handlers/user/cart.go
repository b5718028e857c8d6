package user

import (
	"net/http"

	"cedra_orders/internal/cache"
	"cedra_orders/internal/handlers"
	"cedra_orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartHandler struct {
	cart  *services.CartService
	cache *cache.CartCache
	log   *zap.Logger
}

func NewCartHandler(cart *services.CartService, c *cache.CartCache, log *zap.Logger) *CartHandler {
	return &CartHandler{cart: cart, cache: c, log: log}
}

// GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	cart, err := h.cart.GetCart(ctx, userID)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

//
// 🟢 POST /cart/items
//
func (h *CartHandler) AddToCart(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}

	var input struct {
		ListingID string          `json:"listingId" binding:"required"`
		ProductID string          `json:"productId"`
		VendorID  string          `json:"vendorId"`
		Quantity  int             `json:"quantity" binding:"required,min=1"`
		Price     decimal.Decimal `json:"price"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	ctx, cancel := handlers.Context(c)
	defer cancel()

	item, err := h.cart.AddToCart(ctx, userID, services.AddToCartInput{
		ListingID: input.ListingID,
		ProductID: input.ProductID,
		VendorID:  input.VendorID,
		Quantity:  input.Quantity,
		Price:     input.Price,
	})
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// PATCH /cart/items/:listingId ; quantity=0 supprime la ligne.
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	var input struct {
		Quantity *int `json:"quantity" binding:"required,min=0"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	ctx, cancel := handlers.Context(c)
	defer cancel()

	item, err := h.cart.UpdateQuantity(ctx, userID, c.Param("listingId"), *input.Quantity)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Article supprimé"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// DELETE /cart/items/:listingId?saved=true
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	if err := h.cart.DeleteItem(ctx, userID, c.Param("listingId"), c.Query("saved") == "true"); err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Article supprimé"})
}

// DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}
	ctx, cancel := handlers.Context(c)
	defer cancel()

	if err := h.cart.ClearActive(ctx, userID); err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Panier vidé"})
}
