package payement

import (
	"net/http"

	"cedra_orders/internal/handlers"
	"cedra_orders/internal/models"
	"cedra_orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	orders *services.OrderService
	log    *zap.Logger
}

func NewCheckoutHandler(orders *services.OrderService, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{orders: orders, log: log}
}

type orderItemRequest struct {
	ProductID string          `json:"productId" binding:"required"`
	VendorID  string          `json:"vendorId" binding:"required"`
	ListingID string          `json:"listingId" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	Price     decimal.Decimal `json:"price"`
}

type placeOrderRequest struct {
	Items             []orderItemRequest `json:"items" binding:"required,min=1,dive"`
	TotalAmount       decimal.Decimal    `json:"totalAmount"`
	ShippingAddressID string             `json:"shippingAddressId" binding:"required"`
	PaymentMode       models.PaymentMode `json:"paymentMode" binding:"required"`
}

// POST /orders
// COD : 201 avec la commande confirmée. card/upi : 201 avec l'URL de paiement.
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	userID, ok := handlers.UserID(c)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	in := services.PlaceOrderInput{
		TotalAmount:       req.TotalAmount,
		ShippingAddressID: req.ShippingAddressID,
		PaymentMode:       req.PaymentMode,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, services.OrderItemInput{
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			ListingID: item.ListingID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	ctx, cancel := handlers.Context(c)
	defer cancel()

	res, err := h.orders.PlaceOrder(ctx, userID, in)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}

	if res.CheckoutURL != "" {
		c.JSON(http.StatusCreated, gin.H{
			"checkoutUrl": res.CheckoutURL,
			"sessionId":   res.SessionID,
			"orderId":     res.Order.ID,
		})
		return
	}
	c.JSON(http.StatusCreated, res.Order)
}
