package routes

import (
	"time"

	"cedra_orders/internal/cache"
	"cedra_orders/internal/handlers"
	"cedra_orders/internal/handlers/invoice"
	"cedra_orders/internal/handlers/payement"
	"cedra_orders/internal/handlers/user"
	"cedra_orders/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Checkout  *payement.CheckoutHandler
	Webhook   *payement.WebhookHandler
	Admin     *payement.AdminHandler
	Refunds   *payement.RefundHandler
	Dashboard *payement.DashboardHandler
	Orders    *user.OrderHandler
	Cart      *user.CartHandler
	Invoices  *invoice.Handler // optionnel (MinIO requis)
}

type Options struct {
	JWTSecret      string
	CORSOrigins    []string
	Limiter        *cache.RateLimiter
	OrderRateLimit int
	CartRateLimit  int
	Log            *zap.Logger
}

func RegisterRoutes(r *gin.Engine, h Handlers, opt Options) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     opt.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", h.Health.Health)

	// Webhook Stripe : corps brut, pas d'authentification
	r.POST("/payments/stripe/webhook", h.Webhook.StripeWebhook)

	auth := middleware.AuthRequired(opt.JWTSecret)
	orderLimit := middleware.RateLimit(opt.Limiter, "rl:orders", opt.OrderRateLimit, middleware.RateWindow, opt.Log)
	cartLimit := middleware.RateLimit(opt.Limiter, "rl:cart", opt.CartRateLimit, middleware.RateWindow, opt.Log)

	// Commandes
	orders := r.Group("/orders", auth)
	{
		orders.POST("", orderLimit, h.Checkout.PlaceOrder)
		orders.GET("/mine", h.Orders.GetMyOrders)
		orders.GET("/returns/mine", h.Orders.GetMyReturns)
		orders.GET("/:orderId", h.Orders.GetOrderByID)
		orders.POST("/:orderId/cancel", h.Orders.CancelOrder)
		orders.POST("/:orderId/returns", h.Orders.RequestReturn)
	}

	// Panier
	cart := r.Group("/cart", auth)
	{
		cart.GET("", h.Cart.GetCart)
		cart.GET("/wishlist", h.Cart.GetWishlist)
		cart.GET("/ws", h.Cart.CartWebSocket)
		cart.POST("/items", cartLimit, h.Cart.AddToCart)
		cart.PATCH("/items/:listingId", cartLimit, h.Cart.UpdateQuantity)
		cart.DELETE("/items/:listingId", cartLimit, h.Cart.RemoveItem)
		cart.POST("/items/:listingId/save-for-later", cartLimit, h.Cart.ToggleSaveForLater)
		cart.DELETE("", cartLimit, h.Cart.ClearCart)
	}

	// Vendeurs
	vendor := r.Group("/vendor", auth, middleware.RequireVendor)
	{
		vendor.GET("/orders", h.Admin.VendorOrders)
		vendor.PATCH("/orders/:orderId/dispatch", h.Admin.UpdateDispatchStatus)
	}

	// Administration
	admin := r.Group("/admin", auth, middleware.RequireAdmin, middleware.AuditAdmin(opt.Log))
	{
		admin.GET("/orders/search", h.Dashboard.SearchOrders)
		admin.PATCH("/orders/:orderId/status", h.Admin.UpdateOrderStatus)
		admin.PATCH("/orders/:orderId/dispatch", h.Admin.UpdateDispatchStatus)
		admin.POST("/orders/:orderId/refund", h.Refunds.RefundOrder)
		admin.POST("/returns/:returnId/decision", h.Refunds.DecideReturn)
		admin.POST("/payments/sweep", h.Admin.SweepPayments)
		if h.Invoices != nil {
			admin.POST("/invoices/:id/send", h.Invoices.SendInvoice)
		}
	}
}
