package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cedra_orders/internal/app"
	"cedra_orders/internal/cache"
	"cedra_orders/internal/config"
	"cedra_orders/internal/database"
	"cedra_orders/internal/events"
	"cedra_orders/internal/gateway"
	"cedra_orders/internal/handlers"
	invoicehandler "cedra_orders/internal/handlers/invoice"
	"cedra_orders/internal/handlers/payement"
	"cedra_orders/internal/handlers/user"
	"cedra_orders/internal/middleware"
	"cedra_orders/internal/outbound"
	"cedra_orders/internal/routes"
	"cedra_orders/internal/search"
	"cedra_orders/internal/services"
	"cedra_orders/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg, err := config.Load()
	log := newLogger(cfg)
	defer log.Sync()
	if err != nil {
		log.Fatal("❌ configuration invalide", zap.Error(err))
	}
	if cfg.DotEnvLoaded {
		log.Info("fichier .env chargé")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(cfg, log)
	if err != nil {
		log.Fatal("❌ stockage indisponible", zap.Error(err))
	}
	defer stores.Close()

	rdb, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("❌ Redis", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	es, err := database.ConnectElastic(cfg.Elastic, log)
	if err != nil {
		log.Fatal("❌ Elasticsearch", zap.Error(err))
	}
	indexer := search.NewOrderIndexer(es, cfg.Elastic.OrdersIndex)

	var publisher events.Publisher = events.NewLogPublisher(log)
	if rdb != nil {
		publisher = events.NewStreamPublisher(rdb, cfg.Redis.Stream)
	}
	users := cache.NewUserCache(stores.Users, rdb)
	cartCache := cache.NewCartCache(rdb, cfg.Orders.CartCacheTTL, log)

	dispatcher := outbound.New(log, cfg.Orders.OutboundWorkers, cfg.Orders.OutboundQueue, cfg.Orders.OutboundTimeout)

	notifierDeps := services.NotifierDeps{
		Dispatcher: dispatcher,
		Publisher:  publisher,
		Users:      users,
		Log:        log,
	}
	if mailer := utils.NewMailer(cfg.SMTP); mailer != nil {
		notifierDeps.Mailer = mailer
	} else {
		log.Warn("SMTP_HOST absent : emails désactivés")
	}
	if indexer.Enabled() {
		notifierDeps.Index = indexer
	}

	cart := services.NewCartService(stores.Cart, stores.Listings, cartCache, log)
	orders := services.NewOrderService(services.OrderDeps{
		Orders:      stores.Orders,
		Payments:    stores.Payments,
		Addresses:   stores.Addresses,
		Listings:    stores.Listings,
		Users:       users,
		Cart:        cart,
		Gateway:     gateway.NewStripe(cfg.Stripe, cfg.Orders.PaymentPendingTTL),
		Notifier:    services.NewNotifier(notifierDeps),
		Log:         log,
		DispatchSLA: cfg.Orders.CODDispatchSLA,
	})
	reconciler := services.NewReconciler(orders, stores.Processed)
	sweeper := services.NewSweeper(orders, reconciler, cfg.Orders.PaymentPendingTTL, cfg.Orders.SweepInterval)
	returns := services.NewReturnService(orders, stores.Returns)
	log.Info("✅ Stripe initialisé")

	h := routes.Handlers{
		Health:    handlers.NewHealthHandler(dispatcher, cfg.StorageDriver),
		Checkout:  payement.NewCheckoutHandler(orders, log),
		Webhook:   payement.NewWebhookHandler(reconciler, log),
		Admin:     payement.NewAdminHandler(orders, sweeper, log),
		Refunds:   payement.NewRefundHandler(services.NewRefundService(orders), returns, log),
		Dashboard: payement.NewDashboardHandler(indexer, log),
		Orders:    user.NewOrderHandler(orders, returns, log),
		Cart:      user.NewCartHandler(cart, cartCache, log),
	}
	worker, err := app.NewInvoiceWorker(ctx, cfg, stores.Orders, users, publisher, log)
	if err != nil {
		log.Fatal("❌ MinIO", zap.Error(err))
	}
	if worker != nil {
		h.Invoices = invoicehandler.NewHandler(worker, log)
	}

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, h, routes.Options{
		JWTSecret:      cfg.JWTSecret,
		CORSOrigins:    cfg.CORSOrigins,
		Limiter:        cache.NewRateLimiter(rdb),
		OrderRateLimit: cfg.Orders.OrderRateLimit,
		CartRateLimit:  cfg.Orders.CartRateLimit,
		Log:            log,
	})

	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("🚀 Serveur Cedra lancé", zap.String("port", cfg.Port), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ serveur HTTP", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("arrêt en cours")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("arrêt serveur HTTP", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("tâches sortantes abandonnées", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if cfg != nil && cfg.Development() {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}
