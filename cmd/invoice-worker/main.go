package main

import (
	"context"
	"os/signal"
	"syscall"

	"cedra_orders/internal/app"
	"cedra_orders/internal/cache"
	"cedra_orders/internal/config"
	"cedra_orders/internal/database"
	"cedra_orders/internal/events"
	"cedra_orders/internal/models"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	log, _ := zap.NewProduction()
	if cfg != nil && cfg.Development() {
		log, _ = zap.NewDevelopment()
	}
	defer log.Sync()
	if err != nil {
		log.Fatal("❌ configuration invalide", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Redis.Addr == "" {
		log.Fatal("❌ REDIS_HOST requis pour consommer le stream des commandes")
	}
	rdb, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("❌ Redis", zap.Error(err))
	}
	defer rdb.Close()

	stores, err := app.OpenStores(cfg, log)
	if err != nil {
		log.Fatal("❌ stockage indisponible", zap.Error(err))
	}
	defer stores.Close()

	publisher := events.NewStreamPublisher(rdb, cfg.Redis.Stream)
	worker, err := app.NewInvoiceWorker(ctx, cfg, stores.Orders, cache.NewUserCache(stores.Users, rdb), publisher, log)
	if err != nil {
		log.Fatal("❌ MinIO", zap.Error(err))
	}
	if worker == nil {
		log.Fatal("❌ MINIO_ENDPOINT requis")
	}

	consumer := events.NewConsumer(rdb, cfg.Redis.Stream, cfg.Invoice.Group, cfg.Invoice.Consumer, log, models.EventInvoiceGenerate)
	log.Info("🧾 worker factures démarré",
		zap.String("stream", cfg.Redis.Stream),
		zap.String("group", cfg.Invoice.Group),
		zap.String("consumer", cfg.Invoice.Consumer))
	if err := consumer.Run(ctx, worker.Handle); err != nil {
		log.Fatal("❌ consumer group", zap.Error(err))
	}
	log.Info("worker factures arrêté")
}
