package app

import (
	"context"

	"cedra_orders/internal/config"
	"cedra_orders/internal/database"
	"cedra_orders/internal/events"
	"cedra_orders/internal/invoice"
	"cedra_orders/internal/repository"
	"cedra_orders/internal/storage"
	"cedra_orders/internal/utils"

	"go.uber.org/zap"
)

// NewInvoiceWorker retourne (nil, nil) si MINIO_ENDPOINT n'est pas défini.
func NewInvoiceWorker(ctx context.Context, cfg *config.Config, orders repository.OrderRepository, users repository.UserRepository, publisher events.Publisher, log *zap.Logger) (*invoice.Worker, error) {
	if cfg.MinIO.Endpoint == "" {
		log.Warn("MINIO_ENDPOINT absent : génération des factures désactivée")
		return nil, nil
	}
	client, err := database.ConnectMinIO(ctx, cfg.MinIO, log)
	if err != nil {
		return nil, err
	}

	deps := invoice.Deps{
		Orders:    orders,
		Users:     users,
		Renderer:  utils.NewInvoiceRenderer(cfg.Invoice),
		Store:     storage.NewInvoiceStore(client, cfg.MinIO.Bucket, cfg.MinIO.URLExpiry),
		Publisher: publisher,
		Log:       log,
	}
	if mailer := utils.NewMailer(cfg.SMTP); mailer != nil {
		deps.Mailer = mailer
	}
	return invoice.NewWorker(deps), nil
}
