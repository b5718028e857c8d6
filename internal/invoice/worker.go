// Package invoice génère les factures des commandes confirmées : rendu PDF,
// dépôt MinIO, envoi au client puis événement invoice.generated.
package invoice

import (
	"context"
	"fmt"
	"time"

	"cedra_orders/internal/events"
	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"
	"cedra_orders/internal/utils"

	"go.uber.org/zap"
)

type Renderer interface {
	Render(ctx context.Context, order *models.Order) ([]byte, error)
}

type Store interface {
	Upload(ctx context.Context, orderID string, pdf []byte) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, e utils.Email) error
}

type Deps struct {
	Orders    repository.OrderRepository
	Users     repository.UserRepository
	Renderer  Renderer
	Store     Store
	Mailer    Mailer // optionnel
	Publisher events.Publisher
	Log       *zap.Logger
	Now       func() time.Time
}

type Worker struct {
	d Deps
}

func NewWorker(d Deps) *Worker {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Worker{d: d}
}

// Handle traite un événement invoice.generate. Une erreur laisse le message
// en attente dans le stream.
func (w *Worker) Handle(ctx context.Context, ev models.Event) error {
	if ev.Type != models.EventInvoiceGenerate {
		return nil
	}
	_, err := w.Generate(ctx, ev.OrderID)
	return err
}

// Generate produit et envoie la facture d'une commande, retourne l'URL signée.
func (w *Worker) Generate(ctx context.Context, orderID string) (string, error) {
	log := w.d.Log.With(zap.String("order_id", orderID))

	order, err := w.d.Orders.Get(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("commande %s: %w", orderID, err)
	}
	if order.PaymentStatus != models.PaymentSuccess {
		log.Warn("facture ignorée, paiement non encaissé", zap.String("payment_status", string(order.PaymentStatus)))
		return "", nil
	}

	pdf, err := w.d.Renderer.Render(ctx, order)
	if err != nil {
		log.Error("erreur PDF", zap.Error(err))
		return "", err
	}
	pdfURL, err := w.d.Store.Upload(ctx, order.ID, pdf)
	if err != nil {
		log.Error("erreur upload facture", zap.Error(err))
		return "", err
	}

	if w.d.Mailer != nil {
		if err := w.send(ctx, order, pdfURL, pdf); err != nil {
			log.Error("erreur envoi facture", zap.Error(err))
			return "", err
		}
	}

	generatedAt := w.d.Now()
	err = w.d.Publisher.Publish(ctx, models.Event{
		Type:        models.EventInvoiceGenerated,
		OrderID:     order.ID,
		UserID:      order.BuyerID,
		PdfURL:      pdfURL,
		GeneratedAt: &generatedAt,
	})
	if err != nil {
		log.Error("publication invoice.generated", zap.Error(err))
		return "", err
	}
	log.Info("facture générée", zap.Int("bytes", len(pdf)))
	return pdfURL, nil
}

func (w *Worker) send(ctx context.Context, order *models.Order, pdfURL string, pdf []byte) error {
	user, err := w.d.Users.Get(ctx, order.BuyerID)
	if err != nil {
		return fmt.Errorf("utilisateur %s: %w", order.BuyerID, err)
	}
	html, err := utils.InvoiceEmailHTML(order.ID, pdfURL)
	if err != nil {
		return err
	}
	return w.d.Mailer.Send(ctx, utils.Email{
		To:      user.Email,
		Subject: "Votre facture Cedra",
		HTML:    html,
		Attachments: []utils.Attachment{
			{Name: utils.InvoiceReference(order.ID) + ".pdf", Data: pdf},
		},
	})
}
