package invoice

import (
	"context"
	"errors"
	"net/http"
	"time"

	invoicegen "cedra_orders/internal/invoice"
	"cedra_orders/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// sendTimeout couvre le rendu Chrome et l'envoi SMTP.
const sendTimeout = 60 * time.Second

type Handler struct {
	worker *invoicegen.Worker
	log    *zap.Logger
}

func NewHandler(worker *invoicegen.Worker, log *zap.Logger) *Handler {
	return &Handler{worker: worker, log: log}
}

// POST /admin/invoices/:id/send
func (h *Handler) SendInvoice(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), sendTimeout)
	defer cancel()

	url, err := h.worker.Generate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "commande introuvable"})
		return
	}
	if err != nil {
		h.log.Error("envoi facture", zap.String("order_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur génération facture"})
		return
	}
	if url == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "commande non payée"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "facture envoyée",
		"pdfUrl":  url,
	})
}
