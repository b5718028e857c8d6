package payement

import (
	"net/http"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxBodyBytes borne le corps d'un webhook Stripe.
const MaxBodyBytes = int64(65536)

type WebhookHandler struct {
	reconciler *services.Reconciler
	log        *zap.Logger
}

func NewWebhookHandler(reconciler *services.Reconciler, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, log: log}
}

// POST /payments/stripe/webhook
// 400 uniquement sur signature invalide ; Stripe relivre sur 5xx.
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		h.log.Warn("lecture webhook", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Erreur lecture webhook"})
		return
	}

	outcome, err := h.reconciler.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
	case apperr.Is(err, apperr.KindSecurity):
		h.log.Warn("signature webhook invalide", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
	case apperr.Is(err, apperr.KindValidation):
		// événement inexploitable : acquitté, la relivraison n'y changerait rien
		c.JSON(http.StatusOK, gin.H{"received": true, "error": apperr.PublicMessage(err)})
	default:
		h.log.Error("webhook non traité", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur traitement webhook"})
	}
}
