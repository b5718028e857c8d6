// Package handlers regroupe les aides HTTP communes aux handlers gin.
package handlers

import (
	"context"
	"net/http"
	"time"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestTimeout borne le traitement d'une requête côté stockage et passerelle.
const RequestTimeout = 10 * time.Second

// RespondError traduit err en statut HTTP et journalise les erreurs serveur.
func RespondError(c *gin.Context, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("erreur requête",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

// BadRequest répond 400 sur un corps JSON invalide.
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
}

// UserID retourne l'utilisateur authentifié, ou répond 401.
func UserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return "", false
	}
	return userID, true
}

func Actor(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:   c.GetString("user_id"),
		Role:     c.GetString("role"),
		VendorID: c.GetString("vendor_id"),
	}
}

func Context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), RequestTimeout)
}
