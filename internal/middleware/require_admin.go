package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin vérifie que l'utilisateur a le rôle "admin"
func RequireAdmin(c *gin.Context) {
	if c.GetString("role") != "admin" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Accès réservé aux administrateurs"})
		return
	}
	c.Next()
}

// RequireVendor exige le rôle vendor et un vendor_id dans le jeton.
func RequireVendor(c *gin.Context) {
	if c.GetString("role") != "vendor" || c.GetString("vendor_id") == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Accès réservé aux vendeurs"})
		return
	}
	c.Next()
}
