package utils

import (
	"time"

	"cedra_orders/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateJWT signe un jeton HS256 au format émis par le service utilisateurs.
func GenerateJWT(secret string, user models.User, vendorID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	if vendorID != "" {
		claims["vendor_id"] = vendorID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
