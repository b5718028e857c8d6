package models

import "github.com/shopspring/decimal"

// Listing est l'offre d'un vendeur pour un produit du catalogue.
type Listing struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	VendorID  string          `json:"vendorId"`
	Title     string          `json:"title,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}
