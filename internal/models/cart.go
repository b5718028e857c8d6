package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	UserID        string          `json:"userId"`
	ListingID     string          `json:"listingId"`
	ProductID     string          `json:"productId"`
	VendorID      string          `json:"vendorId"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	SavedForLater bool            `json:"savedForLater"`
	AddedAt       time.Time       `json:"addedAt"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func NewCart(items []CartItem) Cart {
	if items == nil {
		items = []CartItem{}
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return Cart{Items: items, Total: total, Count: len(items)}
}
