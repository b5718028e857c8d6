package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	OrderID       string          `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMode     `json:"method"`
	Status        PaymentStatus   `json:"status"`
	TransactionID string          `json:"transactionId"` // session de checkout, puis payment intent
	RefundID      string          `json:"refundId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Version       int             `json:"version"`
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// ToCents convertit un montant décimal en centimes (stockage bigint).
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// WholeCents : le montant s'exprime exactement en centimes.
func WholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
