package models

import "time"

const (
	EventOrderCreated     = "order.created"
	EventOrderCancelled   = "order.cancelled"
	EventOrderReturned    = "order.returned"
	EventOrderRefunded    = "order.refunded"
	EventRefundRequired   = "order.refund_required"
	EventInvoiceGenerate  = "invoice.generate"
	EventInvoiceGenerated = "invoice.generated"
)

// Event est publié sur le stream Redis des commandes.
type Event struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	OrderID     string            `json:"orderId"`
	UserID      string            `json:"userId"`
	PdfURL      string            `json:"pdfUrl,omitempty"`
	GeneratedAt *time.Time        `json:"generatedAt,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
	Data        map[string]string `json:"data,omitempty"`
}
