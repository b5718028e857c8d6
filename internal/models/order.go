package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCanceled  OrderStatus = "canceled"
	OrderReturned  OrderStatus = "returned"
	OrderRefunded  OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

type DispatchStatus string

const (
	DispatchNotStarted DispatchStatus = "not_started"
	DispatchPreparing  DispatchStatus = "preparing"
	DispatchDispatched DispatchStatus = "dispatched"
	DispatchInTransit  DispatchStatus = "in_transit"
	DispatchDelivered  DispatchStatus = "delivered"
	DispatchFailed     DispatchStatus = "failed"
)

type PaymentMode string

const (
	PaymentCard PaymentMode = "card"
	PaymentCOD  PaymentMode = "cod"
	PaymentUPI  PaymentMode = "upi"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCard, PaymentCOD, PaymentUPI:
		return true
	}
	return false
}

// Online indique si le mode passe par une session de paiement externe.
func (m PaymentMode) Online() bool {
	return m == PaymentCard || m == PaymentUPI
}

type OrderItem struct {
	ProductID  string          `json:"productId"`
	ListingID  string          `json:"listingId"`
	VendorID   string          `json:"vendorId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type Order struct {
	ID                string          `json:"id"`
	BuyerID           string          `json:"buyerId"`
	Items             []OrderItem     `json:"items"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	ShippingAddressID string          `json:"shippingAddressId"`
	ShippingAddress   *Address        `json:"shippingAddress,omitempty"` // snapshot au moment de la commande
	PaymentMode       PaymentMode     `json:"paymentMode"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	DispatchStatus    DispatchStatus  `json:"dispatchStatus"`
	DispatchTime      *time.Time      `json:"dispatchTime,omitempty"`
	PlacedAt          time.Time       `json:"placedAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	Version           int             `json:"version"`
}

// VendorIDs retourne les vendeurs distincts présents dans la commande.
func (o *Order) VendorIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if item.VendorID == "" || seen[item.VendorID] {
			continue
		}
		seen[item.VendorID] = true
		ids = append(ids, item.VendorID)
	}
	return ids
}

func (o *Order) HasVendor(vendorID string) bool {
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			return true
		}
	}
	return false
}

// Clone retourne une copie profonde, les repositories ne partagent jamais leurs pointeurs.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		cp.ShippingAddress = &addr
	}
	if o.DispatchTime != nil {
		t := *o.DispatchTime
		cp.DispatchTime = &t
	}
	return &cp
}

// SumItems recalcule le total à partir des lignes.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
