package scylla

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"

	"github.com/gocql/gocql"
)

type Orders struct {
	session *gocql.Session
}

func NewOrders(session *gocql.Session) *Orders {
	return &Orders{session: session}
}

func (r *Orders) Create(ctx context.Context, o *models.Order) error {
	id, err := gocql.ParseUUID(o.ID)
	if err != nil {
		return fmt.Errorf("order_id invalide: %w", err)
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	var address []byte
	if o.ShippingAddress != nil {
		if address, err = json.Marshal(o.ShippingAddress); err != nil {
			return err
		}
	}

	b := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	b.Query(`INSERT INTO orders (order_id, buyer_id, items, total_cents, shipping_address_id, shipping_address,
		payment_mode, status, payment_status, dispatch_status, dispatch_time, placed_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, o.BuyerID, string(items), models.ToCents(o.TotalAmount), o.ShippingAddressID, string(address),
		string(o.PaymentMode), string(o.Status), string(o.PaymentStatus), string(o.DispatchStatus),
		o.DispatchTime, o.PlacedAt, o.UpdatedAt, o.Version)
	b.Query(`INSERT INTO orders_by_buyer (buyer_id, placed_at, order_id) VALUES (?, ?, ?)`, o.BuyerID, o.PlacedAt, id)
	for _, vendorID := range o.VendorIDs() {
		b.Query(`INSERT INTO orders_by_vendor (vendor_id, placed_at, order_id) VALUES (?, ?, ?)`, vendorID, o.PlacedAt, id)
	}
	return r.session.ExecuteBatch(b)
}

func (r *Orders) Get(ctx context.Context, orderID string) (*models.Order, error) {
	id, err := parseID(orderID)
	if err != nil {
		return nil, err
	}

	var (
		o                                         models.Order
		items, address                            string
		totalCents                                int64
		mode, status, paymentStatus, dispatchStat string
		dispatchTime                              time.Time
	)
	err = r.session.Query(`SELECT buyer_id, items, total_cents, shipping_address_id, shipping_address,
		payment_mode, status, payment_status, dispatch_status, dispatch_time, placed_at, updated_at, version
		FROM orders WHERE order_id = ?`, id).WithContext(ctx).
		Scan(&o.BuyerID, &items, &totalCents, &o.ShippingAddressID, &address,
			&mode, &status, &paymentStatus, &dispatchStat, &dispatchTime, &o.PlacedAt, &o.UpdatedAt, &o.Version)
	if err != nil {
		return nil, mapErr(err)
	}

	o.ID = id.String()
	o.TotalAmount = models.FromCents(totalCents)
	o.PaymentMode = models.PaymentMode(mode)
	o.Status = models.OrderStatus(status)
	o.PaymentStatus = models.PaymentStatus(paymentStatus)
	o.DispatchStatus = models.DispatchStatus(dispatchStat)
	if !dispatchTime.IsZero() {
		o.DispatchTime = &dispatchTime
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("items corrompus pour %s: %w", o.ID, err)
	}
	if address != "" {
		var a models.Address
		if err := json.Unmarshal([]byte(address), &a); err == nil {
			o.ShippingAddress = &a
		}
	}
	return &o, nil
}

func (r *Orders) ListByBuyer(ctx context.Context, buyerID string) ([]*models.Order, error) {
	ids, err := scanIDs(r.session.Query(`SELECT order_id FROM orders_by_buyer WHERE buyer_id = ?`, buyerID).WithContext(ctx).Iter())
	if err != nil {
		return nil, err
	}
	return loadAll(ctx, ids, r.Get)
}

func (r *Orders) ListByVendor(ctx context.Context, vendorID string) ([]*models.Order, error) {
	ids, err := scanIDs(r.session.Query(`SELECT order_id FROM orders_by_vendor WHERE vendor_id = ?`, vendorID).WithContext(ctx).Iter())
	if err != nil {
		return nil, err
	}
	return loadAll(ctx, ids, r.Get)
}

// Update n'écrit que les champs mutables ; les lignes et le total sont figés à la création.
func (r *Orders) Update(ctx context.Context, o *models.Order) error {
	id, err := parseID(o.ID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	current := map[string]interface{}{}
	applied, err := r.session.Query(`UPDATE orders SET status = ?, payment_status = ?, dispatch_status = ?,
		dispatch_time = ?, updated_at = ?, version = ? WHERE order_id = ? IF version = ?`,
		string(o.Status), string(o.PaymentStatus), string(o.DispatchStatus), o.DispatchTime, now,
		o.Version+1, id, o.Version).WithContext(ctx).MapScanCAS(current)
	if err != nil {
		return err
	}
	if !applied {
		if _, exists := current["version"]; !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}
	o.Version++
	o.UpdatedAt = now
	return nil
}
