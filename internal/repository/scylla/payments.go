package scylla

import (
	"context"
	"fmt"
	"time"

	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"

	"github.com/gocql/gocql"
)

// pendingBucket : partition unique de l'index des paiements en attente,
// son volume reste borné par le TTL du sweep.
const pendingBucket = "pending"

type Payments struct {
	session *gocql.Session
}

func NewPayments(session *gocql.Session) *Payments {
	return &Payments{session: session}
}

func (r *Payments) Create(ctx context.Context, p *models.Payment) error {
	id, err := gocql.ParseUUID(p.ID)
	if err != nil {
		return fmt.Errorf("payment_id invalide: %w", err)
	}
	orderID, err := gocql.ParseUUID(p.OrderID)
	if err != nil {
		return fmt.Errorf("order_id invalide: %w", err)
	}

	b := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	b.Query(`INSERT INTO payments (payment_id, user_id, order_id, amount_cents, method, status, transaction_id,
		refund_id, created_at, updated_at, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.UserID, orderID, models.ToCents(p.Amount), string(p.Method), string(p.Status), p.TransactionID,
		p.RefundID, p.CreatedAt, p.UpdatedAt, p.Version)
	b.Query(`INSERT INTO payments_by_order (order_id, payment_id) VALUES (?, ?)`, orderID, id)
	if p.Status == models.PaymentPending {
		b.Query(`INSERT INTO pending_payments (bucket, created_at, payment_id) VALUES (?, ?, ?)`, pendingBucket, p.CreatedAt, id)
	}
	return r.session.ExecuteBatch(b)
}

func (r *Payments) Get(ctx context.Context, paymentID string) (*models.Payment, error) {
	id, err := parseID(paymentID)
	if err != nil {
		return nil, err
	}
	var (
		p              models.Payment
		orderID        gocql.UUID
		amountCents    int64
		method, status string
	)
	err = r.session.Query(`SELECT user_id, order_id, amount_cents, method, status, transaction_id, refund_id,
		created_at, updated_at, version FROM payments WHERE payment_id = ?`, id).WithContext(ctx).
		Scan(&p.UserID, &orderID, &amountCents, &method, &status, &p.TransactionID, &p.RefundID,
			&p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		return nil, mapErr(err)
	}
	p.ID = id.String()
	p.OrderID = orderID.String()
	p.Amount = models.FromCents(amountCents)
	p.Method = models.PaymentMode(method)
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func (r *Payments) ListByOrder(ctx context.Context, orderID string) ([]*models.Payment, error) {
	id, err := parseID(orderID)
	if err != nil {
		return []*models.Payment{}, nil
	}
	ids, err := scanIDs(r.session.Query(`SELECT payment_id FROM payments_by_order WHERE order_id = ?`, id).WithContext(ctx).Iter())
	if err != nil {
		return nil, err
	}
	return loadAll(ctx, ids, r.Get)
}

func (r *Payments) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*models.Payment, error) {
	iter := r.session.Query(`SELECT created_at, payment_id FROM pending_payments WHERE bucket = ? AND created_at < ?`,
		pendingBucket, cutoff).WithContext(ctx).Iter()

	type entry struct {
		createdAt time.Time
		id        gocql.UUID
	}
	var (
		entries   []entry
		createdAt time.Time
		id        gocql.UUID
	)
	for iter.Scan(&createdAt, &id) {
		entries = append(entries, entry{createdAt, id})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id.String()
	}
	loaded, err := loadAll(ctx, ids, r.Get)
	if err != nil {
		return nil, err
	}

	pending := make([]*models.Payment, 0, len(loaded))
	for _, p := range loaded {
		if p.Status == models.PaymentPending {
			pending = append(pending, p)
			continue
		}
		r.unindexPending(ctx, p)
	}
	return pending, nil
}

func (r *Payments) Update(ctx context.Context, p *models.Payment) error {
	id, err := parseID(p.ID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	current := map[string]interface{}{}
	applied, err := r.session.Query(`UPDATE payments SET status = ?, transaction_id = ?, refund_id = ?,
		updated_at = ?, version = ? WHERE payment_id = ? IF version = ?`,
		string(p.Status), p.TransactionID, p.RefundID, now, p.Version+1, id, p.Version).
		WithContext(ctx).MapScanCAS(current)
	if err != nil {
		return err
	}
	if !applied {
		if _, exists := current["version"]; !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}
	p.Version++
	p.UpdatedAt = now
	if p.Status != models.PaymentPending {
		r.unindexPending(ctx, p)
	}
	return nil
}

// unindexPending : un échec laisse une entrée que le prochain sweep nettoie.
func (r *Payments) unindexPending(ctx context.Context, p *models.Payment) {
	id, err := gocql.ParseUUID(p.ID)
	if err != nil {
		return
	}
	_ = r.session.Query(`DELETE FROM pending_payments WHERE bucket = ? AND created_at = ? AND payment_id = ?`,
		pendingBucket, p.CreatedAt, id).WithContext(ctx).Exec()
}
