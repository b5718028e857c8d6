package scylla

import (
	"context"
	"fmt"
	"time"

	"cedra_orders/internal/models"

	"github.com/gocql/gocql"
)

type Returns struct {
	session *gocql.Session
}

func NewReturns(session *gocql.Session) *Returns {
	return &Returns{session: session}
}

func (r *Returns) Create(ctx context.Context, req *models.ReturnRequest) error {
	id, err := gocql.ParseUUID(req.ID)
	if err != nil {
		return fmt.Errorf("return_id invalide: %w", err)
	}
	orderID, err := gocql.ParseUUID(req.OrderID)
	if err != nil {
		return fmt.Errorf("order_id invalide: %w", err)
	}

	b := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	b.Query(`INSERT INTO return_requests (return_id, order_id, user_id, reason, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, id, orderID, req.UserID, req.Reason, string(req.Status), req.CreatedAt)
	b.Query(`INSERT INTO return_requests_by_order (order_id, return_id) VALUES (?, ?)`, orderID, id)
	b.Query(`INSERT INTO return_requests_by_user (user_id, created_at, return_id) VALUES (?, ?, ?)`, req.UserID, req.CreatedAt, id)
	return r.session.ExecuteBatch(b)
}

func (r *Returns) Get(ctx context.Context, returnID string) (*models.ReturnRequest, error) {
	id, err := parseID(returnID)
	if err != nil {
		return nil, err
	}
	var (
		req       = models.ReturnRequest{ID: id.String()}
		orderID   gocql.UUID
		status    string
		updatedAt time.Time
	)
	err = r.session.Query(`SELECT order_id, user_id, reason, status, created_at, updated_at
		FROM return_requests WHERE return_id = ?`, id).WithContext(ctx).
		Scan(&orderID, &req.UserID, &req.Reason, &status, &req.CreatedAt, &updatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	req.OrderID = orderID.String()
	req.Status = models.ReturnStatus(status)
	if !updatedAt.IsZero() {
		req.UpdatedAt = &updatedAt
	}
	return &req, nil
}

func (r *Returns) ListByUser(ctx context.Context, userID string) ([]*models.ReturnRequest, error) {
	iter := r.session.Query(`SELECT return_id FROM return_requests_by_user WHERE user_id = ?`, userID).WithContext(ctx).Iter()
	ids, err := scanIDs(iter)
	if err != nil {
		return nil, err
	}
	return loadAll(ctx, ids, r.Get)
}

func (r *Returns) ListByOrder(ctx context.Context, orderID string) ([]*models.ReturnRequest, error) {
	id, err := parseID(orderID)
	if err != nil {
		return []*models.ReturnRequest{}, nil
	}
	ids, err := scanIDs(r.session.Query(`SELECT return_id FROM return_requests_by_order WHERE order_id = ?`, id).WithContext(ctx).Iter())
	if err != nil {
		return nil, err
	}
	return loadAll(ctx, ids, r.Get)
}

func (r *Returns) Update(ctx context.Context, req *models.ReturnRequest) error {
	id, err := parseID(req.ID)
	if err != nil {
		return err
	}
	return r.session.Query(`UPDATE return_requests SET status = ?, updated_at = ? WHERE return_id = ?`,
		string(req.Status), req.UpdatedAt, id).WithContext(ctx).Exec()
}
