package services

import (
	"context"
	"time"

	"cedra_orders/internal/gateway"
	"cedra_orders/internal/models"

	"go.uber.org/zap"
)

type SweepReport struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	StillOpen int `json:"stillOpen"`
	Errors    int `json:"errors"`
}

// Sweeper rattrape les paiements restés en attente au-delà de ttl : la
// passerelle fait foi, une session payée est confirmée, les autres échouent.
type Sweeper struct {
	orders     *OrderService
	reconciler *Reconciler
	ttl        time.Duration
	interval   time.Duration
}

func NewSweeper(orders *OrderService, reconciler *Reconciler, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{orders: orders, reconciler: reconciler, ttl: ttl, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.SweepOnce(ctx)
			if err != nil {
				s.orders.Log.Error("balayage des paiements", zap.Error(err))
				continue
			}
			if report.Checked > 0 {
				s.orders.Log.Info("balayage des paiements",
					zap.Int("checked", report.Checked), zap.Int("confirmed", report.Confirmed),
					zap.Int("failed", report.Failed), zap.Int("still_open", report.StillOpen), zap.Int("errors", report.Errors))
			}
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	cutoff := s.orders.Now().Add(-s.ttl)
	pending, err := s.orders.Payments.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return report, storeErr(err, "list pending payments")
	}

	for _, p := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++
		log := s.orders.Log.With(zap.String("payment_id", p.ID), zap.String("order_id", p.OrderID))

		outcome, err := s.settle(ctx, p)
		if err != nil {
			report.Errors++
			log.Warn("paiement en attente non résolu", zap.Error(err))
			continue
		}
		switch outcome {
		case OutcomeConfirmed, OutcomeRefundRequired, OutcomeRefunded:
			report.Confirmed++
		case OutcomeExpired, OutcomeAlreadyApplied:
			report.Failed++
		case OutcomeIgnored:
			report.StillOpen++
		}
	}
	return report, nil
}

func (s *Sweeper) settle(ctx context.Context, p *models.Payment) (Outcome, error) {
	if p.TransactionID == "" || !p.Method.Online() {
		return s.reconciler.ExpirePayment(ctx, p.ID, p.OrderID)
	}

	sess, err := s.orders.Gateway.GetSession(ctx, p.TransactionID)
	if err != nil {
		return "", err
	}
	switch {
	case sess.Paid():
		if len(sess.Metadata) == 0 {
			sess.Metadata = map[string]string{}
		}
		if sess.Metadata["paymentId"] == "" {
			sess.Metadata["paymentId"] = p.ID
			sess.Metadata["orderId"] = p.OrderID
			sess.Metadata["userId"] = p.UserID
		}
		return s.reconciler.ApplySuccess(ctx, sess)
	case sess.Status == gateway.SessionComplete:
		// paiement asynchrone en cours
		return OutcomeIgnored, nil
	case sess.Status == gateway.SessionOpen:
		if err := s.orders.Gateway.ExpireSession(ctx, sess.ID); err != nil {
			return OutcomeIgnored, nil
		}
	}
	return s.reconciler.ExpirePayment(ctx, p.ID, p.OrderID)
}
