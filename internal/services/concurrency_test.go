package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"cedra_orders/internal/gateway/gatewaytest"
	"cedra_orders/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const concurrentDeliveries = 16

// runConcurrently lance fn n fois en parallèle, départ simultané.
func runConcurrently(n int, fn func(i int)) {
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
}

func countOutcomes(outcomes []Outcome) map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, o := range outcomes {
		counts[o]++
	}
	return counts
}

func TestConcurrentRedeliveryConfirmsOnce(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")
	res := h.placeCard(t, "buyer-1", "addr-1")
	sess := h.gw.Complete(res.SessionID)
	payload, sig := gatewaytest.Delivery("evt_same", "checkout.session.completed", sess)

	outcomes := make([]Outcome, concurrentDeliveries)
	errs := make([]error, concurrentDeliveries)
	runConcurrently(concurrentDeliveries, func(i int) {
		outcomes[i], errs[i] = h.reconciler.HandleWebhook(context.Background(), payload, sig)
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	counts := countOutcomes(outcomes)
	assert.Equal(t, 1, counts[OutcomeConfirmed])
	assert.Equal(t, concurrentDeliveries-1, counts[OutcomeDuplicate])

	assert.Equal(t, models.OrderConfirmed, h.order(t, res.Order.ID).Status)
	assert.Equal(t, models.PaymentSuccess, h.payment(t, res.Payment.ID).Status)
	assert.Len(t, h.recorder.OfType(models.EventInvoiceGenerate), 1)
	assert.Empty(t, h.activeCart(t, "buyer-1"))
}

// Stripe peut livrer completed et async_payment_succeeded, chacun sous son propre id.
func TestConcurrentDistinctEventsConfirmOnce(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")
	res := h.placeCard(t, "buyer-1", "addr-1")
	sess := h.gw.Complete(res.SessionID)

	outcomes := make([]Outcome, concurrentDeliveries)
	errs := make([]error, concurrentDeliveries)
	runConcurrently(concurrentDeliveries, func(i int) {
		typ := "checkout.session.completed"
		if i%2 == 1 {
			typ = "checkout.session.async_payment_succeeded"
		}
		payload, sig := gatewaytest.Delivery(fmt.Sprintf("evt_%d", i), typ, sess)
		outcomes[i], errs[i] = h.reconciler.HandleWebhook(context.Background(), payload, sig)
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	counts := countOutcomes(outcomes)
	assert.Equal(t, 1, counts[OutcomeConfirmed])
	assert.Equal(t, concurrentDeliveries-1, counts[OutcomeAlreadyApplied])
	assert.Len(t, h.recorder.OfType(models.EventInvoiceGenerate), 1)
	assert.Empty(t, h.activeCart(t, "buyer-1"))
}

// L'acheteur annule pendant que le webhook de paiement arrive : la commande
// finit confirmée et payée, ou annulée et remboursée une seule fois.
func TestCancelRacesWebhook(t *testing.T) {
	for run := 0; run < 25; run++ {
		t.Run(fmt.Sprintf("run_%d", run), func(t *testing.T) {
			h := newHarness(t)
			h.fillCart(t, "buyer-1")
			res := h.placeCard(t, "buyer-1", "addr-1")
			sess := h.gw.Complete(res.SessionID)
			payload, sig := gatewaytest.Delivery("evt_race", "checkout.session.completed", sess)

			var (
				cancelRes  *CancelResult
				cancelErr  error
				webhookErr error
			)
			runConcurrently(2, func(i int) {
				if i == 0 {
					cancelRes, cancelErr = h.svc.CancelOrder(context.Background(), res.Order.ID, "buyer-1")
					return
				}
				_, webhookErr = h.reconciler.HandleWebhook(context.Background(), payload, sig)
			})
			require.NoError(t, cancelErr)
			require.NoError(t, webhookErr)

			order := h.order(t, res.Order.ID)
			payment := h.payment(t, res.Payment.ID)
			assert.Equal(t, models.PaymentSuccess, payment.Status, "la capture est toujours enregistrée")

			switch order.Status {
			case models.OrderConfirmed:
				assert.False(t, cancelRes.Success)
				assert.Equal(t, models.PaymentSuccess, order.PaymentStatus)
				assert.Empty(t, payment.RefundID)
				assert.Empty(t, h.gw.Refunds)
			case models.OrderCanceled:
				assert.True(t, cancelRes.Success)
				require.Len(t, h.gw.Refunds, 1, "un seul remboursement émis")
				assert.Equal(t, h.gw.Refunds[0].RefundID, payment.RefundID)
				assert.Len(t, h.recorder.OfType(models.EventOrderRefunded), 1)
				assert.Empty(t, h.recorder.OfType(models.EventRefundRequired))
			default:
				t.Fatalf("statut inattendu %s", order.Status)
			}
		})
	}
}

// Même course, passerelle en panne : l'argent capturé est signalé, jamais perdu.
func TestCancelRacesWebhookRefundDeclined(t *testing.T) {
	for run := 0; run < 10; run++ {
		t.Run(fmt.Sprintf("run_%d", run), func(t *testing.T) {
			h := newHarness(t)
			h.fillCart(t, "buyer-1")
			res := h.placeCard(t, "buyer-1", "addr-1")
			sess := h.gw.Complete(res.SessionID)
			h.gw.RefundErr = errors.New("stripe 503")
			payload, sig := gatewaytest.Delivery("evt_race", "checkout.session.completed", sess)

			runConcurrently(2, func(i int) {
				if i == 0 {
					_, _ = h.svc.CancelOrder(context.Background(), res.Order.ID, "buyer-1")
					return
				}
				_, _ = h.reconciler.HandleWebhook(context.Background(), payload, sig)
			})

			order := h.order(t, res.Order.ID)
			require.Equal(t, models.OrderCanceled, order.Status)
			assert.Empty(t, h.payment(t, res.Payment.ID).RefundID)
			assert.NotEmpty(t, h.recorder.OfType(models.EventRefundRequired))
			assert.Empty(t, h.recorder.OfType(models.EventOrderRefunded))
		})
	}
}
