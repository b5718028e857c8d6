package services

import (
	"context"
	"errors"
	"testing"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/gateway/gatewaytest"
	"cedra_orders/internal/models"
	"cedra_orders/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrderRejectsTotalMismatch(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")

	for _, total := range []string{"20", "25.01", "0"} {
		_, err := h.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderInput{
			Items:             scenarioItems(),
			TotalAmount:       dec(total),
			ShippingAddressID: "addr-1",
			PaymentMode:       models.PaymentCard,
		})
		require.Error(t, err, total)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, "Total amount mismatch", apperr.PublicMessage(err))
	}

	assert.Zero(t, h.orders.Count(), "aucune commande créée")
	assert.Zero(t, h.payments.Count(), "aucun paiement créé")
	assert.Empty(t, h.gw.Created)
	assert.Len(t, h.activeCart(t, "buyer-1"), 2)
}

func TestPlaceOrderValidation(t *testing.T) {
	tests := []struct {
		name string
		in   PlaceOrderInput
		kind apperr.Kind
	}{
		{"mode inconnu", PlaceOrderInput{Items: scenarioItems(), TotalAmount: dec("25"), ShippingAddressID: "addr-1", PaymentMode: "cheque"}, apperr.KindValidation},
		{"sans article", PlaceOrderInput{TotalAmount: dec("0"), ShippingAddressID: "addr-1", PaymentMode: models.PaymentCard}, apperr.KindValidation},
		{"quantité nulle", PlaceOrderInput{Items: []OrderItemInput{{ProductID: "p", VendorID: "v", ListingID: "l", Quantity: 0, Price: dec("1")}}, ShippingAddressID: "addr-1", PaymentMode: models.PaymentCOD}, apperr.KindValidation},
		{"adresse inconnue", PlaceOrderInput{Items: scenarioItems(), TotalAmount: dec("25"), ShippingAddressID: "addr-x", PaymentMode: models.PaymentCard}, apperr.KindNotFound},
		{"adresse d'un autre", PlaceOrderInput{Items: scenarioItems(), TotalAmount: dec("25"), ShippingAddressID: "addr-2", PaymentMode: models.PaymentCard}, apperr.KindNotFound},
		{"prix sous le centime", PlaceOrderInput{Items: []OrderItemInput{{ProductID: "p", VendorID: "v", ListingID: "l", Quantity: 3, Price: dec("0.333")}}, TotalAmount: dec("0.999"), ShippingAddressID: "addr-1", PaymentMode: models.PaymentCard}, apperr.KindValidation},
		{"total sous le centime", PlaceOrderInput{Items: scenarioItems(), TotalAmount: dec("25.001"), ShippingAddressID: "addr-1", PaymentMode: models.PaymentCard}, apperr.KindValidation},
	}

	h := newHarness(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.PlaceOrder(context.Background(), "buyer-1", tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
	assert.Zero(t, h.orders.Count())
}

func TestCardOrderThenWebhookConfirms(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")

	res := h.placeCard(t, "buyer-1", "addr-1")
	require.NotEmpty(t, res.CheckoutURL)

	order := h.order(t, res.Order.ID)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.True(t, order.TotalAmount.Equal(dec("25")))
	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "Bruxelles", order.ShippingAddress.City)

	payment := h.payment(t, res.Payment.ID)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, res.SessionID, payment.TransactionID)
	assert.Len(t, h.activeCart(t, "buyer-1"), 2, "panier conservé avant paiement")
	assert.Len(t, h.recorder.OfType(models.EventOrderCreated), 1)
	assert.Empty(t, h.recorder.OfType(models.EventInvoiceGenerate))

	sess := h.gw.Complete(res.SessionID)
	outcome, err := h.deliver(t, "evt_1", "checkout.session.completed", sess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	order = h.order(t, res.Order.ID)
	assert.Equal(t, models.OrderConfirmed, order.Status)
	assert.Equal(t, models.PaymentSuccess, order.PaymentStatus)

	payment = h.payment(t, res.Payment.ID)
	assert.Equal(t, models.PaymentSuccess, payment.Status)
	assert.Equal(t, "pi_"+res.SessionID, payment.TransactionID)

	assert.Empty(t, h.activeCart(t, "buyer-1"))
	saved, err := h.cartRepo.List(context.Background(), "buyer-1", true)
	require.NoError(t, err)
	assert.Len(t, saved, 1, "les articles pour plus tard restent")

	invoices := h.recorder.OfType(models.EventInvoiceGenerate)
	require.Len(t, invoices, 1)
	assert.Equal(t, res.Order.ID, invoices[0].OrderID)
	assert.Equal(t, "buyer-1", invoices[0].UserID)
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")
	res := h.placeCard(t, "buyer-1", "addr-1")
	sess := h.gw.Complete(res.SessionID)

	outcomes := map[Outcome]int{}
	for i := 0; i < 5; i++ {
		outcome, err := h.deliver(t, "evt_replay", "checkout.session.completed", sess)
		require.NoError(t, err)
		outcomes[outcome]++
	}
	assert.Equal(t, 1, outcomes[OutcomeConfirmed])
	assert.Equal(t, 4, outcomes[OutcomeDuplicate])

	// même paiement annoncé par un second événement
	outcome, err := h.deliver(t, "evt_async", "checkout.session.async_payment_succeeded", sess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyApplied, outcome)

	assert.Equal(t, models.OrderConfirmed, h.order(t, res.Order.ID).Status)
	assert.Equal(t, models.PaymentSuccess, h.payment(t, res.Payment.ID).Status)
	assert.Empty(t, h.activeCart(t, "buyer-1"))
	assert.Len(t, h.recorder.OfType(models.EventInvoiceGenerate), 1)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	res := h.placeCard(t, "buyer-1", "addr-1")
	sess := h.gw.Complete(res.SessionID)

	_, err := h.reconciler.HandleWebhook(context.Background(), []byte(`{"id":"evt_x","type":"checkout.session.completed"}`), "t=1,v1=bad")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSecurity))

	payload, sig := gatewaytest.Delivery("evt_t", "checkout.session.completed", sess)
	payload[len(payload)-2] = ' '
	_, err = h.reconciler.HandleWebhook(context.Background(), payload, sig)
	assert.True(t, apperr.Is(err, apperr.KindSecurity))
	assert.Equal(t, models.OrderPending, h.order(t, res.Order.ID).Status)
}

func TestWebhookMissingMetadata(t *testing.T) {
	h := newHarness(t)
	res := h.placeCard(t, "buyer-1", "addr-1")
	sess := h.gw.Complete(res.SessionID)
	delete(sess.Metadata, "paymentId")

	_, err := h.deliver(t, "evt_bad", "checkout.session.completed", sess)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	outcome, err := h.deliver(t, "evt_bad", "checkout.session.completed", sess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome, "un événement invalide n'est pas rejoué")
	assert.Equal(t, models.OrderPending, h.order(t, res.Order.ID).Status)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t)
	res := h.placeCard(t, "buyer-1", "addr-1")

	outcome, err := h.deliver(t, "evt_open", "checkout.session.completed", h.gw.Session(res.SessionID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome, "session complétée mais non payée")

	payload := []byte(`{"id":"evt_c","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	outcome, err = h.reconciler.HandleWebhook(context.Background(), payload, gatewaytest.Sign(payload))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, models.OrderPending, h.order(t, res.Order.ID).Status)
}

func TestWebhookStorageFailureReleasesClaim(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")
	res := h.placeCard(t, "buyer-1", "addr-1")
	sess := h.gw.Complete(res.SessionID)

	broken := &failingPayments{Payments: h.payments, err: errors.New("scylla timeout")}
	h.svc.Payments = broken
	_, err := h.deliver(t, "evt_retry", "checkout.session.completed", sess)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	h.svc.Payments = h.payments
	outcome, err := h.deliver(t, "evt_retry", "checkout.session.completed", sess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
}

func TestCartClearFailureKeepsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")
	res := h.placeCard(t, "buyer-1", "addr-1")
	sess := h.gw.Complete(res.SessionID)

	h.cartRepo.FailClear = errors.New("scylla down")
	outcome, err := h.deliver(t, "evt_1", "checkout.session.completed", sess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	assert.Equal(t, models.OrderConfirmed, h.order(t, res.Order.ID).Status)
	assert.Equal(t, models.PaymentSuccess, h.payment(t, res.Payment.ID).Status)
	assert.Len(t, h.activeCart(t, "buyer-1"), 2)
	assert.GreaterOrEqual(t, h.dispatcher.Stats().Failed, int64(1), "rattrapage tenté hors requête")
}

func TestCODOrderIsImmediate(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")

	res := h.placeCOD(t)
	assert.Empty(t, res.CheckoutURL)

	order := h.order(t, res.Order.ID)
	assert.Equal(t, models.OrderConfirmed, order.Status)
	assert.Equal(t, models.PaymentSuccess, order.PaymentStatus)
	require.NotNil(t, order.DispatchTime)
	assert.Equal(t, order.PlacedAt.Add(DefaultDispatchSLA), *order.DispatchTime)

	payment := h.payment(t, res.Payment.ID)
	assert.Equal(t, models.PaymentSuccess, payment.Status)
	assert.Equal(t, models.PaymentCOD, payment.Method)

	assert.Empty(t, h.activeCart(t, "buyer-1"))
	assert.Empty(t, h.gw.Created)
	assert.Len(t, h.recorder.OfType(models.EventInvoiceGenerate), 1)
}

// failingPaymentCreates fait échouer l'enregistrement des paiements.
type failingPaymentCreates struct {
	*memory.Payments
	err error
}

func (f *failingPaymentCreates) Create(context.Context, *models.Payment) error {
	return f.err
}

func TestCODPaymentFailureVoidsOrder(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")
	h.svc.Payments = &failingPaymentCreates{Payments: h.payments, err: errors.New("scylla timeout")}

	_, err := h.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderInput{
		Items: scenarioItems(), TotalAmount: dec("25"), ShippingAddressID: "addr-1", PaymentMode: models.PaymentCOD,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	orders, err := h.orders.ListByBuyer(context.Background(), "buyer-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderCanceled, orders[0].Status)
	assert.Equal(t, models.PaymentFailed, orders[0].PaymentStatus)
	assert.Nil(t, orders[0].DispatchTime)

	// ni facture ni purge pour une commande annulée
	assert.Len(t, h.activeCart(t, "buyer-1"), 2)
	assert.Empty(t, h.recorder.OfType(models.EventInvoiceGenerate))
}

func TestGatewayFailureCompensates(t *testing.T) {
	h := newHarness(t)
	h.gw.CreateErr = errors.New("stripe 503")

	_, err := h.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderInput{
		Items: scenarioItems(), TotalAmount: dec("25"), ShippingAddressID: "addr-1", PaymentMode: models.PaymentUPI,
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindExternal))

	orders, err := h.orders.ListByBuyer(context.Background(), "buyer-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderCanceled, orders[0].Status)

	payments, err := h.payments.ListByOrder(context.Background(), orders[0].ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentFailed, payments[0].Status)
}

func TestListingVerification(t *testing.T) {
	catalog := memory.NewCatalog()
	catalog.PutListing(models.Listing{ID: "list-1", ProductID: "prod-1", VendorID: "vendor-1", Price: dec("10"), Stock: 5})
	catalog.PutListing(models.Listing{ID: "list-2", ProductID: "prod-2", VendorID: "vendor-2", Price: dec("5"), Stock: 1})
	h := newHarness(t, withListings(catalog))

	h.placeCard(t, "buyer-1", "addr-1")

	items := scenarioItems()
	items[1].Price = dec("4")
	_, err := h.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderInput{
		Items: items, TotalAmount: dec("24"), ShippingAddressID: "addr-1", PaymentMode: models.PaymentCard,
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	items = scenarioItems()
	items[1].Quantity = 2
	_, err = h.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderInput{
		Items: items, TotalAmount: dec("30"), ShippingAddressID: "addr-1", PaymentMode: models.PaymentCard,
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "stock insuffisant")
}

func TestCancelOrderGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	dispatched := h.placeCOD(t)
	h.setState(t, dispatched.Order.ID, models.OrderShipped, models.DispatchDispatched)
	res, err := h.svc.CancelOrder(ctx, dispatched.Order.ID, "buyer-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, models.OrderShipped, h.order(t, dispatched.Order.ID).Status)

	transit := h.placeCOD(t)
	h.setState(t, transit.Order.ID, models.OrderConfirmed, models.DispatchInTransit)
	res, err = h.svc.CancelOrder(ctx, transit.Order.ID, "buyer-1")
	require.NoError(t, err)
	assert.False(t, res.Success)

	delivered := h.placeCOD(t)
	h.setState(t, delivered.Order.ID, models.OrderDelivered, models.DispatchDelivered)
	res, err = h.svc.CancelOrder(ctx, delivered.Order.ID, "buyer-1")
	require.NoError(t, err)
	assert.False(t, res.Success)

	cancelable := h.placeCOD(t)
	_, err = h.svc.CancelOrder(ctx, cancelable.Order.ID, "buyer-2")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	res, err = h.svc.CancelOrder(ctx, cancelable.Order.ID, "buyer-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.OrderCanceled, h.order(t, cancelable.Order.ID).Status)

	_, err = h.svc.CancelOrder(ctx, cancelable.Order.ID, "buyer-1")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Len(t, h.recorder.OfType(models.EventOrderCancelled), 1)

	_, err = h.svc.CancelOrder(ctx, "missing", "buyer-1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCancelPendingCardOrderExpiresSession(t *testing.T) {
	h := newHarness(t)
	res := h.placeCard(t, "buyer-1", "addr-1")

	out, err := h.svc.CancelOrder(context.Background(), res.Order.ID, "buyer-1")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Contains(t, h.gw.Expired, res.SessionID)
	assert.Equal(t, models.PaymentFailed, h.payment(t, res.Payment.ID).Status)
	assert.Empty(t, h.recorder.OfType(models.EventRefundRequired))
}

func TestWebhookAfterCancelRefundsPayment(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t, "buyer-1")
	res := h.placeCard(t, "buyer-1", "addr-1")
	sess := h.gw.Complete(res.SessionID)

	_, err := h.svc.CancelOrder(context.Background(), res.Order.ID, "buyer-1")
	require.NoError(t, err)

	outcome, err := h.deliver(t, "evt_late", "checkout.session.completed", sess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefunded, outcome)

	order := h.order(t, res.Order.ID)
	assert.Equal(t, models.OrderCanceled, order.Status)
	assert.Equal(t, models.PaymentSuccess, order.PaymentStatus)
	payment := h.payment(t, res.Payment.ID)
	assert.Equal(t, models.PaymentSuccess, payment.Status)
	assert.Equal(t, "re_test_1", payment.RefundID)
	require.Len(t, h.gw.Refunds, 1)
	assert.Equal(t, "pi_"+res.SessionID, h.gw.Refunds[0].PaymentIntentID)
	assert.Len(t, h.activeCart(t, "buyer-1"), 2, "panier conservé")
	assert.Len(t, h.recorder.OfType(models.EventOrderRefunded), 1)
	assert.Empty(t, h.recorder.OfType(models.EventRefundRequired))
	assert.Empty(t, h.recorder.OfType(models.EventInvoiceGenerate))

	outcome, err = h.deliver(t, "evt_late_2", "checkout.session.completed", sess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyApplied, outcome)
	assert.Len(t, h.gw.Refunds, 1)
}

func TestWebhookAfterCancelRefundDeclined(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res := h.placeCard(t, "buyer-1", "addr-1")
	sess := h.gw.Complete(res.SessionID)
	_, err := h.svc.CancelOrder(ctx, res.Order.ID, "buyer-1")
	require.NoError(t, err)

	h.gw.RefundErr = errors.New("stripe down")
	outcome, err := h.deliver(t, "evt_late", "checkout.session.completed", sess)
	require.NoError(t, err, "le webhook est acquitté")
	assert.Equal(t, OutcomeRefundRequired, outcome)
	assert.Len(t, h.recorder.OfType(models.EventRefundRequired), 1)
	assert.Empty(t, h.payment(t, res.Payment.ID).RefundID)

	// reprise par l'administrateur
	h.gw.RefundErr = nil
	out, err := h.refunds.RefundOrder(ctx, res.Order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "re_test_1", out.RefundID)
	assert.Equal(t, models.OrderCanceled, out.Order.Status)
	assert.Equal(t, "re_test_1", h.payment(t, res.Payment.ID).RefundID)
	assert.Len(t, h.recorder.OfType(models.EventOrderRefunded), 1)

	again, err := h.refunds.RefundOrder(ctx, res.Order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "re_test_1", again.RefundID)
	assert.Len(t, h.gw.Refunds, 1)
	assert.Len(t, h.recorder.OfType(models.EventOrderRefunded), 1)
}

func TestCancelPaidCardOrderRefunds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res := h.placeCard(t, "buyer-1", "addr-1")
	_, err := h.deliver(t, "evt_1", "checkout.session.completed", h.gw.Complete(res.SessionID))
	require.NoError(t, err)

	out, err := h.svc.CancelOrder(ctx, res.Order.ID, "buyer-1")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, models.OrderCanceled, h.order(t, res.Order.ID).Status)

	require.Len(t, h.gw.Refunds, 1)
	assert.True(t, h.gw.Refunds[0].Amount.Equal(dec("25")))
	assert.Equal(t, "re_test_1", h.payment(t, res.Payment.ID).RefundID)
	assert.Len(t, h.recorder.OfType(models.EventOrderRefunded), 1)
	assert.Empty(t, h.recorder.OfType(models.EventRefundRequired))

	again, err := h.refunds.RefundOrder(ctx, res.Order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "re_test_1", again.RefundID)
	assert.Len(t, h.gw.Refunds, 1)
}

func TestCancelCODOrderHasNothingToRefund(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res := h.placeCOD(t)
	_, err := h.svc.CancelOrder(ctx, res.Order.ID, "buyer-1")
	require.NoError(t, err)

	_, err = h.refunds.RefundOrder(ctx, res.Order.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Empty(t, h.gw.Refunds)
}

func TestSessionExpiredCancelsOrder(t *testing.T) {
	h := newHarness(t)
	res := h.placeCard(t, "buyer-1", "addr-1")
	require.NoError(t, h.gw.ExpireSession(context.Background(), res.SessionID))

	outcome, err := h.deliver(t, "evt_exp", "checkout.session.expired", h.gw.Session(res.SessionID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)
	assert.Equal(t, models.OrderCanceled, h.order(t, res.Order.ID).Status)
	assert.Equal(t, models.PaymentFailed, h.payment(t, res.Payment.ID).Status)
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res := h.placeCOD(t)

	_, err := h.svc.UpdateOrderStatus(ctx, res.Order.ID, "lost")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = h.svc.UpdateOrderStatus(ctx, res.Order.ID, "returned")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = h.svc.UpdateOrderStatus(ctx, res.Order.ID, "delivered")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "confirmed -> delivered interdit")

	shipped, err := h.svc.UpdateOrderStatus(ctx, res.Order.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, shipped.Status)
	assert.Equal(t, models.DispatchDispatched, shipped.DispatchStatus)

	delivered, err := h.svc.UpdateOrderStatus(ctx, res.Order.ID, "delivered")
	require.NoError(t, err)
	assert.Equal(t, models.DispatchDelivered, delivered.DispatchStatus)

	_, err = h.svc.UpdateOrderStatus(ctx, res.Order.ID, "canceled")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	pending := h.placeCard(t, "buyer-1", "addr-1")
	_, err = h.svc.UpdateOrderStatus(ctx, pending.Order.ID, "confirmed")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "paiement non encaissé")
}

func TestUpdateDispatchStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := Actor{UserID: "admin-1", Role: "admin"}

	pending := h.placeCard(t, "buyer-1", "addr-1")
	_, err := h.svc.UpdateDispatchStatus(ctx, pending.Order.ID, "dispatched", admin)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "commande non payée")

	res := h.placeCOD(t)
	_, err = h.svc.UpdateDispatchStatus(ctx, res.Order.ID, "teleported", admin)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = h.svc.UpdateDispatchStatus(ctx, res.Order.ID, "preparing", Actor{UserID: "v9", Role: "vendor", VendorID: "vendor-9"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	vendor := Actor{UserID: "v1", Role: "vendor", VendorID: "vendor-1"}
	o, err := h.svc.UpdateDispatchStatus(ctx, res.Order.ID, "preparing", vendor)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, o.Status)

	o, err = h.svc.UpdateDispatchStatus(ctx, res.Order.ID, "in_transit", vendor)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, o.Status)

	_, err = h.svc.UpdateDispatchStatus(ctx, res.Order.ID, "preparing", vendor)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "pas de retour en arrière")

	o, err = h.svc.UpdateDispatchStatus(ctx, res.Order.ID, "delivered", vendor)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, o.Status)
}

func TestOrderViews(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res := h.placeCOD(t)
	h.placeCard(t, "buyer-1", "addr-1")

	mine, err := h.svc.GetOrdersByUser(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, v := range mine {
		require.NotNil(t, v.Buyer)
		assert.Equal(t, "alice@cedra.test", v.Buyer.Email)
		assert.Len(t, v.Payments, 1)
	}

	_, err = h.svc.GetOrder(ctx, res.Order.ID, Actor{UserID: "buyer-2"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	view, err := h.svc.GetOrder(ctx, res.Order.ID, Actor{UserID: "v2", Role: "vendor", VendorID: "vendor-2"})
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, view.ID)

	vendorOrders, err := h.svc.GetVendorOrders(ctx, "vendor-2")
	require.NoError(t, err)
	require.Len(t, vendorOrders, 2)
	for _, v := range vendorOrders {
		require.Len(t, v.Items, 1)
		assert.Equal(t, "vendor-2", v.Items[0].VendorID)
	}
}
