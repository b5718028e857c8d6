package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"cedra_orders/internal/events"
	"cedra_orders/internal/gateway"
	"cedra_orders/internal/gateway/gatewaytest"
	"cedra_orders/internal/models"
	"cedra_orders/internal/outbound"
	"cedra_orders/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	orders     *memory.Orders
	payments   *memory.Payments
	cartRepo   *memory.Cart
	catalog    *memory.Catalog
	returnRepo *memory.Returns
	processed  *memory.ProcessedEvents
	gw         *gatewaytest.Fake
	recorder   *events.Recorder
	dispatcher *outbound.Dispatcher
	clock      *clock

	cart       *CartService
	svc        *OrderService
	reconciler *Reconciler
	returns    *ReturnService
	refunds    *RefundService
}

type harnessOption func(*OrderDeps)

func withListings(catalog *memory.Catalog) harnessOption {
	return func(d *OrderDeps) { d.Listings = catalog.Listings() }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	log := zap.NewNop()
	h := &harness{
		orders:     memory.NewOrders(),
		payments:   memory.NewPayments(),
		cartRepo:   memory.NewCart(),
		catalog:    memory.NewCatalog(),
		returnRepo: memory.NewReturns(),
		processed:  memory.NewProcessedEvents(),
		gw:         gatewaytest.New(),
		recorder:   &events.Recorder{},
		dispatcher: outbound.NewInline(log),
		clock:      &clock{t: time.Now().UTC()},
	}
	h.catalog.PutAddress(models.Address{ID: "addr-1", UserID: "buyer-1", Street: "Rue Haute 1", City: "Bruxelles", PostalCode: "1000", Country: "BE"})
	h.catalog.PutAddress(models.Address{ID: "addr-2", UserID: "buyer-2", Street: "Rue Basse 2", City: "Liège", PostalCode: "4000", Country: "BE"})
	h.catalog.PutUser(models.User{ID: "buyer-1", Name: "Alice", Email: "alice@cedra.test"})
	h.catalog.PutUser(models.User{ID: "buyer-2", Name: "Bob", Email: "bob@cedra.test"})

	h.cart = NewCartService(h.cartRepo, nil, nil, log)
	notifier := NewNotifier(NotifierDeps{
		Dispatcher: h.dispatcher,
		Publisher:  h.recorder,
		Users:      h.catalog.Users(),
		Log:        log,
	})
	deps := OrderDeps{
		Orders:    h.orders,
		Payments:  h.payments,
		Addresses: h.catalog.Addresses(),
		Users:     h.catalog.Users(),
		Cart:      h.cart,
		Gateway:   h.gw,
		Notifier:  notifier,
		Log:       log,
		Now:       h.clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.svc = NewOrderService(deps)
	h.reconciler = NewReconciler(h.svc, h.processed)
	h.returns = NewReturnService(h.svc, h.returnRepo)
	h.refunds = NewRefundService(h.svc)
	return h
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// scenarioItems : 2 × 10 + 1 × 5 = 25.
func scenarioItems() []OrderItemInput {
	return []OrderItemInput{
		{ProductID: "prod-1", VendorID: "vendor-1", ListingID: "list-1", Quantity: 2, Price: dec("10")},
		{ProductID: "prod-2", VendorID: "vendor-2", ListingID: "list-2", Quantity: 1, Price: dec("5")},
	}
}

func (h *harness) fillCart(t *testing.T, buyerID string) {
	t.Helper()
	ctx := context.Background()
	for _, item := range scenarioItems() {
		_, err := h.cart.AddToCart(ctx, buyerID, AddToCartInput{
			ListingID: item.ListingID, ProductID: item.ProductID, VendorID: item.VendorID,
			Quantity: item.Quantity, Price: item.Price,
		})
		require.NoError(t, err)
	}
	_, err := h.cartRepo.Add(ctx, models.CartItem{UserID: buyerID, ListingID: "list-9", ProductID: "prod-9", VendorID: "vendor-1", Quantity: 1, UnitPrice: dec("3"), SavedForLater: true})
	require.NoError(t, err)
}

func (h *harness) activeCart(t *testing.T, buyerID string) []models.CartItem {
	t.Helper()
	items, err := h.cartRepo.List(context.Background(), buyerID, false)
	require.NoError(t, err)
	return items
}

func (h *harness) placeCard(t *testing.T, buyerID, addressID string) *PlaceOrderResult {
	t.Helper()
	res, err := h.svc.PlaceOrder(context.Background(), buyerID, PlaceOrderInput{
		Items:             scenarioItems(),
		TotalAmount:       dec("25"),
		ShippingAddressID: addressID,
		PaymentMode:       models.PaymentCard,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) placeCOD(t *testing.T) *PlaceOrderResult {
	t.Helper()
	res, err := h.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderInput{
		Items:             scenarioItems(),
		TotalAmount:       dec("25"),
		ShippingAddressID: "addr-1",
		PaymentMode:       models.PaymentCOD,
	})
	require.NoError(t, err)
	return res
}

// deliver signe et envoie un webhook pour la session, comme le ferait la passerelle.
func (h *harness) deliver(t *testing.T, eventID, eventType string, sess *gateway.CheckoutSession) (Outcome, error) {
	t.Helper()
	payload, sig := gatewaytest.Delivery(eventID, eventType, sess)
	return h.reconciler.HandleWebhook(context.Background(), payload, sig)
}

func (h *harness) order(t *testing.T, id string) *models.Order {
	t.Helper()
	o, err := h.orders.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (h *harness) payment(t *testing.T, id string) *models.Payment {
	t.Helper()
	p, err := h.payments.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

// setState force le statut et l'état d'expédition d'une commande.
func (h *harness) setState(t *testing.T, id string, status models.OrderStatus, dispatch models.DispatchStatus) {
	t.Helper()
	o := h.order(t, id)
	o.Status = status
	o.DispatchStatus = dispatch
	require.NoError(t, h.orders.Update(context.Background(), o))
}

// failingPayments fait échouer les lectures de paiement.
type failingPayments struct {
	*memory.Payments
	err error
}

func (f *failingPayments) Get(context.Context, string) (*models.Payment, error) {
	return nil, f.err
}
