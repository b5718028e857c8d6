package payement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cedra_orders/internal/events"
	"cedra_orders/internal/gateway/gatewaytest"
	"cedra_orders/internal/models"
	"cedra_orders/internal/outbound"
	"cedra_orders/internal/repository/memory"
	"cedra_orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	router   *gin.Engine
	gw       *gatewaytest.Fake
	orders   *memory.Orders
	payments *memory.Payments
	recorder *events.Recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zap.NewNop()
	e := &env{
		gw:       gatewaytest.New(),
		orders:   memory.NewOrders(),
		payments: memory.NewPayments(),
		recorder: &events.Recorder{},
	}
	catalog := memory.NewCatalog()
	catalog.PutAddress(models.Address{ID: "addr-1", UserID: "buyer-1", Street: "Rue Haute 1", City: "Bruxelles", PostalCode: "1000", Country: "BE"})
	catalog.PutUser(models.User{ID: "buyer-1", Name: "Alice", Email: "alice@cedra.test"})

	dispatcher := outbound.NewInline(log)
	svc := services.NewOrderService(services.OrderDeps{
		Orders:    e.orders,
		Payments:  e.payments,
		Addresses: catalog.Addresses(),
		Users:     catalog.Users(),
		Cart:      services.NewCartService(memory.NewCart(), nil, nil, log),
		Gateway:   e.gw,
		Notifier:  services.NewNotifier(services.NotifierDeps{Dispatcher: dispatcher, Publisher: e.recorder, Users: catalog.Users(), Log: log}),
		Log:       log,
	})
	reconciler := services.NewReconciler(svc, memory.NewProcessedEvents())
	sweeper := services.NewSweeper(svc, reconciler, 30*time.Minute, time.Minute)

	checkout := NewCheckoutHandler(svc, log)
	webhook := NewWebhookHandler(reconciler, log)
	admin := NewAdminHandler(svc, sweeper, log)

	r := gin.New()
	auth := func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-User"))
		c.Set("role", c.GetHeader("X-Role"))
		c.Next()
	}
	r.POST("/payments/stripe/webhook", webhook.StripeWebhook)
	r.POST("/orders", auth, checkout.PlaceOrder)
	r.PATCH("/admin/orders/:orderId/status", auth, admin.UpdateOrderStatus)
	r.POST("/admin/payments/sweep", auth, admin.SweepPayments)
	e.router = r
	return e
}

func (e *env) do(method, path, user string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

const placeBody = `{
	"items": [
		{"productId":"prod-1","vendorId":"vendor-1","listingId":"list-1","quantity":2,"price":"10"},
		{"productId":"prod-2","vendorId":"vendor-2","listingId":"list-2","quantity":1,"price":5}
	],
	"totalAmount": %s,
	"shippingAddressId": "addr-1",
	"paymentMode": "%s"
}`

func body(total, mode string) []byte {
	return []byte(fmt.Sprintf(placeBody, total, mode))
}

func TestPlaceOrderCardReturnsCheckoutURL(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/orders", "buyer-1", body("25", "card"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp["checkoutUrl"], "https://checkout.test/"))
	assert.NotEmpty(t, resp["orderId"])
}

func TestPlaceOrderCODReturnsOrder(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/orders", "buyer-1", body(`"25.00"`, "cod"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.OrderConfirmed, order.Status)
	assert.NotNil(t, order.DispatchTime)
}

func TestPlaceOrderErrors(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/orders", "buyer-1", body("20", "card"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Total amount mismatch"}`, w.Body.String())

	w = e.do(http.MethodPost, "/orders", "buyer-1", []byte(`{"items":[]}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/orders", "", body("25", "card"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/orders", "buyer-2", body("25", "card"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "adresse d'un autre utilisateur")

	e.gw.CreateErr = assert.AnError
	w = e.do(http.MethodPost, "/orders", "buyer-1", body("25", "upi"), nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 1, e.orders.Count(), "seule la commande compensée existe")
}

func TestStripeWebhook(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/orders", "buyer-1", body("25", "card"), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	sess := e.gw.Complete(resp["sessionId"])
	payload, sig := gatewaytest.Delivery("evt_1", "checkout.session.completed", sess)

	w = e.do(http.MethodPost, "/payments/stripe/webhook", "", payload, map[string]string{"Stripe-Signature": "t=1,v1=forged"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Signature invalide"}`, w.Body.String())

	for i := 0; i < 3; i++ {
		w = e.do(http.MethodPost, "/payments/stripe/webhook", "", payload, map[string]string{"Stripe-Signature": sig})
		assert.Equal(t, http.StatusOK, w.Code)
	}
	order, err := e.orders.Get(context.Background(), resp["orderId"])
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, order.Status)
	assert.Len(t, e.recorder.OfType(models.EventInvoiceGenerate), 1)

	big := bytes.Repeat([]byte("a"), int(MaxBodyBytes)+1)
	w = e.do(http.MethodPost, "/payments/stripe/webhook", "", big, map[string]string{"Stripe-Signature": sig})
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestAdminStatusAndSweep(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/orders", "buyer-1", body("25", "cod"), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))

	w = e.do(http.MethodPatch, "/admin/orders/"+order.ID+"/status", "admin-1", []byte(`{"status":"shipped"}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodPatch, "/admin/orders/"+order.ID+"/status", "admin-1", []byte(`{"status":"pending"}`), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodPatch, "/admin/orders/missing/status", "admin-1", []byte(`{"status":"shipped"}`), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/admin/payments/sweep", "admin-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report services.SweepReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Zero(t, report.Checked)
}
