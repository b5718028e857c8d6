package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"cedra_orders/internal/events"
	"cedra_orders/internal/models"
	"cedra_orders/internal/repository/memory"
	"cedra_orders/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRenderer struct {
	err   error
	calls int
}

func (r *fakeRenderer) Render(_ context.Context, order *models.Order) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + order.ID), nil
}

type fakeStore struct {
	objects map[string][]byte
}

func (s *fakeStore) Upload(_ context.Context, orderID string, pdf []byte) (string, error) {
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[orderID] = pdf
	return "https://minio.test/invoices/" + orderID + ".pdf?sig=1", nil
}

type fakeMailer struct {
	sent []utils.Email
}

func (m *fakeMailer) Send(_ context.Context, e utils.Email) error {
	m.sent = append(m.sent, e)
	return nil
}

type fixture struct {
	orders   *memory.Orders
	renderer *fakeRenderer
	store    *fakeStore
	mailer   *fakeMailer
	recorder *events.Recorder
	worker   *Worker
	at       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := memory.NewCatalog()
	catalog.PutUser(models.User{ID: "buyer-1", Name: "Alice", Email: "alice@cedra.test"})
	f := &fixture{
		orders:   memory.NewOrders(),
		renderer: &fakeRenderer{},
		store:    &fakeStore{},
		mailer:   &fakeMailer{},
		recorder: &events.Recorder{},
		at:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.worker = NewWorker(Deps{
		Orders:    f.orders,
		Users:     catalog.Users(),
		Renderer:  f.renderer,
		Store:     f.store,
		Mailer:    f.mailer,
		Publisher: f.recorder,
		Log:       zap.NewNop(),
		Now:       func() time.Time { return f.at },
	})
	return f
}

func (f *fixture) put(t *testing.T, id string, paid models.PaymentStatus) {
	t.Helper()
	require.NoError(t, f.orders.Create(context.Background(), &models.Order{
		ID:            id,
		BuyerID:       "buyer-1",
		TotalAmount:   decimal.RequireFromString("25"),
		PaymentMode:   models.PaymentCard,
		Status:        models.OrderConfirmed,
		PaymentStatus: paid,
		PlacedAt:      f.at,
	}))
}

func TestHandleGeneratesInvoice(t *testing.T) {
	f := newFixture(t)
	f.put(t, "o1", models.PaymentSuccess)

	err := f.worker.Handle(context.Background(), models.Event{Type: models.EventInvoiceGenerate, OrderID: "o1", UserID: "buyer-1"})
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-o1"), f.store.objects["o1"])
	require.Len(t, f.mailer.sent, 1)
	mail := f.mailer.sent[0]
	assert.Equal(t, "alice@cedra.test", mail.To)
	require.Len(t, mail.Attachments, 1)
	assert.Equal(t, "FACT-o1.pdf", mail.Attachments[0].Name)
	assert.Contains(t, mail.HTML, "o1")

	generated := f.recorder.OfType(models.EventInvoiceGenerated)
	require.Len(t, generated, 1)
	assert.Equal(t, "o1", generated[0].OrderID)
	assert.Equal(t, "buyer-1", generated[0].UserID)
	assert.Equal(t, "https://minio.test/invoices/o1.pdf?sig=1", generated[0].PdfURL)
	require.NotNil(t, generated[0].GeneratedAt)
	assert.True(t, f.at.Equal(*generated[0].GeneratedAt))
}

func TestHandleSkipsUnpaidAndOtherEvents(t *testing.T) {
	f := newFixture(t)
	f.put(t, "o2", models.PaymentPending)

	require.NoError(t, f.worker.Handle(context.Background(), models.Event{Type: models.EventInvoiceGenerate, OrderID: "o2"}))
	require.NoError(t, f.worker.Handle(context.Background(), models.Event{Type: models.EventOrderCreated, OrderID: "o2"}))
	assert.Zero(t, f.renderer.calls)
	assert.Empty(t, f.recorder.Events())
}

func TestHandleFailureLeavesMessagePending(t *testing.T) {
	f := newFixture(t)
	f.put(t, "o3", models.PaymentSuccess)
	f.renderer.err = errors.New("chrome absent")

	err := f.worker.Handle(context.Background(), models.Event{Type: models.EventInvoiceGenerate, OrderID: "o3"})
	require.Error(t, err)
	assert.Empty(t, f.mailer.sent)
	assert.Empty(t, f.recorder.OfType(models.EventInvoiceGenerated))

	err = f.worker.Handle(context.Background(), models.Event{Type: models.EventInvoiceGenerate, OrderID: "missing"})
	assert.Error(t, err)
}
