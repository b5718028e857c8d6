package gateway_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/gateway"
	"cedra_orders/internal/gateway/gatewaytest"
	"cedra_orders/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() (*models.Order, *models.Payment) {
	order := &models.Order{
		ID:                "o1",
		BuyerID:           "u1",
		ShippingAddressID: "a1",
		PaymentMode:       models.PaymentCard,
		TotalAmount:       decimal.NewFromInt(25),
		Items: []models.OrderItem{
			{ProductID: "p1", ListingID: "l1", VendorID: "v1", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			{ProductID: "p2", ListingID: "l2", VendorID: "v2", Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		},
	}
	return order, &models.Payment{ID: "pay1", OrderID: "o1"}
}

func TestMetadataRoundTrip(t *testing.T) {
	order, payment := sampleOrder()
	md := gateway.NewMetadata(order, payment).ToMap()

	assert.Equal(t, "25.00", md["totalAmount"])
	assert.Equal(t, "card", md["paymentMode"])

	parsed, err := gateway.ParseMetadata(md)
	require.NoError(t, err)
	assert.Equal(t, "o1", parsed.OrderID)
	assert.Equal(t, "pay1", parsed.PaymentID)
	assert.Equal(t, "u1", parsed.UserID)
	assert.Equal(t, "a1", parsed.ShippingAddressID)
	assert.True(t, parsed.TotalAmount.Equal(decimal.NewFromInt(25)))
	require.Len(t, parsed.Items, 2)
	assert.Equal(t, "l1", parsed.Items[0].ListingID)
	assert.True(t, parsed.Items[0].TotalPrice.Equal(decimal.NewFromInt(20)))
}

func TestMetadataSplitsLargeItemList(t *testing.T) {
	order, payment := sampleOrder()
	for i := 0; i < 30; i++ {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: fmt.Sprintf("%s-%02d", strings.Repeat("p", 20), i), ListingID: strings.Repeat("l", 20), Quantity: 1, UnitPrice: decimal.NewFromInt(1),
		})
	}
	meta := gateway.NewMetadata(order, payment)
	assert.True(t, meta.ItemsFit())

	md := meta.ToMap()
	_, single := md["items"]
	assert.False(t, single)
	require.Contains(t, md, "items_0")
	require.Contains(t, md, "items_1")
	assert.LessOrEqual(t, len(md), 50)
	for k, v := range md {
		assert.LessOrEqual(t, len(v), 500, k)
	}

	parsed, err := gateway.ParseMetadata(md)
	require.NoError(t, err)
	require.Len(t, parsed.Items, 32)
	assert.Equal(t, "l1", parsed.Items[0].ListingID)
	assert.Equal(t, strings.Repeat("p", 20)+"-29", parsed.Items[31].ProductID)
}

func TestMetadataOmitsItemsBeyondLimits(t *testing.T) {
	order, payment := sampleOrder()
	order.Items = append(order.Items, models.OrderItem{ProductID: strings.Repeat("p", 600), Quantity: 1, UnitPrice: decimal.NewFromInt(1)})
	meta := gateway.NewMetadata(order, payment)
	assert.False(t, meta.ItemsFit())

	md := meta.ToMap()
	assert.Equal(t, "3", md["itemsOmitted"])
	assert.NotContains(t, md, "items")
	assert.NotContains(t, md, "items_0")

	// la session reste rattachable à la commande
	parsed, err := gateway.ParseMetadata(md)
	require.NoError(t, err)
	assert.Equal(t, "o1", parsed.OrderID)
	assert.Empty(t, parsed.Items)
}

func TestParseMetadataMissingKeys(t *testing.T) {
	_, err := gateway.ParseMetadata(map[string]string{"orderId": "o1"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "paymentId")
	assert.Contains(t, err.Error(), "userId")
}

func TestVerifyPayload(t *testing.T) {
	fake := gatewaytest.New()
	order, payment := sampleOrder()
	sess, err := fake.CreateCheckoutSession(context.Background(), order, payment, gateway.NewMetadata(order, payment))
	require.NoError(t, err)
	done := fake.Complete(sess.ID)

	payload, sig := gatewaytest.Delivery("evt_1", gateway.EventSessionCompleted, done)
	ev, err := fake.VerifyWebhook(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	require.NotNil(t, ev.Session)
	assert.True(t, ev.Session.Paid())
	assert.Equal(t, "pi_"+sess.ID, ev.Session.PaymentIntentID)
	assert.Equal(t, "o1", ev.Session.Metadata["orderId"])
}

func TestVerifyPayloadRejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed"}`)
	_, err := gateway.VerifyPayload(payload, "t=1,v1=deadbeef", gatewaytest.Secret)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSecurity))

	_, err = gateway.VerifyPayload(payload, gatewaytest.Sign(payload), "whsec_other")
	assert.True(t, apperr.Is(err, apperr.KindSecurity))
}

func TestUnhandledEventHasNoSession(t *testing.T) {
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	ev, err := gateway.VerifyPayload(payload, gatewaytest.Sign(payload), gatewaytest.Secret)
	require.NoError(t, err)
	assert.Equal(t, "customer.created", ev.Type)
	assert.Nil(t, ev.Session)
}
