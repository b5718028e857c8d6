package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
	t.Setenv("STORAGE_DRIVER", DriverMemory)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*24*time.Hour, cfg.Orders.CODDispatchSLA)
	assert.Equal(t, 30*time.Minute, cfg.Orders.PaymentPendingTTL)
	assert.Equal(t, "eur", cfg.Stripe.Currency)
	assert.Equal(t, "orders.events", cfg.Redis.Stream)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
	t.Setenv("STORAGE_DRIVER", DriverScylla)
	t.Setenv("SCYLLA_HOSTS", "10.0.0.1, 10.0.0.2")
	t.Setenv("SCYLLA_KS_ORDERS_KEYSPACE", "orders")
	t.Setenv("SCYLLA_KS_USERS_KEYSPACE", "users")
	t.Setenv("COD_DISPATCH_SLA_DAYS", "3")
	t.Setenv("PAYMENT_PENDING_TTL", "45m")
	t.Setenv("CURRENCY", "EUR")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Scylla.Hosts)
	assert.Equal(t, 3*24*time.Hour, cfg.Orders.CODDispatchSLA)
	assert.Equal(t, 45*time.Minute, cfg.Orders.PaymentPendingTTL)
	assert.Equal(t, "eur", cfg.Stripe.Currency)
}

func TestValidateReportsMissingSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("STORAGE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
}
