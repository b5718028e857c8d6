package scylla_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"cedra_orders/internal/database"
	"cedra_orders/internal/repository/scylla"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Nécessite un cluster : SCYLLA_TEST_HOSTS=127.0.0.1 SCYLLA_TEST_KEYSPACE=orders_test.
func testSession(t *testing.T) *gocql.Session {
	t.Helper()
	hosts := os.Getenv("SCYLLA_TEST_HOSTS")
	keyspace := os.Getenv("SCYLLA_TEST_KEYSPACE")
	if hosts == "" || keyspace == "" {
		t.Skip("SCYLLA_TEST_HOSTS non défini")
	}
	cluster := gocql.NewCluster(strings.Split(hosts, ",")...)
	cluster.Keyspace = keyspace
	cluster.Timeout = 10 * time.Second
	session, err := cluster.CreateSession()
	require.NoError(t, err)
	t.Cleanup(session.Close)
	require.NoError(t, database.ApplySchema(session, database.OrdersSchema))
	return session
}

func TestProcessedEventsLifecycle(t *testing.T) {
	store := scylla.NewProcessedEvents(testSession(t))
	ctx := context.Background()
	id := "evt_" + uuid.NewString()

	claimed, err := store.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, claimed, "réclamation en cours")

	require.NoError(t, store.Complete(ctx, id))
	require.NoError(t, store.Complete(ctx, id), "clôture rejouable")

	// done n'est pas libérable
	require.NoError(t, store.Release(ctx, id))
	claimed, err = store.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestProcessedEventsCompleteWithoutClaim(t *testing.T) {
	store := scylla.NewProcessedEvents(testSession(t))
	ctx := context.Background()
	id := "evt_" + uuid.NewString()

	// réclamation expirée avant la clôture
	require.NoError(t, store.Complete(ctx, id))
	claimed, err := store.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestProcessedEventsReleaseAllowsReclaim(t *testing.T) {
	store := scylla.NewProcessedEvents(testSession(t))
	ctx := context.Background()
	id := "evt_" + uuid.NewString()

	claimed, err := store.Claim(ctx, id)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, store.Release(ctx, id))

	claimed, err = store.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, claimed)
}
