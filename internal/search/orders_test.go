package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cedra_orders/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery(t *testing.T) {
	q := buildQuery(Query{})
	assert.Contains(t, q["query"], "match_all")
	assert.Equal(t, 50, q["size"])

	q = buildQuery(Query{Status: "pending", VendorID: "v1", Size: 10})
	filters := q["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]map[string]interface{})
	assert.Len(t, filters, 2)
	assert.Equal(t, 10, q["size"])
}

func TestNewOrderDocument(t *testing.T) {
	o := &models.Order{
		ID: "o1", BuyerID: "u1", TotalAmount: decimal.RequireFromString("25.50"),
		Items: []models.OrderItem{{ListingID: "l1", VendorID: "v1"}, {ListingID: "l2", VendorID: "v1"}},
	}
	doc := NewOrderDocument(o)
	assert.Equal(t, []string{"v1"}, doc.VendorIDs)
	assert.Equal(t, []string{"l1", "l2"}, doc.ListingIDs)
	assert.Equal(t, 25.5, doc.TotalAmount)
}

func TestDisabledIndexer(t *testing.T) {
	var idx *OrderIndexer
	assert.False(t, idx.Enabled())
	assert.ErrorIs(t, NewOrderIndexer(nil, "orders").Index(context.Background(), &models.Order{ID: "o1"}), ErrDisabled)
}

// fakeElastic répond comme un nœud 8.x minimal.
func fakeElastic(t *testing.T) (*httptest.Server, *[]string) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		io.Copy(io.Discard, r.Body)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/_search"):
			doc, _ := json.Marshal(OrderDocument{OrderID: "o1", Status: "confirmed", PlacedAt: time.Unix(0, 0).UTC()})
			w.Write([]byte(`{"hits":{"hits":[{"_source":` + string(doc) + `}]}}`))
		default:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"result":"created"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestIndexAndSearch(t *testing.T) {
	srv, paths := fakeElastic(t)
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	idx := NewOrderIndexer(es, "orders")
	require.NoError(t, idx.Index(context.Background(), &models.Order{ID: "o1", Status: models.OrderConfirmed}))

	docs, err := idx.Search(context.Background(), Query{Status: "confirmed"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "o1", docs[0].OrderID)

	assert.Contains(t, *paths, "PUT /orders/_doc/o1")
	var searched bool
	for _, p := range *paths {
		searched = searched || strings.HasSuffix(p, " /orders/_search")
	}
	assert.True(t, searched)
}
