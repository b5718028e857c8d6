// Package search maintient la projection des commandes dans Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cedra_orders/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrDisabled = errors.New("client Elasticsearch non initialisé")

// OrderDocument est la forme indexée d'une commande.
type OrderDocument struct {
	OrderID        string    `json:"orderId"`
	BuyerID        string    `json:"buyerId"`
	VendorIDs      []string  `json:"vendorIds"`
	ListingIDs     []string  `json:"listingIds"`
	TotalAmount    float64   `json:"totalAmount"`
	PaymentMode    string    `json:"paymentMode"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"paymentStatus"`
	DispatchStatus string    `json:"dispatchStatus"`
	PlacedAt       time.Time `json:"placedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewOrderDocument(o *models.Order) OrderDocument {
	listings := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		listings = append(listings, item.ListingID)
	}
	total, _ := o.TotalAmount.Float64()
	return OrderDocument{
		OrderID:        o.ID,
		BuyerID:        o.BuyerID,
		VendorIDs:      o.VendorIDs(),
		ListingIDs:     listings,
		TotalAmount:    total,
		PaymentMode:    string(o.PaymentMode),
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		DispatchStatus: string(o.DispatchStatus),
		PlacedAt:       o.PlacedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

type Query struct {
	Status        string
	PaymentStatus string
	VendorID      string
	BuyerID       string
	Size          int
}

type OrderIndexer struct {
	es    *elasticsearch.Client
	index string
}

// NewOrderIndexer accepte un client nil : chaque appel retourne alors ErrDisabled.
func NewOrderIndexer(es *elasticsearch.Client, index string) *OrderIndexer {
	return &OrderIndexer{es: es, index: index}
}

func (i *OrderIndexer) Enabled() bool {
	return i != nil && i.es != nil
}

func (i *OrderIndexer) Index(ctx context.Context, o *models.Order) error {
	if !i.Enabled() {
		return ErrDisabled
	}
	data, err := json.Marshal(NewOrderDocument(o))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: o.ID,
		Body:       bytes.NewReader(data),
	}
	res, err := req.Do(ctx, i.es)
	if err != nil {
		return fmt.Errorf("erreur envoi Elastic: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("indexation commande %s: %s", o.ID, res.String())
	}
	return nil
}

func (i *OrderIndexer) Search(ctx context.Context, q Query) ([]OrderDocument, error) {
	if !i.Enabled() {
		return nil, ErrDisabled
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildQuery(q)); err != nil {
		return nil, fmt.Errorf("erreur encodage requête: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, i.es)
	if err != nil {
		return nil, fmt.Errorf("erreur requête Elastic: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("recherche commandes: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source OrderDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("erreur décodage JSON: %w", err)
	}
	docs := make([]OrderDocument, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}

func buildQuery(q Query) map[string]interface{} {
	var filters []map[string]interface{}
	term := func(field, value string) {
		if value != "" {
			filters = append(filters, map[string]interface{}{"term": map[string]interface{}{field: value}})
		}
	}
	term("status.keyword", q.Status)
	term("paymentStatus.keyword", q.PaymentStatus)
	term("vendorIds.keyword", q.VendorID)
	term("buyerId.keyword", q.BuyerID)

	size := q.Size
	if size <= 0 || size > 100 {
		size = 50
	}
	body := map[string]interface{}{
		"size": size,
		"sort": []map[string]interface{}{{"placedAt": map[string]string{"order": "desc"}}},
	}
	if len(filters) == 0 {
		body["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	} else {
		body["query"] = map[string]interface{}{"bool": map[string]interface{}{"filter": filters}}
	}
	return body
}
