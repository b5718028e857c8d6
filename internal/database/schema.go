package database

import (
	"fmt"

	"github.com/gocql/gocql"
)

// OrdersSchema crée les tables du keyspace orders. Les keyspaces users et
// products appartiennent à d'autres services et ne sont que lus ici.
var OrdersSchema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		order_id uuid PRIMARY KEY,
		buyer_id text,
		items text,
		total_cents bigint,
		shipping_address_id text,
		shipping_address text,
		payment_mode text,
		status text,
		payment_status text,
		dispatch_status text,
		dispatch_time timestamp,
		placed_at timestamp,
		updated_at timestamp,
		version int
	)`,
	`CREATE TABLE IF NOT EXISTS orders_by_buyer (
		buyer_id text,
		placed_at timestamp,
		order_id uuid,
		PRIMARY KEY ((buyer_id), placed_at, order_id)
	) WITH CLUSTERING ORDER BY (placed_at DESC, order_id ASC)`,
	`CREATE TABLE IF NOT EXISTS orders_by_vendor (
		vendor_id text,
		placed_at timestamp,
		order_id uuid,
		PRIMARY KEY ((vendor_id), placed_at, order_id)
	) WITH CLUSTERING ORDER BY (placed_at DESC, order_id ASC)`,
	`CREATE TABLE IF NOT EXISTS payments (
		payment_id uuid PRIMARY KEY,
		user_id text,
		order_id uuid,
		amount_cents bigint,
		method text,
		status text,
		transaction_id text,
		refund_id text,
		created_at timestamp,
		updated_at timestamp,
		version int
	)`,
	`CREATE TABLE IF NOT EXISTS payments_by_order (
		order_id uuid,
		payment_id uuid,
		PRIMARY KEY ((order_id), payment_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pending_payments (
		bucket text,
		created_at timestamp,
		payment_id uuid,
		PRIMARY KEY ((bucket), created_at, payment_id)
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		user_id text,
		saved_for_later boolean,
		listing_id text,
		product_id text,
		vendor_id text,
		quantity int,
		unit_price_cents bigint,
		added_at timestamp,
		PRIMARY KEY ((user_id), saved_for_later, listing_id)
	)`,
	`CREATE TABLE IF NOT EXISTS return_requests (
		return_id uuid PRIMARY KEY,
		order_id uuid,
		user_id text,
		reason text,
		status text,
		created_at timestamp,
		updated_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS return_requests_by_order (
		order_id uuid,
		return_id uuid,
		PRIMARY KEY ((order_id), return_id)
	)`,
	`CREATE TABLE IF NOT EXISTS return_requests_by_user (
		user_id text,
		created_at timestamp,
		return_id uuid,
		PRIMARY KEY ((user_id), created_at, return_id)
	) WITH CLUSTERING ORDER BY (created_at DESC, return_id ASC)`,
	`CREATE TABLE IF NOT EXISTS processed_events (
		event_id text PRIMARY KEY,
		status text,
		claimed_at timestamp,
		completed_at timestamp
	)`,
}

// ApplySchema n'est appelé que si SCYLLA_AUTO_MIGRATE=true ; en production
// le rôle applicatif n'a généralement pas le droit CREATE.
func ApplySchema(session *gocql.Session, statements []string) error {
	for _, stmt := range statements {
		if err := session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("migration échouée: %w", err)
		}
	}
	return nil
}
