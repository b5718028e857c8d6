package scylla

import (
	"context"
	"time"

	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"

	"github.com/gocql/gocql"
)

const mergeAttempts = 5

// Cart stocke les lignes sous ((user_id), saved_for_later, listing_id) :
// au plus une ligne par offre et par ensemble, garantie par la clé primaire.
type Cart struct {
	session *gocql.Session
}

func NewCart(session *gocql.Session) *Cart {
	return &Cart{session: session}
}

func (r *Cart) List(ctx context.Context, userID string, savedForLater bool) ([]models.CartItem, error) {
	iter := r.session.Query(`SELECT listing_id, product_id, vendor_id, quantity, unit_price_cents, added_at
		FROM cart_items WHERE user_id = ? AND saved_for_later = ?`, userID, savedForLater).WithContext(ctx).Iter()

	items := make([]models.CartItem, 0)
	var (
		item       models.CartItem
		priceCents int64
	)
	for iter.Scan(&item.ListingID, &item.ProductID, &item.VendorID, &item.Quantity, &priceCents, &item.AddedAt) {
		item.UserID = userID
		item.SavedForLater = savedForLater
		item.UnitPrice = models.FromCents(priceCents)
		items = append(items, item)
	}
	return items, iter.Close()
}

func (r *Cart) Get(ctx context.Context, userID, listingID string, savedForLater bool) (*models.CartItem, error) {
	item := models.CartItem{UserID: userID, ListingID: listingID, SavedForLater: savedForLater}
	var priceCents int64
	err := r.session.Query(`SELECT product_id, vendor_id, quantity, unit_price_cents, added_at FROM cart_items
		WHERE user_id = ? AND saved_for_later = ? AND listing_id = ?`, userID, savedForLater, listingID).
		WithContext(ctx).Scan(&item.ProductID, &item.VendorID, &item.Quantity, &priceCents, &item.AddedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	item.UnitPrice = models.FromCents(priceCents)
	return &item, nil
}

// Add insère la ligne ou, si elle existe, incrémente sa quantité par CAS.
func (r *Cart) Add(ctx context.Context, item models.CartItem) (*models.CartItem, error) {
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	price := models.ToCents(item.UnitPrice)

	for attempt := 0; attempt < mergeAttempts; attempt++ {
		existing := map[string]interface{}{}
		applied, err := r.session.Query(`INSERT INTO cart_items (user_id, saved_for_later, listing_id, product_id,
			vendor_id, quantity, unit_price_cents, added_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
			item.UserID, item.SavedForLater, item.ListingID, item.ProductID, item.VendorID, item.Quantity,
			price, item.AddedAt).WithContext(ctx).MapScanCAS(existing)
		if err != nil {
			return nil, err
		}
		if applied {
			return &item, nil
		}

		current, ok := existing["quantity"].(int)
		if !ok {
			continue
		}
		applied, err = r.session.Query(`UPDATE cart_items SET quantity = ?, unit_price_cents = ?
			WHERE user_id = ? AND saved_for_later = ? AND listing_id = ? IF quantity = ?`,
			current+item.Quantity, price, item.UserID, item.SavedForLater, item.ListingID, current).
			WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			return nil, err
		}
		if applied {
			return r.Get(ctx, item.UserID, item.ListingID, item.SavedForLater)
		}
	}
	return nil, repository.ErrVersionConflict
}

func (r *Cart) SetQuantity(ctx context.Context, userID, listingID string, quantity int) (*models.CartItem, error) {
	applied, err := r.session.Query(`UPDATE cart_items SET quantity = ? WHERE user_id = ? AND saved_for_later = false
		AND listing_id = ? IF EXISTS`, quantity, userID, listingID).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, repository.ErrNotFound
	}
	return r.Get(ctx, userID, listingID, false)
}

func (r *Cart) Delete(ctx context.Context, userID, listingID string, savedForLater bool) error {
	applied, err := r.session.Query(`DELETE FROM cart_items WHERE user_id = ? AND saved_for_later = ? AND listing_id = ? IF EXISTS`,
		userID, savedForLater, listingID).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return repository.ErrNotFound
	}
	return nil
}

// ClearActive supprime la tranche active de la partition en une seule écriture.
func (r *Cart) ClearActive(ctx context.Context, userID string) error {
	return r.session.Query(`DELETE FROM cart_items WHERE user_id = ? AND saved_for_later = false`, userID).
		WithContext(ctx).Exec()
}
