package scylla

import (
	"context"

	"cedra_orders/internal/models"

	"github.com/gocql/gocql"
	"github.com/shopspring/decimal"
)

// Addresses lit le keyspace users, propriété du service utilisateurs.
type Addresses struct {
	session *gocql.Session
}

func NewAddresses(session *gocql.Session) *Addresses {
	return &Addresses{session: session}
}

func (r *Addresses) Get(ctx context.Context, addressID string) (*models.Address, error) {
	id, err := parseID(addressID)
	if err != nil {
		return nil, err
	}
	a := models.Address{ID: id.String()}
	err = r.session.Query(`SELECT user_id, name, street, city, postal_code, country, is_default
		FROM addresses WHERE address_id = ?`, id).WithContext(ctx).
		Scan(&a.UserID, &a.Name, &a.Street, &a.City, &a.PostalCode, &a.Country, &a.IsDefault)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

type Users struct {
	session *gocql.Session
}

func NewUsers(session *gocql.Session) *Users {
	return &Users{session: session}
}

func (r *Users) Get(ctx context.Context, userID string) (*models.User, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	u := models.User{ID: id.String()}
	err = r.session.Query(`SELECT email, name, role FROM users WHERE user_id = ?`, id).WithContext(ctx).
		Scan(&u.Email, &u.Name, &u.Role)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// Listings lit le keyspace products ; le prix y est stocké en double.
type Listings struct {
	session *gocql.Session
}

func NewListings(session *gocql.Session) *Listings {
	return &Listings{session: session}
}

func (r *Listings) Get(ctx context.Context, listingID string) (*models.Listing, error) {
	id, err := parseID(listingID)
	if err != nil {
		return nil, err
	}
	var (
		l     = models.Listing{ID: id.String()}
		price float64
	)
	err = r.session.Query(`SELECT product_id, vendor_id, title, price, stock FROM listings WHERE listing_id = ?`, id).
		WithContext(ctx).Scan(&l.ProductID, &l.VendorID, &l.Title, &price, &l.Stock)
	if err != nil {
		return nil, mapErr(err)
	}
	l.Price = decimal.NewFromFloat(price).Round(2)
	return &l, nil
}
