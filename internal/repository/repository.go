// Package repository déclare les ports de persistance du service de commandes.
// Les implémentations vivent dans scylla (production) et memory (tests, dev).
package repository

import (
	"context"
	"errors"
	"time"

	"cedra_orders/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrAlreadyExists   = errors.New("already exists")
)

// OrderRepository : Update est un compare-and-set sur Version, qui est
// incrémentée sur l'objet passé en cas de succès.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*models.Order, error)
	ListByVendor(ctx context.Context, vendorID string) ([]*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	Get(ctx context.Context, id string) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]*models.Payment, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
}

// CartRepository : Add fusionne la quantité si la ligne existe déjà dans le même ensemble.
type CartRepository interface {
	List(ctx context.Context, userID string, savedForLater bool) ([]models.CartItem, error)
	Get(ctx context.Context, userID, listingID string, savedForLater bool) (*models.CartItem, error)
	Add(ctx context.Context, item models.CartItem) (*models.CartItem, error)
	SetQuantity(ctx context.Context, userID, listingID string, quantity int) (*models.CartItem, error)
	Delete(ctx context.Context, userID, listingID string, savedForLater bool) error
	ClearActive(ctx context.Context, userID string) error
}

type AddressRepository interface {
	Get(ctx context.Context, id string) (*models.Address, error)
}

type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

type ListingRepository interface {
	Get(ctx context.Context, id string) (*models.Listing, error)
}

type ReturnRepository interface {
	Create(ctx context.Context, req *models.ReturnRequest) error
	Get(ctx context.Context, id string) (*models.ReturnRequest, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ReturnRequest, error)
	ListByOrder(ctx context.Context, orderID string) ([]*models.ReturnRequest, error)
	Update(ctx context.Context, req *models.ReturnRequest) error
}

// ProcessedEventStore garde les identifiants d'événements passerelle déjà traités.
// Claim retourne false si l'événement est déjà réclamé ou terminé.
type ProcessedEventStore interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

// ClaimTTL borne la durée d'une réclamation non terminée (process interrompu).
const ClaimTTL = 5 * time.Minute
