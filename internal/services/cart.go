package services

import (
	"context"
	"errors"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/cache"
	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	CartUpdated = "updated"
	CartCleared = "cleared"
)

type AddToCartInput struct {
	ListingID string
	ProductID string
	VendorID  string
	Quantity  int
	Price     decimal.Decimal
}

type CartService struct {
	cart     repository.CartRepository
	listings repository.ListingRepository
	cache    *cache.CartCache
	log      *zap.Logger
}

// NewCartService : listings est optionnel ; s'il est fourni, l'offre fait foi
// pour le produit, le vendeur et le prix.
func NewCartService(cart repository.CartRepository, listings repository.ListingRepository, c *cache.CartCache, log *zap.Logger) *CartService {
	return &CartService{cart: cart, listings: listings, cache: c, log: log}
}

func (s *CartService) AddToCart(ctx context.Context, userID string, in AddToCartInput) (*models.CartItem, error) {
	if in.ListingID == "" {
		return nil, apperr.Validation("listingId is required")
	}
	if in.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}

	item := models.CartItem{
		UserID:    userID,
		ListingID: in.ListingID,
		ProductID: in.ProductID,
		VendorID:  in.VendorID,
		Quantity:  in.Quantity,
		UnitPrice: in.Price,
	}

	if s.listings != nil {
		listing, err := s.listings.Get(ctx, in.ListingID)
		if err != nil {
			return nil, storeErr(err, "listing not found")
		}
		requested := in.Quantity
		if existing, err := s.cart.Get(ctx, userID, in.ListingID, false); err == nil {
			requested += existing.Quantity
		}
		if listing.Stock < requested {
			return nil, apperr.Validation("insufficient stock")
		}
		item.ProductID = listing.ProductID
		item.VendorID = listing.VendorID
		item.UnitPrice = listing.Price
	} else if in.ProductID == "" || in.VendorID == "" || !in.Price.IsPositive() {
		return nil, apperr.Validation("productId, vendorId and price are required")
	} else if !models.WholeCents(in.Price) {
		return nil, apperr.Validation("price must have at most 2 decimals")
	}

	saved, err := s.cart.Add(ctx, item)
	if err != nil {
		return nil, storeErr(err, "add to cart")
	}
	s.cache.Invalidate(ctx, userID, CartUpdated)
	return saved, nil
}

// UpdateQuantity : une quantité nulle supprime la ligne (retourne nil, nil).
func (s *CartService) UpdateQuantity(ctx context.Context, userID, listingID string, quantity int) (*models.CartItem, error) {
	if quantity < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}
	if quantity == 0 {
		return nil, s.DeleteItem(ctx, userID, listingID, false)
	}
	item, err := s.cart.SetQuantity(ctx, userID, listingID, quantity)
	if err != nil {
		return nil, storeErr(err, "cart item not found")
	}
	s.cache.Invalidate(ctx, userID, CartUpdated)
	return item, nil
}

func (s *CartService) DeleteItem(ctx context.Context, userID, listingID string, savedForLater bool) error {
	if err := s.cart.Delete(ctx, userID, listingID, savedForLater); err != nil {
		return storeErr(err, "cart item not found")
	}
	s.cache.Invalidate(ctx, userID, CartUpdated)
	return nil
}

// ToggleSaveForLater déplace une ligne entre le panier actif et la liste
// "pour plus tard", en fusionnant avec une ligne existante côté cible. Si
// l'ajout côté cible échoue, la ligne d'origine est restaurée.
func (s *CartService) ToggleSaveForLater(ctx context.Context, userID, listingID string) (*models.CartItem, error) {
	item, err := s.cart.Get(ctx, userID, listingID, false)
	if errors.Is(err, repository.ErrNotFound) {
		item, err = s.cart.Get(ctx, userID, listingID, true)
	}
	if err != nil {
		return nil, storeErr(err, "cart item not found")
	}

	if err := s.cart.Delete(ctx, userID, listingID, item.SavedForLater); err != nil {
		return nil, storeErr(err, "cart item not found")
	}
	moved := *item
	moved.SavedForLater = !item.SavedForLater
	result, err := s.cart.Add(ctx, moved)
	if err != nil {
		if _, rerr := s.cart.Add(ctx, *item); rerr != nil {
			s.log.Error("ligne de panier perdue", zap.String("user_id", userID), zap.String("listing_id", listingID), zap.Error(rerr))
		}
		return nil, storeErr(err, "save for later")
	}
	s.cache.Invalidate(ctx, userID, CartUpdated)
	return result, nil
}

func (s *CartService) GetCart(ctx context.Context, userID string) (models.Cart, error) {
	items, err := s.list(ctx, userID, false)
	if err != nil {
		return models.Cart{}, err
	}
	return models.NewCart(items), nil
}

func (s *CartService) GetWishlist(ctx context.Context, userID string) (models.Cart, error) {
	items, err := s.list(ctx, userID, true)
	if err != nil {
		return models.Cart{}, err
	}
	return models.NewCart(items), nil
}

// ClearActive vide le panier actif ; les articles "pour plus tard" restent.
func (s *CartService) ClearActive(ctx context.Context, userID string) error {
	if err := s.cart.ClearActive(ctx, userID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID, CartCleared)
	return nil
}

func (s *CartService) list(ctx context.Context, userID string, saved bool) ([]models.CartItem, error) {
	if items, ok := s.cache.Get(ctx, userID, saved); ok {
		return items, nil
	}
	items, err := s.cart.List(ctx, userID, saved)
	if err != nil {
		return nil, storeErr(err, "load cart")
	}
	s.cache.Set(ctx, userID, saved, items)
	return items, nil
}
