package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"cedra_orders/internal/models"
	"cedra_orders/internal/repository"
)

// Catalog regroupe les données en lecture seule possédées par d'autres services
// (adresses, utilisateurs, offres vendeurs).
type Catalog struct {
	mu        sync.RWMutex
	addresses map[string]models.Address
	users     map[string]models.User
	listings  map[string]models.Listing
}

func NewCatalog() *Catalog {
	return &Catalog{
		addresses: make(map[string]models.Address),
		users:     make(map[string]models.User),
		listings:  make(map[string]models.Listing),
	}
}

// Seed est le format du fichier MEMORY_SEED_FILE.
type Seed struct {
	Addresses []models.Address `json:"addresses"`
	Users     []models.User    `json:"users"`
	Listings  []models.Listing `json:"listings"`
}

func LoadSeed(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lecture seed %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("décodage seed %s: %w", path, err)
	}
	c := NewCatalog()
	for _, a := range seed.Addresses {
		c.PutAddress(a)
	}
	for _, u := range seed.Users {
		c.PutUser(u)
	}
	for _, l := range seed.Listings {
		c.PutListing(l)
	}
	return c, nil
}

func (c *Catalog) PutAddress(a models.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addresses[a.ID] = a
}

func (c *Catalog) PutUser(u models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = u
}

func (c *Catalog) PutListing(l models.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings[l.ID] = l
}

func (c *Catalog) Addresses() repository.AddressRepository { return addressView{c} }
func (c *Catalog) Users() repository.UserRepository       { return userView{c} }
func (c *Catalog) Listings() repository.ListingRepository { return listingView{c} }

type addressView struct{ c *Catalog }

func (v addressView) Get(_ context.Context, id string) (*models.Address, error) {
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()
	a, ok := v.c.addresses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

type userView struct{ c *Catalog }

func (v userView) Get(_ context.Context, id string) (*models.User, error) {
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()
	u, ok := v.c.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

type listingView struct{ c *Catalog }

func (v listingView) Get(_ context.Context, id string) (*models.Listing, error) {
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()
	l, ok := v.c.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}
