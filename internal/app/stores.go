// Package app assemble les repositories selon STORAGE_DRIVER.
package app

import (
	"fmt"

	"cedra_orders/internal/config"
	"cedra_orders/internal/database"
	"cedra_orders/internal/repository"
	"cedra_orders/internal/repository/memory"
	"cedra_orders/internal/repository/scylla"

	"go.uber.org/zap"
)

type Stores struct {
	Orders    repository.OrderRepository
	Payments  repository.PaymentRepository
	Cart      repository.CartRepository
	Returns   repository.ReturnRepository
	Processed repository.ProcessedEventStore
	Addresses repository.AddressRepository
	Users     repository.UserRepository
	Listings  repository.ListingRepository // nil : pas de vérification d'offre

	close func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

func OpenStores(cfg *config.Config, log *zap.Logger) (*Stores, error) {
	if cfg.StorageDriver == config.DriverMemory {
		return openMemory(cfg, log)
	}
	return openScylla(cfg, log)
}

func openMemory(cfg *config.Config, log *zap.Logger) (*Stores, error) {
	catalog := memory.NewCatalog()
	if cfg.MemorySeed != "" {
		seeded, err := memory.LoadSeed(cfg.MemorySeed)
		if err != nil {
			return nil, err
		}
		catalog = seeded
	}
	log.Warn("stockage en mémoire : les données sont perdues à l'arrêt")
	s := &Stores{
		Orders:    memory.NewOrders(),
		Payments:  memory.NewPayments(),
		Cart:      memory.NewCart(),
		Returns:   memory.NewReturns(),
		Processed: memory.NewProcessedEvents(),
		Addresses: catalog.Addresses(),
		Users:     catalog.Users(),
	}
	if cfg.MemorySeed != "" {
		s.Listings = catalog.Listings()
	}
	return s, nil
}

func openScylla(cfg *config.Config, log *zap.Logger) (*Stores, error) {
	sm, err := database.NewScyllaManager(cfg.Scylla, log)
	if err != nil {
		return nil, err
	}
	orders, err := sm.OrdersSession()
	if err != nil {
		sm.Close()
		return nil, err
	}
	users, err := sm.UsersSession()
	if err != nil {
		sm.Close()
		return nil, err
	}
	products, err := sm.ProductsSession()
	if err != nil {
		sm.Close()
		return nil, err
	}

	if cfg.Scylla.AutoMigrate {
		if err := database.ApplySchema(orders, database.OrdersSchema); err != nil {
			sm.Close()
			return nil, fmt.Errorf("schéma orders: %w", err)
		}
		log.Info("schéma orders appliqué")
	}

	s := &Stores{
		Orders:    scylla.NewOrders(orders),
		Payments:  scylla.NewPayments(orders),
		Cart:      scylla.NewCart(orders),
		Returns:   scylla.NewReturns(orders),
		Processed: scylla.NewProcessedEvents(orders),
		Addresses: scylla.NewAddresses(users),
		Users:     scylla.NewUsers(users),
		close:     sm.Close,
	}
	if products != nil {
		s.Listings = scylla.NewListings(products)
	}
	return s, nil
}
