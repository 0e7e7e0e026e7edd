package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/status"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// Storage собирает репозитории выбранного бэкенда.
type Storage struct {
	Carts    domain.CartRepository
	Orders   domain.OrderRepository
	Returns  domain.ReturnRepository
	Invoices domain.InvoiceRepository
	Catalog  domain.ProductCatalog
	Statuses status.Source
	Outbox   domain.OutboxRepository

	Ping  func(ctx context.Context) error
	Close func() error
}

// NewMemoryStorage собирает Storage поверх in-memory хранилища.
func NewMemoryStorage(store *memory.Store, outbox *memory.OutboxRepository) Storage {
	if outbox == nil {
		outbox = memory.NewOutboxRepository()
	}
	return Storage{
		Carts:    store.Carts(),
		Orders:   store.Orders(),
		Returns:  store.Returns(),
		Invoices: store.Invoices(),
		Catalog:  store.Products(),
		Statuses: store.Statuses(),
		Outbox:   outbox,
		Ping:     store.Ping,
		Close:    func() error { return nil },
	}
}

// NewPostgresStorage собирает Storage поверх PostgreSQL.
func NewPostgresStorage(store *postgres.Store) Storage {
	return Storage{
		Carts:    store.Carts(),
		Orders:   store.Orders(),
		Returns:  store.Returns(),
		Invoices: store.Invoices(),
		Catalog:  store.Products(),
		Statuses: store.Statuses(),
		Outbox:   store.Outbox(),
		Ping:     store.Ping,
		Close:    store.Close,
	}
}

// openStorage открывает бэкенд по cfg.StorageDriver.
func openStorage(ctx context.Context, cfg Config, logger *log.Entry) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case StorageDriverMemory:
		logger.Info("using in-memory storage")
		return NewMemoryStorage(memory.NewStore(), nil), nil
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return Storage{}, fmt.Errorf("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return Storage{}, err
		}
		if cfg.PostgresAutoMigrate {
			applied, err := store.MigrateUp(ctx, 0)
			if err != nil {
				_ = store.Close()
				return Storage{}, fmt.Errorf("apply migrations: %w", err)
			}
			logger.WithField("applied", applied).Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return NewPostgresStorage(store), nil
	default:
		return Storage{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
