package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/invoice"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/service/returns"
	"github.com/vladislavdragonenkov/storefront/internal/status"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Dependencies содержит собранный граф сервисов.
type Dependencies struct {
	Storage  Storage
	Registry *status.Registry
	Cache    *cache.Cache
	Services grpcsvc.Services
	Health   *health.Handler
	Logger   *log.Entry
}

// NewDependencies собирает реестр статусов, кэш и сервисы жизненного цикла поверх storage.
func NewDependencies(cfg Config, storage Storage, logger *log.Entry) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	lifecycleMetrics := metrics.NewLifecycleMetrics()
	registry := status.NewRegistry(storage.Statuses,
		status.WithLogger(logger.WithField("component", "status-registry")),
		status.WithObserver(lifecycleMetrics),
	)
	readCache := cache.New(cache.NewMemoryStore(),
		cache.WithLogger(logger.WithField("component", "cache")),
		cache.WithObserver(metrics.NewCacheMetrics()),
	)

	ttl := cfg.CacheTTL
	if ttl == (lifecycle.TTL{}) {
		ttl = lifecycle.DefaultTTL()
	}
	deps := lifecycle.Deps{
		Statuses: registry,
		Cache:    readCache,
		Events:   storage.Outbox,
		Metrics:  lifecycleMetrics,
		Logger:   logger.WithField("layer", "service"),
		TTL:      ttl,
	}

	carts := cart.NewService(storage.Carts, storage.Catalog, deps)
	services := grpcsvc.Services{
		Carts:    carts,
		Orders:   order.NewService(storage.Orders, storage.Carts, carts, storage.Catalog, deps),
		Returns:  returns.NewService(storage.Returns, storage.Orders, cfg.ReturnWindow, deps),
		Invoices: invoice.NewService(storage.Invoices, storage.Orders, deps),
	}

	healthHandler := health.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", health.NewChecker("storage", storage.Ping))
	healthHandler.RegisterChecker("status_registry", health.NewChecker("status_registry", registry.Load))
	healthHandler.RegisterChecker("outbox", health.NewOptionalChecker("outbox", func(ctx context.Context) error {
		_, err := storage.Outbox.Stats(ctx)
		return err
	}))

	return &Dependencies{
		Storage:  storage,
		Registry: registry,
		Cache:    readCache,
		Services: services,
		Health:   healthHandler,
		Logger:   logger,
	}
}

// WarmUp загружает реестр статусов заранее; ошибка не фатальна, реестр догрузится при первом обращении.
func (d *Dependencies) WarmUp(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.Registry.Load(loadCtx); err != nil {
		d.Logger.WithError(err).Warn("status registry warm-up failed, mutations will fail until it loads")
	}
}

// ReloadStatuses перечитывает справочник статусов и сбрасывает все закэшированные
// представления: в них хранятся имена статусов.
func (d *Dependencies) ReloadStatuses(ctx context.Context) error {
	d.Registry.Reset()
	for _, namespace := range []string{cache.NamespaceOrder, cache.NamespaceReturn, cache.NamespaceInvoice, cache.NamespaceCart} {
		d.Cache.InvalidateCollection(ctx, namespace+":")
		d.Cache.InvalidateCollection(ctx, cache.CollectionPrefix(namespace))
	}
	if err := d.Registry.Load(ctx); err != nil {
		d.Logger.WithError(err).Error("status registry reload failed")
		return err
	}
	d.Logger.Info("status registry reloaded")
	return nil
}
