package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newMemoryDependencies(t *testing.T) (*Dependencies, *memory.Store, *memory.OutboxRepository) {
	t.Helper()

	store := memory.NewStore()
	store.Products().Upsert(domain.Product{ID: "A", UnitAmount: decimal.RequireFromString("10.00"), IsActive: true, Stock: 10})
	outbox := memory.NewOutboxRepository()

	deps := NewDependencies(DefaultConfig(), NewMemoryStorage(store, outbox), log.WithField("test", "dependencies"))
	return deps, store, outbox
}

func TestNewDependencies_WiresLifecycleServices(t *testing.T) {
	deps, _, outbox := newMemoryDependencies(t)
	ctx := context.Background()

	require.NotNil(t, deps.Services.Carts)
	require.NotNil(t, deps.Services.Orders)
	require.NotNil(t, deps.Services.Returns)
	require.NotNil(t, deps.Services.Invoices)

	cart, err := deps.Services.Carts.Create(ctx, "user-1", []lifecycle.ItemInput{{ProductID: "A", Quantity: 2}})
	require.NoError(t, err)

	created, err := deps.Services.Orders.Create(ctx, order.CreateInput{
		UserID:          "user-1",
		CartID:          cart.ID,
		ShippingAddress: "Main st. 1",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", created.Status)
	require.True(t, created.TotalAmount.Equal(decimal.RequireFromString("20.00")))

	pending, err := outbox.PullPending(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, pending, "lifecycle events must land in the outbox")
}

func TestNewDependencies_HealthReportsComponents(t *testing.T) {
	deps, store, _ := newMemoryDependencies(t)
	ctx := context.Background()

	overall, checks := deps.Health.Run(ctx)
	require.Equal(t, health.StatusHealthy, overall)
	require.Contains(t, checks, "storage")
	require.Contains(t, checks, "status_registry")
	require.Contains(t, checks, "outbox")

	// Недоступный справочник до первой загрузки делает сервис неготовым.
	store.Statuses().SetUnavailable(errors.New("connection refused"))
	deps.Registry.Reset()

	overall, checks = deps.Health.Run(ctx)
	require.Equal(t, health.StatusUnhealthy, overall)
	require.Equal(t, health.StatusUnhealthy, checks["status_registry"].Status)

	store.Statuses().SetUnavailable(nil)
	deps.WarmUp(ctx)
	require.True(t, deps.Registry.Loaded())
}

func TestOpenStorage(t *testing.T) {
	logger := log.WithField("test", "storage")

	storage, err := openStorage(context.Background(), Config{StorageDriver: StorageDriverMemory}, logger)
	require.NoError(t, err)
	require.NotNil(t, storage.Orders)
	require.NotNil(t, storage.Outbox)
	require.NoError(t, storage.Ping(context.Background()))
	require.NoError(t, storage.Close())

	_, err = openStorage(context.Background(), Config{StorageDriver: StorageDriverPostgres}, logger)
	require.ErrorContains(t, err, "requires a DSN")

	_, err = openStorage(context.Background(), Config{StorageDriver: "sqlite"}, logger)
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestDependencies_ReloadStatusesDropsCachedViews(t *testing.T) {
	deps, _, _ := newMemoryDependencies(t)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`{"status":"pending"}`), nil
	}
	for _, key := range []string{cache.OrderKey("o-1"), cache.OrdersByUserKey("u-1"), cache.InvoicesAllKey()} {
		_, err := deps.Cache.GetOrSet(ctx, key, time.Minute, fetch)
		require.NoError(t, err)
	}
	require.Equal(t, 3, calls)

	require.NoError(t, deps.ReloadStatuses(ctx))
	require.True(t, deps.Registry.Loaded())

	for _, key := range []string{cache.OrderKey("o-1"), cache.OrdersByUserKey("u-1"), cache.InvoicesAllKey()} {
		_, err := deps.Cache.GetOrSet(ctx, key, time.Minute, fetch)
		require.NoError(t, err)
	}
	require.Equal(t, 6, calls)
}
