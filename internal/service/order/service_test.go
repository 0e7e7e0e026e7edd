package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/status"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	store    *memory.Store
	outbox   *memory.OutboxRepository
	registry *status.Registry
	carts    *cart.Service
	orders   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.Products().Upsert(domain.Product{ID: "A", UnitAmount: decimal.RequireFromString("10.00"), IsActive: true, Stock: 100})
	store.Products().Upsert(domain.Product{ID: "B", UnitAmount: decimal.RequireFromString("5.00"), IsActive: true, Stock: 100})
	store.Products().Upsert(domain.Product{ID: "C", UnitAmount: decimal.RequireFromString("2.50"), IsActive: false, Stock: 100})

	outbox := memory.NewOutboxRepository()
	registry := status.NewRegistry(store.Statuses())
	deps := lifecycle.Deps{
		Statuses: registry,
		Cache:    cache.New(cache.NewMemoryStore()),
		Events:   outbox,
		Metrics:  metrics.NewLifecycleMetricsWithRegisterer(prometheus.NewRegistry()),
	}
	carts := cart.NewService(store.Carts(), store.Products(), deps)
	return &fixture{
		store:    store,
		outbox:   outbox,
		registry: registry,
		carts:    carts,
		orders:   NewService(store.Orders(), store.Carts(), carts, store.Products(), deps),
	}
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func twoItems() []lifecycle.ItemInput {
	return []lifecycle.ItemInput{
		{ProductID: "A", Quantity: 2, UnitAmount: price("10.00")},
		{ProductID: "B", Quantity: 1, UnitAmount: price("5.00")},
	}
}

func (f *fixture) createOrder(t *testing.T, userID string) View {
	t.Helper()
	view, err := f.orders.Create(context.Background(), CreateInput{
		UserID:          userID,
		Items:           twoItems(),
		ShippingAddress: "Main st. 1",
	})
	require.NoError(t, err)
	return view
}

func TestCreate_FromCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cartView, err := f.carts.Create(ctx, "7", twoItems())
	require.NoError(t, err)

	view, err := f.orders.Checkout(ctx, "7", cartView.ID, "Main st. 1")
	require.NoError(t, err)
	require.True(t, view.TotalAmount.Equal(decimal.RequireFromString("25.00")))
	require.Equal(t, "pending", view.Status)
	require.Equal(t, cartView.ID, view.CartID)

	stored, err := f.carts.Get(ctx, cartView.ID)
	require.NoError(t, err)
	require.True(t, stored.Finalized)

	require.Len(t, f.outbox.ByEventType(EventCreated), 1)
}

func TestCreate_TotalIgnoresCallerAndUsesCatalogPrice(t *testing.T) {
	f := newFixture(t)

	view, err := f.orders.Create(context.Background(), CreateInput{
		UserID:          "7",
		Items:           []lifecycle.ItemInput{{ProductID: "A", Quantity: 3}},
		ShippingAddress: "Main st. 1",
	})
	require.NoError(t, err)
	require.True(t, view.TotalAmount.Equal(decimal.RequireFromString("30.00")))
	require.True(t, view.Items[0].UnitAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestCreate_RejectsCallerPriceBelowCatalog(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.Create(context.Background(), CreateInput{
		UserID:          "7",
		Items:           []lifecycle.ItemInput{{ProductID: "A", Quantity: 2, UnitAmount: price("0.01")}},
		ShippingAddress: "Main st. 1",
	})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	require.ErrorIs(t, err, domain.ErrItemPriceMismatch)

	orders, err := f.orders.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestUpdate_RejectsCallerPriceAndSkipsTotalCheck(t *testing.T) {
	f := newFixture(t)
	created := f.createOrder(t, "7")

	items := []lifecycle.ItemInput{{ProductID: "A", Quantity: 1, UnitAmount: price("0.01")}}
	total := decimal.RequireFromString("0.01")
	_, err := f.orders.Update(context.Background(), created.ID, UpdateInput{Items: &items, TotalAmount: &total})
	require.ErrorIs(t, err, domain.ErrItemPriceMismatch)
	require.NotErrorIs(t, err, domain.ErrAmountMismatch)
	require.Len(t, domain.Violations(err), 1)

	malformed := []lifecycle.ItemInput{{ProductID: "A", Quantity: 0}}
	_, err = f.orders.Update(context.Background(), created.ID, UpdateInput{Items: &malformed, TotalAmount: &total})
	require.ErrorIs(t, err, domain.ErrItemQtyInvalid)
	require.NotErrorIs(t, err, domain.ErrAmountMismatch)

	stored, err := f.orders.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("25.00")))
}

func TestCreate_CollectsAllViolations(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.Create(context.Background(), CreateInput{
		UserID:     "7",
		StatusName: "teleported",
		Items: []lifecycle.ItemInput{
			{ProductID: "A", Quantity: 0},
			{ProductID: "B", Quantity: 1, UnitAmount: price("-1")},
		},
	})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	require.ErrorIs(t, err, domain.ErrItemQtyInvalid)
	require.ErrorIs(t, err, domain.ErrItemAmountInvalid)
	require.ErrorIs(t, err, domain.ErrShippingAddressEmpty)
	require.ErrorIs(t, err, domain.ErrStatusNotFound)
	require.Len(t, domain.Violations(err), 4)

	orders, err := f.orders.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestCreate_EmptyItemsAndInactiveProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.Create(ctx, CreateInput{UserID: "7", ShippingAddress: "x"})
	require.ErrorIs(t, err, domain.ErrItemsRequired)

	_, err = f.orders.Create(ctx, CreateInput{
		UserID:          "7",
		ShippingAddress: "x",
		Items:           []lifecycle.ItemInput{{ProductID: "C", Quantity: 1}, {ProductID: "Z", Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrProductInactive)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCreate_SecondOrderForCartRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createOrder(t, "7")
	_, err := f.orders.Create(ctx, CreateInput{
		UserID:          "7",
		CartID:          first.CartID,
		Items:           twoItems(),
		ShippingAddress: "Main st. 1",
	})
	require.ErrorIs(t, err, domain.ErrCartAlreadyOrdered)
}

func TestCreate_ForeignCartRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign, err := f.carts.Active(ctx, "3")
	require.NoError(t, err)

	_, err = f.orders.Create(ctx, CreateInput{UserID: "9", CartID: foreign.ID, Items: twoItems(), ShippingAddress: "x"})
	require.ErrorIs(t, err, domain.ErrOwnershipViolation)
}

func TestCreate_ConcurrentSameCartLeavesOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cartView, err := f.carts.Create(ctx, "7", twoItems())
	require.NoError(t, err)

	const attempts = 2
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.orders.Create(ctx, CreateInput{
				UserID:          "7",
				CartID:          cartView.ID,
				Items:           twoItems(),
				ShippingAddress: "Main st. 1",
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, errors.Is(err, domain.ErrCartAlreadyOrdered), "unexpected error: %v", err)
	}
	require.Equal(t, 1, succeeded)

	orders, err := f.orders.ListByUser(ctx, "7")
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestCreate_RegistryUnavailableFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.store.Statuses().SetUnavailable(errors.New("status table unreachable"))

	_, err := f.orders.Create(context.Background(), CreateInput{UserID: "7", Items: twoItems(), ShippingAddress: "x"})
	require.ErrorIs(t, err, domain.ErrStatusRegistryUnavailable)

	exists, err := f.store.Orders().List(context.Background())
	require.NoError(t, err)
	require.Empty(t, exists)
	_, err = f.store.Carts().GetActiveByUser(context.Background(), "7")
	require.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestUpdateStatus_TransitionTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, "7")

	_, err := f.orders.UpdateStatus(ctx, order.ID, "delivered")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	var transition *domain.TransitionError
	require.ErrorAs(t, err, &transition)

	current, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "pending", current.Status)

	_, err = f.orders.UpdateStatus(ctx, order.ID, "pending")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	for _, next := range []string{"Confirmed", "processing", "shipped", "delivered"} {
		view, err := f.orders.UpdateStatus(ctx, order.ID, next)
		require.NoError(t, err)
		require.Equal(t, domain.NormalizeStatusName(next), view.Status)
	}

	for _, target := range domain.StatusNames(domain.EntityOrder) {
		_, err := f.orders.UpdateStatus(ctx, order.ID, target)
		require.ErrorIs(t, err, domain.ErrInvalidTransition, "delivered -> %s", target)
	}
	require.Len(t, f.outbox.ByEventType(EventStatusChanged), 4)
}

func TestUpdate_ItemsRecomputeTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, "7")

	items := []lifecycle.ItemInput{{ProductID: "B", Quantity: 4}}
	view, err := f.orders.Update(ctx, order.ID, UpdateInput{Items: &items})
	require.NoError(t, err)
	require.True(t, view.TotalAmount.Equal(decimal.RequireFromString("20.00")))
	require.Equal(t, int64(1), view.Version)

	wrongTotal := decimal.RequireFromString("21.00")
	_, err = f.orders.Update(ctx, order.ID, UpdateInput{Items: &items, TotalAmount: &wrongTotal})
	require.ErrorIs(t, err, domain.ErrAmountMismatch)

	rightTotal := decimal.RequireFromString("20.00")
	_, err = f.orders.Update(ctx, order.ID, UpdateInput{Items: &items, TotalAmount: &rightTotal})
	require.NoError(t, err)
}

func TestUpdate_ReportsEveryViolationAndPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, "7")

	empty := ""
	delivered := "delivered"
	var noItems []lifecycle.ItemInput
	_, err := f.orders.Update(ctx, order.ID, UpdateInput{
		Items:           &noItems,
		ShippingAddress: &empty,
		StatusName:      &delivered,
	})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	require.ErrorIs(t, err, domain.ErrItemsRequired)
	require.ErrorIs(t, err, domain.ErrShippingAddressEmpty)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	current, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ShippingAddress, current.ShippingAddress)
	require.Len(t, current.Items, 2)

	_, err = f.orders.Update(ctx, order.ID, UpdateInput{})
	require.ErrorIs(t, err, domain.ErrNothingToUpdate)
}

func TestUpdate_CacheCoherence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, "7")

	// Прогреваем кэш сущности и коллекций.
	_, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.orders.List(ctx)
	require.NoError(t, err)
	_, err = f.orders.ListByUser(ctx, "7")
	require.NoError(t, err)

	address := "Second st. 2"
	_, err = f.orders.Update(ctx, order.ID, UpdateInput{ShippingAddress: &address})
	require.NoError(t, err)

	current, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, address, current.ShippingAddress)

	all, err := f.orders.List(ctx)
	require.NoError(t, err)
	require.Equal(t, address, all[0].ShippingAddress)

	mine, err := f.orders.ListByUser(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, address, mine[0].ShippingAddress)
}

func TestUpdate_StatusRoundTripsThroughRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, "7")

	view, err := f.orders.UpdateStatus(ctx, order.ID, "CONFIRMED")
	require.NoError(t, err)

	stored, err := f.store.Orders().Get(ctx, order.ID)
	require.NoError(t, err)
	id, err := f.registry.Resolve(ctx, domain.EntityOrder, view.Status)
	require.NoError(t, err)
	require.Equal(t, stored.StatusID, id)
}

func TestDelete_GatedByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.createOrder(t, "7")
	_, err := f.orders.List(ctx)
	require.NoError(t, err)

	deleted, err := f.orders.Delete(ctx, pending.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	all, err := f.orders.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	shipped := f.createOrder(t, "8")
	for _, next := range []string{"confirmed", "processing", "shipped"} {
		_, err := f.orders.UpdateStatus(ctx, shipped.ID, next)
		require.NoError(t, err)
	}
	deleted, err = f.orders.Delete(ctx, shipped.ID)
	require.NoError(t, err)
	require.False(t, deleted)

	_, err = f.orders.Get(ctx, shipped.ID)
	require.NoError(t, err)

	_, err = f.orders.Delete(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

type brokenOrders struct {
	domain.OrderRepository
}

func (brokenOrders) Save(context.Context, domain.Order) error {
	return errors.New("connection reset by peer")
}

func TestUpdate_StorageFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, "7")

	svc := NewService(brokenOrders{f.store.Orders()}, f.store.Carts(), f.carts, f.store.Products(), lifecycle.Deps{Statuses: f.registry})
	address := "x"
	_, err := svc.Update(context.Background(), order.ID, UpdateInput{ShippingAddress: &address})
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	require.NotContains(t, err.Error(), "connection reset")
}

type failingCacheStore struct {
	*cache.MemoryStore
}

func (failingCacheStore) Delete(context.Context, ...string) error {
	return errors.New("cache unavailable")
}

func TestMutation_SucceedsWhenInvalidationFails(t *testing.T) {
	f := newFixture(t)
	deps := lifecycle.Deps{
		Statuses: f.registry,
		Cache:    cache.New(failingCacheStore{cache.NewMemoryStore()}),
		TTL:      lifecycle.TTL{Order: time.Millisecond, Return: time.Minute, Invoice: time.Minute, Cart: time.Minute, Collection: time.Millisecond},
	}
	svc := NewService(f.store.Orders(), f.store.Carts(), f.carts, f.store.Products(), deps)

	view, err := svc.Create(context.Background(), CreateInput{UserID: "7", Items: twoItems(), ShippingAddress: "x"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), view.ID, "confirmed")
	require.NoError(t, err)
}
