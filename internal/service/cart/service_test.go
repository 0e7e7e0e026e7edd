package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/status"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.Products().Upsert(domain.Product{ID: "A", UnitAmount: decimal.RequireFromString("10.00"), IsActive: true, Stock: 5})
	store.Products().Upsert(domain.Product{ID: "B", UnitAmount: decimal.RequireFromString("5.00"), IsActive: true, Stock: 5})
	store.Products().Upsert(domain.Product{ID: "OFF", UnitAmount: decimal.RequireFromString("1.00"), IsActive: false, Stock: 5})

	svc := NewService(store.Carts(), store.Products(), lifecycle.Deps{
		Statuses: status.NewRegistry(store.Statuses()),
		Cache:    cache.New(cache.NewMemoryStore()),
	})
	return svc, store
}

func TestActive_GetOrCreate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Active(ctx, "1")
	require.NoError(t, err)
	require.Empty(t, first.Items)
	require.True(t, first.Total.IsZero())

	second, err := svc.Active(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	_, err = svc.Active(ctx, "")
	require.ErrorIs(t, err, domain.ErrUserRequired)
}

func TestActive_ConcurrentCallersShareCart(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := svc.ActiveCart(ctx, "2")
			assert.NoError(t, err)
			ids[i] = cart.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
}

func TestCreate_WithItems(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.Create(ctx, "3", []lifecycle.ItemInput{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	require.True(t, view.Total.Equal(decimal.RequireFromString("25.00")))

	_, err = svc.Create(ctx, "3", nil)
	require.ErrorIs(t, err, domain.ErrActiveCartExists)
}

func TestCreate_CollectsViolations(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "4", []lifecycle.ItemInput{
		{ProductID: "OFF", Quantity: 1},
		{ProductID: "A", Quantity: 6},
		{ProductID: "missing", Quantity: 1},
	})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	require.ErrorIs(t, err, domain.ErrProductInactive)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	require.Len(t, domain.Violations(err), 3)

	_, err = store.Carts().GetActiveByUser(ctx, "4")
	require.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestItems_AddUpdateRemove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	active, err := svc.Active(ctx, "5")
	require.NoError(t, err)

	view, err := svc.AddItem(ctx, active.ID, lifecycle.ItemInput{ProductID: "A", Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, int32(2), view.Items[0].Quantity)

	view, err = svc.AddItem(ctx, active.ID, lifecycle.ItemInput{ProductID: "A", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, int32(3), view.Items[0].Quantity)

	// Суммарно 6 при остатке 5.
	_, err = svc.AddItem(ctx, active.ID, lifecycle.ItemInput{ProductID: "A", Quantity: 3})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	view, err = svc.UpdateItem(ctx, active.ID, "A", 1)
	require.NoError(t, err)
	require.True(t, view.Total.Equal(decimal.RequireFromString("10.00")))

	cached, err := svc.Get(ctx, active.ID)
	require.NoError(t, err)
	require.Equal(t, view.Version, cached.Version)

	view, err = svc.UpdateItem(ctx, active.ID, "A", 0)
	require.NoError(t, err)
	require.Empty(t, view.Items)

	_, err = svc.RemoveItem(ctx, active.ID, "A")
	require.ErrorIs(t, err, domain.ErrCartItemNotFound)

	_, err = svc.UpdateItem(ctx, active.ID, "A", -1)
	require.ErrorIs(t, err, domain.ErrItemQtyInvalid)
}

func TestMutate_FinalizedCartIsImmutable(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.Carts().Create(ctx, domain.Cart{ID: "done", UserID: "6", Finalized: true}))

	_, err := svc.AddItem(ctx, "done", lifecycle.ItemInput{ProductID: "A", Quantity: 1})
	require.ErrorIs(t, err, domain.ErrCartFinalized)

	_, err = svc.Get(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrCartNotFound)
}
