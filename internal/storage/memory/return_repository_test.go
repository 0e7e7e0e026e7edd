package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestReturnRepository_ListByOrderOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Now().UTC()

	for i, id := range []string{"order-1", "order-2"} {
		cart := seedCart(t, store, "cart-"+id, "user-7/"+id)
		if err := store.Orders().Create(ctx, orderFromCart(id, cart, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}

	// Одинаковый created_at у return-b и return-a: порядок решает id.
	seeds := []struct {
		id, orderID string
		at          time.Duration
	}{
		{"return-c", "order-1", 2 * time.Minute},
		{"return-b", "order-1", time.Minute},
		{"return-x", "order-2", 0},
		{"return-a", "order-1", time.Minute},
	}
	for _, seed := range seeds {
		ret := domain.Return{ID: seed.id, OrderID: seed.orderID, UserID: "user-7", CreatedAt: base.Add(seed.at)}
		ret.ReplaceItems([]domain.ReturnItem{{ProductID: "A", Quantity: 1, Reason: "damaged", UnitAmount: decimal.RequireFromString("10.00")}})
		if err := store.Returns().Create(ctx, ret); err != nil {
			t.Fatalf("create return %s: %v", seed.id, err)
		}
	}

	rets, err := store.Returns().ListByOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("list by order: %v", err)
	}
	var ids []string
	for _, ret := range rets {
		ids = append(ids, ret.ID)
	}
	if len(ids) != 3 || ids[0] != "return-a" || ids[1] != "return-b" || ids[2] != "return-c" {
		t.Fatalf("expected [return-a return-b return-c], got %v", ids)
	}

	all, err := store.Returns().List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 || all[0].ID != "return-x" {
		t.Fatalf("expected return-x first, got %+v", all)
	}
}
