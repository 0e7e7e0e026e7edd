package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func makeReturn(order domain.Order) domain.Return {
	ret := domain.Return{
		ID:        "return-1",
		OrderID:   order.ID,
		UserID:    order.UserID,
		CreatedAt: order.CreatedAt.Add(24 * time.Hour),
	}
	ret.ReplaceItems([]domain.ReturnItem{
		{ProductID: "A", Quantity: 1, Reason: "damaged", UnitAmount: decimal.RequireFromString("10.00")},
	})
	return ret
}

func hasViolation(errs []error, target error) bool {
	for _, err := range errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestValidateReturn_Ok(t *testing.T) {
	order := makeOrder()
	ret := makeReturn(order)
	if errs := domain.ValidateReturn(ret, &order, nil, domain.DefaultReturnWindow); len(errs) != 0 {
		t.Fatalf("unexpected violations: %v", errs)
	}
	if !ret.TotalAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected refund 10.00, got %s", ret.TotalAmount)
	}
}

func TestValidateReturn_Violations(t *testing.T) {
	cases := []struct {
		name string
		mut  func(r *domain.Return)
		want error
	}{
		{"empty reason", func(r *domain.Return) { r.Items[0].Reason = "  " }, domain.ErrReturnReasonRequired},
		{"zero qty", func(r *domain.Return) { r.Items[0].Quantity = 0 }, domain.ErrItemQtyInvalid},
		{"negative amount", func(r *domain.Return) { r.Items[0].UnitAmount = decimal.NewFromInt(-1) }, domain.ErrItemAmountInvalid},
		{"no items", func(r *domain.Return) { r.ReplaceItems(nil) }, domain.ErrItemsRequired},
		{"not in order", func(r *domain.Return) {
			r.ReplaceItems([]domain.ReturnItem{{ProductID: "Z", Quantity: 1, Reason: "x"}})
		}, domain.ErrReturnItemNotInOrder},
		{"qty above ordered", func(r *domain.Return) { r.Items[0].Quantity = 3 }, domain.ErrReturnQtyExceedsOrder},
		{"price above paid", func(r *domain.Return) {
			r.ReplaceItems([]domain.ReturnItem{{ProductID: "A", Quantity: 1, Reason: "x", UnitAmount: decimal.RequireFromString("999.00")}})
		}, domain.ErrReturnPriceMismatch},
		{"window expired", func(r *domain.Return) { r.CreatedAt = r.CreatedAt.Add(31 * 24 * time.Hour) }, domain.ErrReturnWindowExpired},
		{"total mismatch", func(r *domain.Return) { r.TotalAmount = decimal.NewFromInt(1) }, domain.ErrAmountMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			ret := makeReturn(order)
			tc.mut(&ret)
			errs := domain.ValidateReturn(ret, &order, nil, domain.DefaultReturnWindow)
			if !hasViolation(errs, tc.want) {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestValidateReturn_WithoutOrderSkipsOrderChecks(t *testing.T) {
	order := makeOrder()
	ret := makeReturn(order)
	ret.ReplaceItems([]domain.ReturnItem{{ProductID: "Z", Quantity: 9, Reason: "x", UnitAmount: decimal.NewFromInt(1)}})
	if errs := domain.ValidateReturn(ret, nil, nil, domain.DefaultReturnWindow); len(errs) != 0 {
		t.Fatalf("unexpected violations: %v", errs)
	}
}

func TestValidateReturn_HeldQuantityCountsAgainstOrder(t *testing.T) {
	order := makeOrder()
	ret := makeReturn(order)

	if errs := domain.ValidateReturn(ret, &order, map[string]int32{"A": 1}, domain.DefaultReturnWindow); len(errs) != 0 {
		t.Fatalf("unexpected violations: %v", errs)
	}
	errs := domain.ValidateReturn(ret, &order, map[string]int32{"A": 2}, domain.DefaultReturnWindow)
	if !hasViolation(errs, domain.ErrReturnQtyExceedsOrder) {
		t.Fatalf("expected %v among %v", domain.ErrReturnQtyExceedsOrder, errs)
	}
	// Занятое количество другого товара не мешает.
	if errs := domain.ValidateReturn(ret, &order, map[string]int32{"B": 1}, domain.DefaultReturnWindow); len(errs) != 0 {
		t.Fatalf("unexpected violations: %v", errs)
	}
}
