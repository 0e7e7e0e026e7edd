package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestInvoiceIsOverdue(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	inv := domain.Invoice{CreatedAt: created, DueDate: domain.DefaultDueDate(created)}

	if inv.IsOverdue(created.Add(29*24*time.Hour), domain.InvoiceStatusPending) {
		t.Fatal("invoice is not overdue before due date")
	}
	if !inv.IsOverdue(created.Add(31*24*time.Hour), domain.InvoiceStatusPending) {
		t.Fatal("pending invoice must be overdue after due date")
	}
	if inv.IsOverdue(created.Add(31*24*time.Hour), domain.InvoiceStatusPaid) {
		t.Fatal("paid invoice is never overdue")
	}
}

func TestInvoiceValidateInvariants(t *testing.T) {
	created := time.Now().UTC()
	inv := domain.Invoice{
		UserID:      "user-1",
		OrderID:     "order-1",
		TotalAmount: decimal.RequireFromString("25.00"),
		CreatedAt:   created,
		DueDate:     created.Add(-time.Hour),
	}
	errs := inv.ValidateInvariants()
	if len(errs) != 1 || !errors.Is(errs[0], domain.ErrDueDateBeforeCreation) {
		t.Fatalf("expected due date violation, got %v", errs)
	}

	inv.DueDate = domain.DefaultDueDate(created)
	inv.TotalAmount = decimal.NewFromInt(-1)
	inv.UserID = ""
	if errs := inv.ValidateInvariants(); len(errs) != 2 {
		t.Fatalf("expected two violations, got %v", errs)
	}
}
