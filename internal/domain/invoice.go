package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInvoiceTerm — срок оплаты счёта, если due_date не передан.
const DefaultInvoiceTerm = 30 * 24 * time.Hour

// Invoice — счёт на оплату заказа. Сумма задаётся вызывающим, а не считается по позициям.
type Invoice struct {
	ID          string
	OrderID     string
	UserID      string
	TotalAmount decimal.Decimal
	StatusID    StatusID
	DueDate     time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultDueDate возвращает срок оплаты по умолчанию.
func DefaultDueDate(createdAt time.Time) time.Time {
	return createdAt.Add(DefaultInvoiceTerm)
}

// IsOverdue вычисляется при каждом чтении и никогда не сохраняется.
func (i Invoice) IsOverdue(now time.Time, status InvoiceStatus) bool {
	return now.After(i.DueDate) && status != InvoiceStatusPaid
}

// ValidateInvariants проверяет поля счёта.
func (i *Invoice) ValidateInvariants() []error {
	var errs []error
	if i.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if i.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if i.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}
	if !i.TotalAmount.Equal(i.TotalAmount.Round(AmountScale)) {
		errs = append(errs, ErrItemAmountPrecision)
	}
	if !i.DueDate.IsZero() && i.DueDate.Before(i.CreatedAt) {
		errs = append(errs, ErrDueDateBeforeCreation)
	}
	return errs
}
