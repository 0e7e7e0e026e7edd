package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReturnWindow — срок, в течение которого по заказу можно оформить возврат.
const DefaultReturnWindow = 30 * 24 * time.Hour

// ReturnItem — позиция возврата с обязательной причиной.
type ReturnItem struct {
	ProductID  string
	Quantity   int32
	Reason     string
	UnitAmount decimal.Decimal
}

// Subtotal возвращает сумму к возврату по позиции.
func (i ReturnItem) Subtotal() decimal.Decimal {
	return lineTotal(i.UnitAmount, i.Quantity)
}

// Return — заявка на возврат товаров по существующему заказу.
type Return struct {
	ID          string
	OrderID     string
	UserID      string
	Items       []ReturnItem
	StatusID    StatusID
	TotalAmount decimal.Decimal
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReturnItemsTotal считает сумму возврата по позициям.
func ReturnItemsTotal(items []ReturnItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ReplaceItems заменяет позиции и пересчитывает сумму возврата.
func (r *Return) ReplaceItems(items []ReturnItem) {
	r.Items = append([]ReturnItem(nil), items...)
	r.TotalAmount = ReturnItemsTotal(r.Items)
}

// Clone возвращает глубокую копию возврата.
func (r Return) Clone() Return {
	r.Items = append([]ReturnItem(nil), r.Items...)
	return r
}

// ValidateReturn проверяет возврат целиком и возвращает все найденные нарушения.
// Используется и при создании, и при обновлении. order может быть nil, тогда
// проверки, зависящие от заказа, пропускаются. held — количества по товарам,
// уже занятые другими неотклонёнными возвратами того же заказа. Окно
// отсчитывается от created_at заказа до created_at возврата.
func ValidateReturn(ret Return, order *Order, held map[string]int32, window time.Duration) []error {
	var errs []error
	if ret.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if ret.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}

	if len(ret.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	seen := make(map[string]struct{}, len(ret.Items))
	for idx, item := range ret.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			errs = append(errs, ItemViolation(idx, ErrProductIDRequired))
		} else if _, dup := seen[item.ProductID]; dup {
			errs = append(errs, ItemViolation(idx, ErrDuplicateProduct))
		} else {
			seen[item.ProductID] = struct{}{}
		}
		if strings.TrimSpace(item.Reason) == "" {
			errs = append(errs, ItemViolation(idx, ErrReturnReasonRequired))
		}
		if item.Quantity <= 0 {
			errs = append(errs, ItemViolation(idx, ErrItemQtyInvalid))
		}
		for _, err := range amountViolations(item.UnitAmount) {
			errs = append(errs, ItemViolation(idx, err))
		}

		if order == nil || item.ProductID == "" {
			continue
		}
		line, ok := order.ItemByProduct(item.ProductID)
		if !ok {
			errs = append(errs, ItemViolation(idx, ErrReturnItemNotInOrder))
			continue
		}
		if item.Quantity+held[item.ProductID] > line.Quantity {
			errs = append(errs, ItemViolation(idx, ErrReturnQtyExceedsOrder))
		}
		// Возврат идёт только по цене покупки.
		if !item.UnitAmount.Equal(line.UnitAmount) {
			errs = append(errs, ItemViolation(idx, ErrReturnPriceMismatch))
		}
	}

	if !ret.TotalAmount.Equal(ReturnItemsTotal(ret.Items)) {
		errs = append(errs, ErrAmountMismatch)
	}

	if order != nil && window > 0 && ret.CreatedAt.Sub(order.CreatedAt) > window {
		errs = append(errs, ErrReturnWindowExpired)
	}
	return errs
}
