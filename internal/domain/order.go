package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem представляет одну позицию заказа. Товар встречается в заказе не более одного раза.
type OrderItem struct {
	// ProductID — внешний идентификатор товара.
	ProductID string
	// Quantity — количество единиц товара.
	Quantity int32
	// UnitAmount — цена за единицу на момент оформления.
	UnitAmount decimal.Decimal
}

// Subtotal возвращает стоимость позиции.
func (i OrderItem) Subtotal() decimal.Decimal {
	return lineTotal(i.UnitAmount, i.Quantity)
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	CartID          string
	UserID          string
	Items           []OrderItem
	StatusID        StatusID
	TotalAmount     decimal.Decimal
	ShippingAddress string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItemsTotal считает Σ unit_amount × quantity.
func OrderItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ReplaceItems заменяет позиции целиком и пересчитывает сумму.
func (o *Order) ReplaceItems(items []OrderItem) {
	o.Items = append([]OrderItem(nil), items...)
	o.TotalAmount = OrderItemsTotal(o.Items)
}

// ItemByProduct возвращает позицию заказа по товару.
func (o *Order) ItemByProduct(productID string) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return OrderItem{}, false
}

// ValidateOrderItems проверяет форму и диапазоны позиций без обращения к внешним данным.
func ValidateOrderItems(items []OrderItem) []error {
	var errs []error
	if len(items) == 0 {
		return append(errs, ErrItemsRequired)
	}
	seen := make(map[string]struct{}, len(items))
	for idx, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			errs = append(errs, ItemViolation(idx, ErrProductIDRequired))
		} else if _, dup := seen[item.ProductID]; dup {
			errs = append(errs, ItemViolation(idx, ErrDuplicateProduct))
		} else {
			seen[item.ProductID] = struct{}{}
		}
		if item.Quantity <= 0 {
			errs = append(errs, ItemViolation(idx, ErrItemQtyInvalid))
		}
		for _, err := range amountViolations(item.UnitAmount) {
			errs = append(errs, ItemViolation(idx, err))
		}
	}
	return errs
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error
	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	errs = append(errs, ValidateOrderItems(o.Items)...)
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}
	// Сверяем сумму заказа с суммой позиций: qty * price.
	if !o.TotalAmount.Equal(OrderItemsTotal(o.Items)) {
		errs = append(errs, ErrAmountMismatch)
	}
	return errs
}

// Clone возвращает глубокую копию заказа.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}
