package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ItemInput — позиция из запроса. UnitAmount == nil означает «взять цену из каталога»,
// переданная цена должна совпадать с каталожной.
type ItemInput struct {
	ProductID  string           `json:"product_id"`
	Quantity   int32            `json:"quantity"`
	UnitAmount *decimal.Decimal `json:"unit_amount,omitempty"`

	// pinned: цена зафиксирована корзиной и не сверяется с каталогом.
	pinned bool
}

// ValidateItemInputs проверяет форму и диапазоны, без обращения к каталогу.
func ValidateItemInputs(items []ItemInput) []error {
	var errs []error
	if len(items) == 0 {
		return append(errs, domain.ErrItemsRequired)
	}
	seen := make(map[string]struct{}, len(items))
	for idx, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			errs = append(errs, domain.ItemViolation(idx, domain.ErrProductIDRequired))
		} else if _, dup := seen[item.ProductID]; dup {
			errs = append(errs, domain.ItemViolation(idx, domain.ErrDuplicateProduct))
		} else {
			seen[item.ProductID] = struct{}{}
		}
		if item.Quantity <= 0 {
			errs = append(errs, domain.ItemViolation(idx, domain.ErrItemQtyInvalid))
		}
		if item.UnitAmount != nil {
			if item.UnitAmount.IsNegative() {
				errs = append(errs, domain.ItemViolation(idx, domain.ErrItemAmountInvalid))
			}
			if !item.UnitAmount.Equal(item.UnitAmount.Round(domain.AmountScale)) {
				errs = append(errs, domain.ItemViolation(idx, domain.ErrItemAmountPrecision))
			}
		}
	}
	return errs
}

// Enrich — отдельная фаза после ValidateItemInputs: сверяет позиции с каталогом
// и берёт цену из него. Цена из запроса, отличная от каталожной, даёт нарушение.
// Нарушения возвращаются списком, ошибка каталога — вторым значением.
func Enrich(ctx context.Context, catalog domain.ProductCatalog, items []ItemInput) ([]domain.OrderItem, []error, error) {
	var violations []error
	result := make([]domain.OrderItem, 0, len(items))
	for idx, item := range items {
		product, err := catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				violations = append(violations, domain.ItemViolation(idx, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)))
				continue
			}
			return nil, nil, fmt.Errorf("get product %s: %w", item.ProductID, err)
		}
		if !product.IsActive {
			violations = append(violations, domain.ItemViolation(idx, domain.ErrProductInactive))
		}
		if item.Quantity > product.Stock {
			violations = append(violations, domain.ItemViolation(idx, domain.ErrInsufficientStock))
		}

		unit := product.UnitAmount
		if item.UnitAmount != nil {
			switch {
			case item.pinned:
				unit = *item.UnitAmount
			case !item.UnitAmount.Equal(product.UnitAmount):
				violations = append(violations, domain.ItemViolation(idx, domain.ErrItemPriceMismatch))
			}
		}
		result = append(result, domain.OrderItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitAmount: unit,
		})
	}
	return result, violations, nil
}

// ItemInputsFromCart переносит позиции корзины в запрос заказа с зафиксированными ценами.
func ItemInputsFromCart(cart domain.Cart) []ItemInput {
	inputs := make([]ItemInput, 0, len(cart.Items))
	for _, item := range cart.Items {
		unit := item.UnitAmount
		inputs = append(inputs, ItemInput{ProductID: item.ProductID, Quantity: item.Quantity, UnitAmount: &unit, pinned: true})
	}
	return inputs
}

// ItemView — позиция в ответе.
type ItemView struct {
	ProductID  string          `json:"product_id"`
	Quantity   int32           `json:"quantity"`
	UnitAmount decimal.Decimal `json:"unit_amount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// OrderItemViews переводит позиции заказа в представление.
func OrderItemViews(items []domain.OrderItem) []ItemView {
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, ItemView{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitAmount: item.UnitAmount,
			Subtotal:   item.Subtotal(),
		})
	}
	return views
}
