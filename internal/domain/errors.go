package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrCartNotFound возвращается, если корзина не найдена.
	ErrCartNotFound = errors.New("cart not found")
	// ErrReturnNotFound возвращается, если возврат не найден.
	ErrReturnNotFound = errors.New("return not found")
	// ErrInvoiceNotFound возвращается, если счёт не найден.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrStatusNotFound — имя или идентификатор статуса не известны реестру.
	ErrStatusNotFound = errors.New("status not found")
	// ErrProductNotFound — товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")

	// ErrValidationFailed — корневая ошибка для списка нарушений бизнес-правил.
	ErrValidationFailed = errors.New("validation failed")
	// ErrInvalidTransition — запрошенный переход статуса отсутствует в таблице переходов.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOwnershipViolation — сущность принадлежит другому пользователю.
	ErrOwnershipViolation = errors.New("ownership violation")
	// ErrStorageFailure — хранилище недоступно или отклонило запись.
	ErrStorageFailure = errors.New("storage failure")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrStatusRegistryUnavailable — реестр статусов не смог загрузиться.
	ErrStatusRegistryUnavailable = errors.New("status registry unavailable")

	// ErrCartFinalized — корзина уже превращена в заказ и неизменяема.
	ErrCartFinalized = errors.New("cart is finalized")
	// ErrCartAlreadyOrdered — для корзины уже существует заказ.
	ErrCartAlreadyOrdered = errors.New("order already exists for cart")
	// ErrActiveCartExists — у пользователя уже есть активная корзина.
	ErrActiveCartExists = errors.New("user already has an active cart")
	// ErrCartItemNotFound — позиции с таким товаром нет в корзине.
	ErrCartItemNotFound = errors.New("cart item not found")

	ErrUserRequired           = errors.New("user_id is required")
	ErrOrderIDRequired        = errors.New("order_id is required")
	ErrItemsRequired          = errors.New("at least one item is required")
	ErrProductIDRequired      = errors.New("item product_id is required")
	ErrItemQtyInvalid         = errors.New("item quantity must be greater than zero")
	ErrItemAmountInvalid      = errors.New("item unit_amount must be non-negative")
	ErrItemAmountPrecision    = errors.New("item unit_amount must have at most two decimal places")
	ErrItemPriceMismatch      = errors.New("item unit_amount does not match the catalog price")
	ErrReturnPriceMismatch    = errors.New("returned unit_amount does not match the price paid")
	ErrReturnItemsLocked      = errors.New("return items cannot change after the order is deleted")
	ErrDuplicateProduct       = errors.New("product appears more than once")
	ErrAmountNegative         = errors.New("total_amount must be non-negative")
	ErrAmountMismatch         = errors.New("total_amount does not match items sum")
	ErrShippingAddressEmpty   = errors.New("shipping_address must not be empty")
	ErrProductInactive        = errors.New("product is not active")
	ErrInsufficientStock      = errors.New("insufficient stock for product")
	ErrReturnReasonRequired   = errors.New("return item reason is required")
	ErrReturnWindowExpired    = errors.New("return window has expired")
	ErrReturnItemNotInOrder   = errors.New("returned product is not part of the order")
	ErrReturnQtyExceedsOrder  = errors.New("returned quantity exceeds ordered quantity")
	ErrDueDateBeforeCreation  = errors.New("due_date must not be before created_at")
	ErrUnknownStatus          = errors.New("unknown status name")
	ErrNothingToUpdate        = errors.New("no fields to update")
	ErrOutboxPublish          = errors.New("outbox publish failed")
	ErrOutboxMessageNotFound  = errors.New("outbox message not found")
	ErrStatusRegistryConflict = errors.New("status registry is not a bijection")
)

// ValidationError собирает все нарушенные правила, чтобы вызывающий увидел их разом.
type ValidationError struct {
	Violations []error
}

// NewValidationError возвращает nil, если нарушений нет.
func NewValidationError(violations []error) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	builder := strings.Builder{}
	builder.WriteString(ErrValidationFailed.Error())
	builder.WriteString(": ")
	for i, err := range e.Violations {
		builder.WriteString(err.Error())
		if i < len(e.Violations)-1 {
			builder.WriteString("; ")
		}
	}
	return builder.String()
}

// Unwrap позволяет errors.Is находить как ErrValidationFailed, так и каждое отдельное нарушение.
func (e *ValidationError) Unwrap() []error {
	result := make([]error, 0, len(e.Violations)+1)
	result = append(result, ErrValidationFailed)
	result = append(result, e.Violations...)
	return result
}

// TransitionError описывает отклонённый переход статуса.
type TransitionError struct {
	Entity EntityType
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s %s -> %s", ErrInvalidTransition, e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ItemViolation привязывает нарушение к позиции списка.
func ItemViolation(idx int, err error) error {
	return fmt.Errorf("items[%d]: %w", idx, err)
}

// Violations извлекает список нарушений из ошибки валидации.
func Violations(err error) []error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Violations
	}
	return nil
}

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrCartNotFound) ||
		errors.Is(err, ErrReturnNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
