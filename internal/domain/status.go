package domain

import (
	"fmt"
	"slices"
	"strings"
)

// EntityType определяет, к какой сущности относится статус.
type EntityType string

const (
	EntityOrder   EntityType = "order"
	EntityReturn  EntityType = "return"
	EntityInvoice EntityType = "invoice"
)

// EntityTypes перечисляет все сущности со статусами.
func EntityTypes() []EntityType {
	return []EntityType{EntityOrder, EntityReturn, EntityInvoice}
}

// StatusID — канонический идентификатор статуса в таблице статусов.
type StatusID int64

// StatusEntry — строка справочника статусов.
type StatusEntry struct {
	EntityType EntityType
	Name       string
	ID         StatusID
}

// NormalizeStatusName приводит имя статуса к каноническому виду (регистр не важен).
func NormalizeStatusName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Таблица переходов заказа: только вперёд, без обратных рёбер.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// OrderStatuses возвращает все статусы заказа.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
	}
}

// ParseOrderStatus сопоставляет имя из реестра закрытому перечислению.
func ParseOrderStatus(name string) (OrderStatus, error) {
	s := OrderStatus(NormalizeStatusName(name))
	if _, ok := orderTransitions[s]; !ok {
		return "", fmt.Errorf("%w: order status %q", ErrUnknownStatus, name)
	}
	return s, nil
}

// CanTransitionTo проверяет переход по таблице. Переход в тот же статус запрещён.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return slices.Contains(orderTransitions[s], target)
}

// Deletable — заказ ещё не передан в исполнение.
func (s OrderStatus) Deletable() bool {
	return s == OrderStatusPending || s == OrderStatusCancelled
}

// IsTerminal сообщает, что из статуса нет исходящих переходов.
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

func (s OrderStatus) String() string { return string(s) }

// ReturnStatus описывает жизненный цикл возврата.
type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "requested"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
	ReturnStatusProcessed ReturnStatus = "processed"
)

var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusRequested: {ReturnStatusApproved, ReturnStatusRejected},
	ReturnStatusApproved:  {ReturnStatusProcessed},
	ReturnStatusRejected:  {},
	ReturnStatusProcessed: {},
}

// ReturnStatuses возвращает все статусы возврата.
func ReturnStatuses() []ReturnStatus {
	return []ReturnStatus{ReturnStatusRequested, ReturnStatusApproved, ReturnStatusRejected, ReturnStatusProcessed}
}

// ParseReturnStatus сопоставляет имя из реестра закрытому перечислению.
func ParseReturnStatus(name string) (ReturnStatus, error) {
	s := ReturnStatus(NormalizeStatusName(name))
	if _, ok := returnTransitions[s]; !ok {
		return "", fmt.Errorf("%w: return status %q", ErrUnknownStatus, name)
	}
	return s, nil
}

func (s ReturnStatus) CanTransitionTo(target ReturnStatus) bool {
	return slices.Contains(returnTransitions[s], target)
}

// Deletable — возврат ещё не обработан.
func (s ReturnStatus) Deletable() bool {
	return s == ReturnStatusRequested || s == ReturnStatusRejected
}

func (s ReturnStatus) IsTerminal() bool {
	next, ok := returnTransitions[s]
	return ok && len(next) == 0
}

func (s ReturnStatus) String() string { return string(s) }

// InvoiceStatus описывает жизненный цикл счёта.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusRefunded  InvoiceStatus = "refunded"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusPending:   {InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:      {InvoiceStatusRefunded},
	InvoiceStatusCancelled: {},
	InvoiceStatusRefunded:  {},
}

// InvoiceStatuses возвращает все статусы счёта.
func InvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusRefunded}
}

// ParseInvoiceStatus сопоставляет имя из реестра закрытому перечислению.
func ParseInvoiceStatus(name string) (InvoiceStatus, error) {
	s := InvoiceStatus(NormalizeStatusName(name))
	if _, ok := invoiceTransitions[s]; !ok {
		return "", fmt.Errorf("%w: invoice status %q", ErrUnknownStatus, name)
	}
	return s, nil
}

func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	return slices.Contains(invoiceTransitions[s], target)
}

// Deletable — по счёту не было оплаты.
func (s InvoiceStatus) Deletable() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusCancelled
}

func (s InvoiceStatus) IsTerminal() bool {
	next, ok := invoiceTransitions[s]
	return ok && len(next) == 0
}

func (s InvoiceStatus) String() string { return string(s) }

// StatusNames возвращает имена закрытого перечисления для сущности.
func StatusNames(entity EntityType) []string {
	var names []string
	switch entity {
	case EntityOrder:
		for _, s := range OrderStatuses() {
			names = append(names, string(s))
		}
	case EntityReturn:
		for _, s := range ReturnStatuses() {
			names = append(names, string(s))
		}
	case EntityInvoice:
		for _, s := range InvoiceStatuses() {
			names = append(names, string(s))
		}
	}
	return names
}

// DefaultStatusEntries — начальное содержимое справочника статусов.
func DefaultStatusEntries() []StatusEntry {
	var entries []StatusEntry
	base := map[EntityType]StatusID{EntityOrder: 100, EntityReturn: 200, EntityInvoice: 300}
	for _, entity := range EntityTypes() {
		for i, name := range StatusNames(entity) {
			entries = append(entries, StatusEntry{
				EntityType: entity,
				Name:       name,
				ID:         base[entity] + StatusID(i+1),
			})
		}
	}
	return entries
}
