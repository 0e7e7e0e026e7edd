// Package memory содержит in-memory реализации хранилищ для локальной разработки и тестов.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Store держит все сущности под одной блокировкой, поэтому создание заказа
// и завершение корзины выполняются атомарно, а cart_id уникален так же, как в SQL.
type Store struct {
	mu sync.RWMutex

	carts    map[string]domain.Cart
	orders   map[string]domain.Order
	returns  map[string]domain.Return
	invoices map[string]domain.Invoice
	products map[string]domain.Product
	statuses []domain.StatusEntry

	// orderByCart — аналог UNIQUE(orders.cart_id).
	orderByCart map[string]string
	// activeCart — аналог частичного уникального индекса по активной корзине пользователя.
	activeCart map[string]string

	statusErr error
}

// NewStore создаёт пустое хранилище со справочником статусов по умолчанию.
func NewStore() *Store {
	return &Store{
		carts:       make(map[string]domain.Cart),
		orders:      make(map[string]domain.Order),
		returns:     make(map[string]domain.Return),
		invoices:    make(map[string]domain.Invoice),
		products:    make(map[string]domain.Product),
		statuses:    domain.DefaultStatusEntries(),
		orderByCart: make(map[string]string),
		activeCart:  make(map[string]string),
	}
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error { return nil }

// Carts возвращает репозиторий корзин.
func (s *Store) Carts() domain.CartRepository { return (*cartRepository)(s) }

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return (*orderRepository)(s) }

// Returns возвращает репозиторий возвратов.
func (s *Store) Returns() domain.ReturnRepository { return (*returnRepository)(s) }

// Invoices возвращает репозиторий счетов.
func (s *Store) Invoices() domain.InvoiceRepository { return (*invoiceRepository)(s) }

// Products возвращает каталог товаров.
func (s *Store) Products() *ProductCatalog { return (*ProductCatalog)(s) }

// Statuses возвращает справочник статусов.
func (s *Store) Statuses() *StatusSource { return (*StatusSource)(s) }

// sortByCreated упорядочивает по (created_at, id) по возрастанию, как ORDER BY в postgres.
func sortByCreated[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return id(items[i]) < id(items[j])
	})
}
