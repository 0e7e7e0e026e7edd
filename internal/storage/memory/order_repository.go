package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderRepository Store

// Create сохраняет заказ и завершает его корзину в одной критической секции.
func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrVersionConflict
	}
	if _, exists := r.orderByCart[order.CartID]; exists {
		return domain.ErrCartAlreadyOrdered
	}
	cart, ok := r.carts[order.CartID]
	if !ok {
		return domain.ErrCartNotFound
	}

	cart.Finalized = true
	cart.Version++
	cart.UpdatedAt = order.CreatedAt
	r.carts[cart.ID] = cart
	if r.activeCart[cart.UserID] == cart.ID {
		delete(r.activeCart, cart.UserID)
	}

	r.orders[order.ID] = order.Clone()
	r.orderByCart[order.CartID] = order.ID
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *orderRepository) List(_ context.Context) ([]domain.Order, error) {
	return r.filter(func(domain.Order) bool { return true }), nil
}

func (r *orderRepository) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (r *orderRepository) filter(keep func(domain.Order) bool) []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if keep(order) {
			result = append(result, order.Clone())
		}
	}
	sortByCreated(result,
		func(o domain.Order) time.Time { return o.CreatedAt },
		func(o domain.Order) string { return o.ID })
	return result
}

func (r *orderRepository) ExistsByCartID(_ context.Context, cartID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.orderByCart[cartID]
	return ok, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepository) Save(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}
	// cart_id неизменяем.
	order.CartID = current.CartID
	order.Version++
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *orderRepository) Delete(_ context.Context, id string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != version {
		return domain.ErrVersionConflict
	}
	delete(r.orders, id)
	delete(r.orderByCart, current.CartID)
	return nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
