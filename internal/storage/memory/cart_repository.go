package memory

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRepository Store

func (r *cartRepository) Create(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.carts[cart.ID]; exists {
		return domain.ErrVersionConflict
	}
	if !cart.Finalized {
		if _, exists := r.activeCart[cart.UserID]; exists {
			return domain.ErrActiveCartExists
		}
		r.activeCart[cart.UserID] = cart.ID
	}
	r.carts[cart.ID] = cart.Clone()
	return nil
}

func (r *cartRepository) Get(_ context.Context, id string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[id]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (r *cartRepository) GetActiveByUser(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.activeCart[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return r.carts[id].Clone(), nil
}

// Save перезаписывает корзину, проверяя версию (optimistic locking).
func (r *cartRepository) Save(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.carts[cart.ID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if current.Version != cart.Version {
		return domain.ErrVersionConflict
	}
	if current.Finalized {
		return domain.ErrCartFinalized
	}
	if cart.Finalized {
		delete(r.activeCart, cart.UserID)
	}
	cart.Version++
	r.carts[cart.ID] = cart.Clone()
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
