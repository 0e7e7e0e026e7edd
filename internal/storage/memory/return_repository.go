package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type returnRepository Store

func (r *returnRepository) Create(_ context.Context, ret domain.Return) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.returns[ret.ID]; exists {
		return domain.ErrVersionConflict
	}
	if _, ok := r.orders[ret.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}
	r.returns[ret.ID] = ret.Clone()
	return nil
}

func (r *returnRepository) Get(_ context.Context, id string) (domain.Return, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ret, ok := r.returns[id]
	if !ok {
		return domain.Return{}, domain.ErrReturnNotFound
	}
	return ret.Clone(), nil
}

func (r *returnRepository) List(_ context.Context) ([]domain.Return, error) {
	return r.filter(func(domain.Return) bool { return true }), nil
}

func (r *returnRepository) ListByUser(_ context.Context, userID string) ([]domain.Return, error) {
	return r.filter(func(ret domain.Return) bool { return ret.UserID == userID }), nil
}

func (r *returnRepository) ListByOrder(_ context.Context, orderID string) ([]domain.Return, error) {
	return r.filter(func(ret domain.Return) bool { return ret.OrderID == orderID }), nil
}

func (r *returnRepository) filter(keep func(domain.Return) bool) []domain.Return {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Return, 0, len(r.returns))
	for _, ret := range r.returns {
		if keep(ret) {
			result = append(result, ret.Clone())
		}
	}
	sortByCreated(result,
		func(ret domain.Return) time.Time { return ret.CreatedAt },
		func(ret domain.Return) string { return ret.ID })
	return result
}

func (r *returnRepository) Save(_ context.Context, ret domain.Return) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.returns[ret.ID]
	if !ok {
		return domain.ErrReturnNotFound
	}
	if current.Version != ret.Version {
		return domain.ErrVersionConflict
	}
	ret.OrderID = current.OrderID
	ret.Version++
	r.returns[ret.ID] = ret.Clone()
	return nil
}

func (r *returnRepository) Delete(_ context.Context, id string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.returns[id]
	if !ok {
		return domain.ErrReturnNotFound
	}
	if current.Version != version {
		return domain.ErrVersionConflict
	}
	delete(r.returns, id)
	return nil
}

var _ domain.ReturnRepository = (*returnRepository)(nil)
