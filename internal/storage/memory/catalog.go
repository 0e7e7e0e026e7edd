package memory

import (
	"context"
	"errors"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/status"
)

// ProductCatalog хранит каталог товаров в памяти.
type ProductCatalog Store

// Upsert добавляет или заменяет товар.
func (c *ProductCatalog) Upsert(product domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
}

func (c *ProductCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)

// StatusSource отдаёт справочник статусов хранилища.
type StatusSource Store

// Replace заменяет содержимое справочника.
func (s *StatusSource) Replace(entries []domain.StatusEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append([]domain.StatusEntry(nil), entries...)
}

// SetUnavailable имитирует недоступность справочника; nil снимает ошибку.
func (s *StatusSource) SetUnavailable(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusErr = err
}

func (s *StatusSource) LoadStatuses(context.Context) ([]domain.StatusEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.statusErr != nil {
		return nil, s.statusErr
	}
	if len(s.statuses) == 0 {
		return nil, errors.New("status table is empty")
	}
	return append([]domain.StatusEntry(nil), s.statuses...), nil
}

var _ status.Source = (*StatusSource)(nil)
