package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/status"
)

// ProductCatalog читает товары из таблицы products.
type ProductCatalog struct {
	db *sql.DB
}

func (c *ProductCatalog) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product := domain.Product{ID: id}
	err := c.db.QueryRowContext(ctx, `
		SELECT unit_amount, is_active, stock FROM products WHERE id = $1
	`, id).Scan(&product.UnitAmount, &product.IsActive, &product.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

// Upsert добавляет или обновляет товар.
func (c *ProductCatalog) Upsert(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO products (id, unit_amount, is_active, stock)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET unit_amount = EXCLUDED.unit_amount, is_active = EXCLUDED.is_active, stock = EXCLUDED.stock
	`, product.ID, product.UnitAmount, product.IsActive, product.Stock); err != nil {
		return fmt.Errorf("upsert product %s: %w", product.ID, err)
	}
	return nil
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)

// StatusSource читает справочник статусов из таблицы statuses.
type StatusSource struct {
	db *sql.DB
}

func (s *StatusSource) LoadStatuses(ctx context.Context) ([]domain.StatusEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT entity_type, name, id FROM statuses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select statuses: %w", err)
	}
	entries, err := collect(rows, func(row rowScanner) (domain.StatusEntry, error) {
		var (
			entry  domain.StatusEntry
			entity string
			id     int64
		)
		err := row.Scan(&entity, &entry.Name, &id)
		entry.EntityType = domain.EntityType(entity)
		entry.ID = domain.StatusID(id)
		return entry, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan statuses: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("status table is empty")
	}
	return entries, nil
}

var _ status.Source = (*StatusSource)(nil)
