package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const returnColumns = `id, order_id, user_id, status_id, total_amount, version, created_at, updated_at`

// ReturnRepository хранит возвраты в PostgreSQL.
type ReturnRepository struct {
	db *sql.DB
}

// Create сохраняет возврат; заказ должен существовать на момент вставки.
func (r *ReturnRepository) Create(ctx context.Context, ret domain.Return) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := requireOrder(ctx, tx, ret.OrderID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO returns (`+returnColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, ret.ID, ret.OrderID, ret.UserID, int64(ret.StatusID), ret.TotalAmount,
			ret.Version, ret.CreatedAt.UTC(), ret.UpdatedAt.UTC())
		if err != nil {
			if _, ok := uniqueViolation(err); ok {
				return domain.ErrVersionConflict
			}
			return fmt.Errorf("insert return: %w", err)
		}
		return insertReturnItems(ctx, tx, ret.ID, ret.Items)
	})
}

func (r *ReturnRepository) Get(ctx context.Context, id string) (domain.Return, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ret, err := scanReturn(r.db.QueryRowContext(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Return{}, domain.ErrReturnNotFound
		}
		return domain.Return{}, fmt.Errorf("select return: %w", err)
	}
	if ret.Items, err = r.loadItems(ctx, ret.ID); err != nil {
		return domain.Return{}, err
	}
	return ret, nil
}

func (r *ReturnRepository) List(ctx context.Context) ([]domain.Return, error) {
	return r.query(ctx, `SELECT `+returnColumns+` FROM returns ORDER BY created_at, id`)
}

func (r *ReturnRepository) ListByUser(ctx context.Context, userID string) ([]domain.Return, error) {
	return r.query(ctx, `SELECT `+returnColumns+` FROM returns WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

func (r *ReturnRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Return, error) {
	return r.query(ctx, `SELECT `+returnColumns+` FROM returns WHERE order_id = $1 ORDER BY created_at, id`, orderID)
}

func (r *ReturnRepository) query(ctx context.Context, query string, args ...any) ([]domain.Return, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select returns: %w", err)
	}
	returns, err := collect(rows, scanReturn)
	if err != nil {
		return nil, fmt.Errorf("scan returns: %w", err)
	}
	for i := range returns {
		if returns[i].Items, err = r.loadItems(ctx, returns[i].ID); err != nil {
			return nil, err
		}
	}
	return returns, nil
}

// Save обновляет возврат и заменяет позиции с учётом версии.
func (r *ReturnRepository) Save(ctx context.Context, ret domain.Return) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE returns
			SET status_id = $3, total_amount = $4, version = version + 1, updated_at = $5
			WHERE id = $1 AND version = $2
		`, ret.ID, ret.Version, int64(ret.StatusID), ret.TotalAmount, ret.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("update return: %w", err)
		}
		updated, err := expectOneRow(res)
		if err != nil {
			return err
		}
		if !updated {
			return versionMiss(ctx, tx, "returns", ret.ID, domain.ErrReturnNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM return_items WHERE return_id = $1`, ret.ID); err != nil {
			return fmt.Errorf("delete return items: %w", err)
		}
		return insertReturnItems(ctx, tx, ret.ID, ret.Items)
	})
}

func (r *ReturnRepository) Delete(ctx context.Context, id string, version int64) error {
	return deleteVersioned(ctx, r.db, "returns", id, version, domain.ErrReturnNotFound)
}

func (r *ReturnRepository) loadItems(ctx context.Context, returnID string) ([]domain.ReturnItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, reason, unit_amount
		FROM return_items WHERE return_id = $1
		ORDER BY position
	`, returnID)
	if err != nil {
		return nil, fmt.Errorf("select return items: %w", err)
	}
	items, err := collect(rows, func(row rowScanner) (domain.ReturnItem, error) {
		var item domain.ReturnItem
		return item, row.Scan(&item.ProductID, &item.Quantity, &item.Reason, &item.UnitAmount)
	})
	if err != nil {
		return nil, fmt.Errorf("scan return items: %w", err)
	}
	return items, nil
}

func scanReturn(row rowScanner) (domain.Return, error) {
	var (
		ret      domain.Return
		statusID int64
	)
	if err := row.Scan(&ret.ID, &ret.OrderID, &ret.UserID, &statusID, &ret.TotalAmount,
		&ret.Version, &ret.CreatedAt, &ret.UpdatedAt); err != nil {
		return domain.Return{}, err
	}
	ret.StatusID = domain.StatusID(statusID)
	ret.CreatedAt = ret.CreatedAt.UTC()
	ret.UpdatedAt = ret.UpdatedAt.UTC()
	return ret, nil
}

func insertReturnItems(ctx context.Context, tx *sql.Tx, returnID string, items []domain.ReturnItem) error {
	for i, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO return_items (return_id, position, product_id, quantity, reason, unit_amount)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, returnID, i, item.ProductID, item.Quantity, item.Reason, item.UnitAmount); err != nil {
			return fmt.Errorf("insert return item %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// requireOrder проверяет существование заказа под разделяемой блокировкой.
func requireOrder(ctx context.Context, tx *sql.Tx, orderID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1 FOR SHARE`, orderID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("select order %s: %w", orderID, err)
	}
	return nil
}

var _ domain.ReturnRepository = (*ReturnRepository)(nil)
