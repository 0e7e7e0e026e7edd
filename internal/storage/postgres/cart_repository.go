package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const constraintActiveCart = "carts_active_user_uidx"

// CartRepository хранит корзины в PostgreSQL.
type CartRepository struct {
	db *sql.DB
}

// Create сохраняет новую корзину вместе с позициями.
func (r *CartRepository) Create(ctx context.Context, cart domain.Cart) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO carts (id, user_id, finalized, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, cart.ID, cart.UserID, cart.Finalized, cart.Version, cart.CreatedAt.UTC(), cart.UpdatedAt.UTC())
		if err != nil {
			if constraint, ok := uniqueViolation(err); ok {
				if constraint == constraintActiveCart {
					return domain.ErrActiveCartExists
				}
				return domain.ErrVersionConflict
			}
			return fmt.Errorf("insert cart: %w", err)
		}
		return insertCartItems(ctx, tx, cart.ID, cart.Items)
	})
}

// Get возвращает корзину или ErrCartNotFound.
func (r *CartRepository) Get(ctx context.Context, id string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, finalized, version, created_at, updated_at
		FROM carts WHERE id = $1
	`, id)
	return r.load(ctx, row)
}

// GetActiveByUser возвращает незавершённую корзину пользователя.
func (r *CartRepository) GetActiveByUser(ctx context.Context, userID string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, finalized, version, created_at, updated_at
		FROM carts WHERE user_id = $1 AND NOT finalized
	`, userID)
	return r.load(ctx, row)
}

func (r *CartRepository) load(ctx context.Context, row *sql.Row) (domain.Cart, error) {
	var cart domain.Cart
	err := row.Scan(&cart.ID, &cart.UserID, &cart.Finalized, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_amount
		FROM cart_items WHERE cart_id = $1
		ORDER BY position
	`, cart.ID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("select cart items: %w", err)
	}
	cart.Items, err = collect(rows, func(row rowScanner) (domain.CartItem, error) {
		var item domain.CartItem
		return item, row.Scan(&item.ProductID, &item.Quantity, &item.UnitAmount)
	})
	if err != nil {
		return domain.Cart{}, fmt.Errorf("scan cart items: %w", err)
	}
	cart.CreatedAt = cart.CreatedAt.UTC()
	cart.UpdatedAt = cart.UpdatedAt.UTC()
	return cart, nil
}

// Save перезаписывает корзину; завершённая корзина неизменяема.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE carts
			SET finalized = $3, version = version + 1, updated_at = $4
			WHERE id = $1 AND version = $2 AND NOT finalized
		`, cart.ID, cart.Version, cart.Finalized, cart.UpdatedAt.UTC())
		if err != nil {
			if _, ok := uniqueViolation(err); ok {
				return domain.ErrActiveCartExists
			}
			return fmt.Errorf("update cart: %w", err)
		}
		updated, err := expectOneRow(res)
		if err != nil {
			return err
		}
		if !updated {
			return cartSaveConflict(ctx, tx, cart.ID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}
		return insertCartItems(ctx, tx, cart.ID, cart.Items)
	})
}

// cartSaveConflict уточняет, почему UPDATE не затронул строку.
func cartSaveConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var finalized bool
	err := tx.QueryRowContext(ctx, `SELECT finalized FROM carts WHERE id = $1`, id).Scan(&finalized)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrCartNotFound
	case err != nil:
		return fmt.Errorf("select cart state: %w", err)
	case finalized:
		return domain.ErrCartFinalized
	default:
		return domain.ErrVersionConflict
	}
}

func insertCartItems(ctx context.Context, tx *sql.Tx, cartID string, items []domain.CartItem) error {
	for i, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, position, product_id, quantity, unit_amount)
			VALUES ($1, $2, $3, $4, $5)
		`, cartID, i, item.ProductID, item.Quantity, item.UnitAmount); err != nil {
			return fmt.Errorf("insert cart item %s: %w", item.ProductID, err)
		}
	}
	return nil
}

var _ domain.CartRepository = (*CartRepository)(nil)
