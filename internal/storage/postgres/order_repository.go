package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	constraintOrderCart = "orders_cart_id_key"

	orderColumns = `id, cart_id, user_id, status_id, total_amount, shipping_address, version, created_at, updated_at`
)

// OrderRepository хранит заказы в PostgreSQL.
type OrderRepository struct {
	db *sql.DB
}

// Create вставляет заказ и завершает корзину в одной транзакции.
// Гонку двух заказов на одну корзину разрешает UNIQUE(cart_id).
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked string
		err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE`, order.CartID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, order.ID, order.CartID, order.UserID, int64(order.StatusID), order.TotalAmount,
			order.ShippingAddress, order.Version, order.CreatedAt.UTC(), order.UpdatedAt.UTC())
		if err != nil {
			if constraint, ok := uniqueViolation(err); ok {
				if constraint == constraintOrderCart {
					return domain.ErrCartAlreadyOrdered
				}
				return domain.ErrVersionConflict
			}
			return fmt.Errorf("insert order: %w", err)
		}

		if err := insertOrderItems(ctx, tx, order.ID, order.Items); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE carts SET finalized = TRUE, version = version + 1, updated_at = $2
			WHERE id = $1
		`, order.CartID, order.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("finalize cart: %w", err)
		}
		return nil
	})
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	if order.Items, err = r.loadItems(ctx, order.ID); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at, id`)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

func (r *OrderRepository) query(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	orders, err := collect(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	for i := range orders {
		if orders[i].Items, err = r.loadItems(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *OrderRepository) ExistsByCartID(ctx context.Context, cartID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE cart_id = $1)`, cartID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order by cart: %w", err)
	}
	return exists, nil
}

// Save обновляет заказ и заменяет позиции; cart_id не меняется.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status_id = $3, total_amount = $4, shipping_address = $5,
			    version = version + 1, updated_at = $6
			WHERE id = $1 AND version = $2
		`, order.ID, order.Version, int64(order.StatusID), order.TotalAmount, order.ShippingAddress, order.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated, err := expectOneRow(res)
		if err != nil {
			return err
		}
		if !updated {
			return versionMiss(ctx, tx, "orders", order.ID, domain.ErrOrderNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		return insertOrderItems(ctx, tx, order.ID, order.Items)
	})
}

// Delete удаляет заказ, если версия совпадает; позиции удаляются каскадно.
func (r *OrderRepository) Delete(ctx context.Context, id string, version int64) error {
	return deleteVersioned(ctx, r.db, "orders", id, version, domain.ErrOrderNotFound)
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_amount
		FROM order_items WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	items, err := collect(rows, func(row rowScanner) (domain.OrderItem, error) {
		var item domain.OrderItem
		return item, row.Scan(&item.ProductID, &item.Quantity, &item.UnitAmount)
	})
	if err != nil {
		return nil, fmt.Errorf("scan order items: %w", err)
	}
	return items, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order    domain.Order
		statusID int64
	)
	if err := row.Scan(&order.ID, &order.CartID, &order.UserID, &statusID, &order.TotalAmount,
		&order.ShippingAddress, &order.Version, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	order.StatusID = domain.StatusID(statusID)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func insertOrderItems(ctx context.Context, tx *sql.Tx, orderID string, items []domain.OrderItem) error {
	for i, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, unit_amount)
			VALUES ($1, $2, $3, $4, $5)
		`, orderID, i, item.ProductID, item.Quantity, item.UnitAmount); err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// versionMiss различает отсутствие строки и устаревшую версию.
// table подставляется только из констант пакета.
func versionMiss(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, table, id string, notFound error) error {
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check %s existence: %w", table, err)
	}
	if !exists {
		return notFound
	}
	return domain.ErrVersionConflict
}

func deleteVersioned(ctx context.Context, db *sql.DB, table, id string, version int64, notFound error) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	deleted, err := expectOneRow(res)
	if err != nil {
		return err
	}
	if !deleted {
		return versionMiss(ctx, db, table, id, notFound)
	}
	return nil
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
