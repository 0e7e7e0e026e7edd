package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const invoiceColumns = `id, order_id, user_id, status_id, total_amount, due_date, version, created_at, updated_at`

// InvoiceRepository хранит счета в PostgreSQL.
type InvoiceRepository struct {
	db *sql.DB
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice domain.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := requireOrder(ctx, tx, invoice.OrderID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoices (`+invoiceColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, invoice.ID, invoice.OrderID, invoice.UserID, int64(invoice.StatusID), invoice.TotalAmount,
			invoice.DueDate.UTC(), invoice.Version, invoice.CreatedAt.UTC(), invoice.UpdatedAt.UTC())
		if err != nil {
			if _, ok := uniqueViolation(err); ok {
				return domain.ErrVersionConflict
			}
			return fmt.Errorf("insert invoice: %w", err)
		}
		return nil
	})
}

func (r *InvoiceRepository) Get(ctx context.Context, id string) (domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	invoice, err := scanInvoice(r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Invoice{}, domain.ErrInvoiceNotFound
		}
		return domain.Invoice{}, fmt.Errorf("select invoice: %w", err)
	}
	return invoice, nil
}

func (r *InvoiceRepository) List(ctx context.Context) ([]domain.Invoice, error) {
	return r.query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY created_at, id`)
}

func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string) ([]domain.Invoice, error) {
	return r.query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

func (r *InvoiceRepository) query(ctx context.Context, query string, args ...any) ([]domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	invoices, err := collect(rows, scanInvoice)
	if err != nil {
		return nil, fmt.Errorf("scan invoices: %w", err)
	}
	return invoices, nil
}

func (r *InvoiceRepository) Save(ctx context.Context, invoice domain.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET status_id = $3, total_amount = $4, due_date = $5, version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $2
	`, invoice.ID, invoice.Version, int64(invoice.StatusID), invoice.TotalAmount,
		invoice.DueDate.UTC(), invoice.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	updated, err := expectOneRow(res)
	if err != nil {
		return err
	}
	if !updated {
		return versionMiss(ctx, r.db, "invoices", invoice.ID, domain.ErrInvoiceNotFound)
	}
	return nil
}

func (r *InvoiceRepository) Delete(ctx context.Context, id string, version int64) error {
	return deleteVersioned(ctx, r.db, "invoices", id, version, domain.ErrInvoiceNotFound)
}

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var (
		invoice  domain.Invoice
		statusID int64
	)
	if err := row.Scan(&invoice.ID, &invoice.OrderID, &invoice.UserID, &statusID, &invoice.TotalAmount,
		&invoice.DueDate, &invoice.Version, &invoice.CreatedAt, &invoice.UpdatedAt); err != nil {
		return domain.Invoice{}, err
	}
	invoice.StatusID = domain.StatusID(statusID)
	invoice.DueDate = invoice.DueDate.UTC()
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	invoice.UpdatedAt = invoice.UpdatedAt.UTC()
	return invoice, nil
}

var _ domain.InvoiceRepository = (*InvoiceRepository)(nil)
