package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type invoiceRepository Store

func (r *invoiceRepository) Create(_ context.Context, invoice domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invoices[invoice.ID]; exists {
		return domain.ErrVersionConflict
	}
	if _, ok := r.orders[invoice.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *invoiceRepository) Get(_ context.Context, id string) (domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	invoice, ok := r.invoices[id]
	if !ok {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (r *invoiceRepository) List(_ context.Context) ([]domain.Invoice, error) {
	return r.filter(func(domain.Invoice) bool { return true }), nil
}

func (r *invoiceRepository) ListByUser(_ context.Context, userID string) ([]domain.Invoice, error) {
	return r.filter(func(inv domain.Invoice) bool { return inv.UserID == userID }), nil
}

func (r *invoiceRepository) filter(keep func(domain.Invoice) bool) []domain.Invoice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Invoice, 0, len(r.invoices))
	for _, invoice := range r.invoices {
		if keep(invoice) {
			result = append(result, invoice)
		}
	}
	sortByCreated(result,
		func(inv domain.Invoice) time.Time { return inv.CreatedAt },
		func(inv domain.Invoice) string { return inv.ID })
	return result
}

func (r *invoiceRepository) Save(_ context.Context, invoice domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.invoices[invoice.ID]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	if current.Version != invoice.Version {
		return domain.ErrVersionConflict
	}
	invoice.OrderID = current.OrderID
	invoice.Version++
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *invoiceRepository) Delete(_ context.Context, id string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.invoices[id]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	if current.Version != version {
		return domain.ErrVersionConflict
	}
	delete(r.invoices, id)
	return nil
}

var _ domain.InvoiceRepository = (*invoiceRepository)(nil)
