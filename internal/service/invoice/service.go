// Package invoice реализует жизненный цикл счёта. Признак просрочки вычисляется при каждом чтении.
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
)

// Типы событий счёта в outbox.
const (
	EventCreated       = "invoice.created"
	EventUpdated       = "invoice.updated"
	EventStatusChanged = "invoice.status_changed"
	EventDeleted       = "invoice.deleted"
)

// record — то, что лежит в кэше: без is_overdue, чтобы признак не застывал.
type record struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DueDate     time.Time       `json:"due_date"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// View — представление счёта.
type View struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DueDate     time.Time       `json:"due_date"`
	IsOverdue   bool            `json:"is_overdue"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateInput — параметры создания счёта. Сумма задаётся вызывающим.
type CreateInput struct {
	OrderID     string
	UserID      string
	TotalAmount decimal.Decimal
	DueDate     *time.Time
	StatusName  string
}

// UpdateInput — частичное обновление счёта.
type UpdateInput struct {
	TotalAmount *decimal.Decimal
	DueDate     *time.Time
	StatusName  *string
}

// Service изменяет счета; других путей записи нет.
type Service struct {
	lifecycle.Base
	invoices domain.InvoiceRepository
	orders   domain.OrderRepository
}

// NewService создаёт сервис счетов.
func NewService(invoices domain.InvoiceRepository, orders domain.OrderRepository, deps lifecycle.Deps) *Service {
	return &Service{
		Base:     lifecycle.NewBase(domain.EntityInvoice, deps),
		invoices: invoices,
		orders:   orders,
	}
}

// Create выставляет счёт по заказу пользователя.
func (s *Service) Create(ctx context.Context, in CreateInput) (view View, err error) {
	defer s.Observe("create", time.Now(), &err)

	now := s.Now()
	invoice := domain.Invoice{
		ID:          uuid.NewString(),
		OrderID:     in.OrderID,
		UserID:      in.UserID,
		TotalAmount: in.TotalAmount,
		DueDate:     domain.DefaultDueDate(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.DueDate != nil {
		invoice.DueDate = in.DueDate.UTC()
	}

	violations := invoice.ValidateInvariants()
	if in.OrderID != "" && in.UserID != "" {
		order, err := s.orders.Get(ctx, in.OrderID)
		if err != nil {
			return View{}, s.StorageFailure("get order", in.OrderID, err)
		}
		if order.UserID != in.UserID {
			return View{}, lifecycle.Ownership(domain.EntityOrder, order.ID, order.UserID, in.UserID)
		}
	}

	statusID, statusName, err := s.ResolveStatus(ctx, in.StatusName, string(domain.InvoiceStatusPending))
	if err := lifecycle.Collect(&violations, err); err != nil {
		return View{}, err
	}
	if statusName != "" {
		if _, err := domain.ParseInvoiceStatus(statusName); err != nil {
			violations = append(violations, fmt.Errorf("status_name: %w", err))
		}
	}
	if len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}
	invoice.StatusID = statusID

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return View{}, s.StorageFailure("create invoice", invoice.ID, err)
	}
	s.Invalidate(ctx, cache.NamespaceInvoice, invoice.ID, invoice.UserID)

	rec := toRecord(invoice, statusName)
	s.Emit(ctx, domain.AggregateInvoice, invoice.ID, EventCreated, rec)
	return s.present(rec), nil
}

// Update применяет частичное обновление.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (view View, err error) {
	defer s.Observe("update", time.Now(), &err)
	return s.update(ctx, id, in)
}

// UpdateStatus эквивалентен Update только со status_name.
func (s *Service) UpdateStatus(ctx context.Context, id, statusName string) (view View, err error) {
	defer s.Observe("update_status", time.Now(), &err)
	return s.update(ctx, id, UpdateInput{StatusName: &statusName})
}

func (s *Service) update(ctx context.Context, id string, in UpdateInput) (View, error) {
	invoice, err := s.invoices.Get(ctx, id)
	if err != nil {
		return View{}, s.StorageFailure("get invoice", id, err)
	}
	currentName, err := s.StatusName(ctx, invoice.StatusID)
	if err != nil {
		return View{}, err
	}

	var violations []error
	if in.TotalAmount == nil && in.DueDate == nil && in.StatusName == nil {
		violations = append(violations, domain.ErrNothingToUpdate)
	}

	next := invoice
	if in.TotalAmount != nil {
		next.TotalAmount = *in.TotalAmount
	}
	if in.DueDate != nil {
		next.DueDate = in.DueDate.UTC()
	}
	violations = append(violations, next.ValidateInvariants()...)

	nextName := currentName
	if in.StatusName != nil {
		statusID, name, err := s.ResolveStatus(ctx, *in.StatusName, "")
		if err := lifecycle.Collect(&violations, err); err != nil {
			return View{}, err
		}
		if name != "" {
			if violation := checkTransition(currentName, name); violation != nil {
				violations = append(violations, violation)
			} else {
				next.StatusID = statusID
				nextName = name
			}
		}
	}
	if len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}

	next.UpdatedAt = s.Now()
	if err := s.invoices.Save(ctx, next); err != nil {
		return View{}, s.StorageFailure("save invoice", id, err)
	}
	next.Version++

	s.Invalidate(ctx, cache.NamespaceInvoice, next.ID, next.UserID)

	rec := toRecord(next, nextName)
	s.Emit(ctx, domain.AggregateInvoice, next.ID, EventUpdated, rec)
	if nextName != currentName {
		s.RecordTransition(currentName, nextName)
		s.Emit(ctx, domain.AggregateInvoice, next.ID, EventStatusChanged, map[string]string{
			"invoice_id": next.ID, "from": currentName, "to": nextName,
		})
	}
	return s.present(rec), nil
}

func checkTransition(from, to string) error {
	current, err := domain.ParseInvoiceStatus(from)
	if err != nil {
		return err
	}
	target, err := domain.ParseInvoiceStatus(to)
	if err != nil {
		return fmt.Errorf("status_name: %w", err)
	}
	if !current.CanTransitionTo(target) {
		return &domain.TransitionError{Entity: domain.EntityInvoice, From: from, To: to}
	}
	return nil
}

// Delete удаляет счёт только в статусах pending и cancelled.
func (s *Service) Delete(ctx context.Context, id string) (deleted bool, err error) {
	defer s.Observe("delete", time.Now(), &err)

	invoice, err := s.invoices.Get(ctx, id)
	if err != nil {
		return false, s.StorageFailure("get invoice", id, err)
	}
	name, err := s.StatusName(ctx, invoice.StatusID)
	if err != nil {
		return false, err
	}
	current, err := domain.ParseInvoiceStatus(name)
	if err != nil || !current.Deletable() {
		return false, nil
	}

	if err := s.invoices.Delete(ctx, id, invoice.Version); err != nil {
		return false, s.StorageFailure("delete invoice", id, err)
	}
	s.Invalidate(ctx, cache.NamespaceInvoice, invoice.ID, invoice.UserID)
	s.Emit(ctx, domain.AggregateInvoice, invoice.ID, EventDeleted, toRecord(invoice, name))
	return true, nil
}

// Get читает счёт через кэш и вычисляет просрочку на текущий момент.
func (s *Service) Get(ctx context.Context, id string) (view View, err error) {
	defer s.Observe("get", time.Now(), &err)

	rec, err := cache.Fetch(ctx, s.Cache(), cache.InvoiceKey(id), s.TTL().Invoice, func(ctx context.Context) (record, error) {
		invoice, err := s.invoices.Get(ctx, id)
		if err != nil {
			return record{}, s.StorageFailure("get invoice", id, err)
		}
		return s.record(ctx, invoice)
	})
	if err != nil {
		return View{}, err
	}
	return s.present(rec), nil
}

// List возвращает все счета.
func (s *Service) List(ctx context.Context) (views []View, err error) {
	defer s.Observe("list", time.Now(), &err)

	recs, err := cache.Fetch(ctx, s.Cache(), cache.InvoicesAllKey(), s.TTL().Collection, func(ctx context.Context) ([]record, error) {
		invoices, err := s.invoices.List(ctx)
		if err != nil {
			return nil, s.StorageFailure("list invoices", "", err)
		}
		return s.records(ctx, invoices)
	})
	if err != nil {
		return nil, err
	}
	return s.presentAll(recs), nil
}

// ListByUser возвращает счета пользователя.
func (s *Service) ListByUser(ctx context.Context, userID string) (views []View, err error) {
	defer s.Observe("list_by_user", time.Now(), &err)

	recs, err := cache.Fetch(ctx, s.Cache(), cache.InvoicesByUserKey(userID), s.TTL().Collection, func(ctx context.Context) ([]record, error) {
		invoices, err := s.invoices.ListByUser(ctx, userID)
		if err != nil {
			return nil, s.StorageFailure("list invoices by user", userID, err)
		}
		return s.records(ctx, invoices)
	})
	if err != nil {
		return nil, err
	}
	return s.presentAll(recs), nil
}

func (s *Service) record(ctx context.Context, invoice domain.Invoice) (record, error) {
	name, err := s.StatusName(ctx, invoice.StatusID)
	if err != nil {
		return record{}, err
	}
	return toRecord(invoice, name), nil
}

func (s *Service) records(ctx context.Context, invoices []domain.Invoice) ([]record, error) {
	result := make([]record, 0, len(invoices))
	for _, invoice := range invoices {
		rec, err := s.record(ctx, invoice)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// present добавляет вычисляемый признак просрочки.
func (s *Service) present(rec record) View {
	status, _ := domain.ParseInvoiceStatus(rec.Status)
	overdue := domain.Invoice{DueDate: rec.DueDate}.IsOverdue(s.Now(), status)
	return View{
		ID:          rec.ID,
		OrderID:     rec.OrderID,
		UserID:      rec.UserID,
		Status:      rec.Status,
		TotalAmount: rec.TotalAmount,
		DueDate:     rec.DueDate,
		IsOverdue:   overdue,
		Version:     rec.Version,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func (s *Service) presentAll(recs []record) []View {
	views := make([]View, 0, len(recs))
	for _, rec := range recs {
		views = append(views, s.present(rec))
	}
	return views
}

func toRecord(invoice domain.Invoice, status string) record {
	return record{
		ID:          invoice.ID,
		OrderID:     invoice.OrderID,
		UserID:      invoice.UserID,
		Status:      status,
		TotalAmount: invoice.TotalAmount,
		DueDate:     invoice.DueDate,
		Version:     invoice.Version,
		CreatedAt:   invoice.CreatedAt,
		UpdatedAt:   invoice.UpdatedAt,
	}
}
