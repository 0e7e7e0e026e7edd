// Package returns реализует жизненный цикл возврата по существующему заказу.
package returns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
)

// Типы событий возврата в outbox.
const (
	EventCreated       = "return.created"
	EventUpdated       = "return.updated"
	EventStatusChanged = "return.status_changed"
	EventDeleted       = "return.deleted"
)

// ItemInput — позиция возврата из запроса. Цена возврата всегда берётся из заказа;
// переданный UnitAmount только сверяется с ней.
type ItemInput struct {
	ProductID  string           `json:"product_id"`
	Quantity   int32            `json:"quantity"`
	Reason     string           `json:"reason"`
	UnitAmount *decimal.Decimal `json:"unit_amount,omitempty"`
}

// ItemView — позиция возврата в ответе.
type ItemView struct {
	ProductID  string          `json:"product_id"`
	Quantity   int32           `json:"quantity"`
	Reason     string          `json:"reason"`
	UnitAmount decimal.Decimal `json:"unit_amount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// View — представление возврата.
type View struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Items       []ItemView      `json:"items"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateInput — параметры создания возврата.
type CreateInput struct {
	OrderID    string
	UserID     string
	Items      []ItemInput
	StatusName string
}

// UpdateInput — частичное обновление возврата.
type UpdateInput struct {
	Items       *[]ItemInput
	StatusName  *string
	TotalAmount *decimal.Decimal
}

// Service изменяет возвраты; других путей записи нет.
type Service struct {
	lifecycle.Base
	returns domain.ReturnRepository
	orders  domain.OrderRepository
	window  time.Duration
}

// NewService создаёт сервис возвратов. window <= 0 заменяется на 30 дней.
func NewService(returns domain.ReturnRepository, orders domain.OrderRepository, window time.Duration, deps lifecycle.Deps) *Service {
	if window <= 0 {
		window = domain.DefaultReturnWindow
	}
	return &Service{
		Base:    lifecycle.NewBase(domain.EntityReturn, deps),
		returns: returns,
		orders:  orders,
		window:  window,
	}
}

// Validate применяет те же правила, что Create и Update. held — количества,
// занятые другими возвратами заказа (см. heldQuantities).
func (s *Service) Validate(ret domain.Return, order *domain.Order, held map[string]int32) []error {
	return domain.ValidateReturn(ret, order, held, s.window)
}

// Create оформляет возврат. Заказ должен существовать и принадлежать тому же пользователю,
// признак администратора здесь не учитывается.
func (s *Service) Create(ctx context.Context, in CreateInput) (view View, err error) {
	defer s.Observe("create", time.Now(), &err)

	var violations []error
	if in.UserID == "" {
		violations = append(violations, domain.ErrUserRequired)
	}
	if in.OrderID == "" {
		violations = append(violations, domain.ErrOrderIDRequired)
	}
	if len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}

	order, err := s.orders.Get(ctx, in.OrderID)
	if err != nil {
		return View{}, s.StorageFailure("get order", in.OrderID, err)
	}
	if order.UserID != in.UserID {
		s.Logger().WithFields(log.Fields{
			"order_id": order.ID,
			"user_id":  in.UserID,
		}).Warn("return rejected: order belongs to another user")
		return View{}, lifecycle.Ownership(domain.EntityOrder, order.ID, order.UserID, in.UserID)
	}

	statusID, statusName, err := s.ResolveStatus(ctx, in.StatusName, string(domain.ReturnStatusRequested))
	if err := lifecycle.Collect(&violations, err); err != nil {
		return View{}, err
	}
	if statusName != "" {
		if _, err := domain.ParseReturnStatus(statusName); err != nil {
			violations = append(violations, fmt.Errorf("status_name: %w", err))
		}
	}

	now := s.Now()
	ret := domain.Return{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		UserID:    in.UserID,
		StatusID:  statusID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ret.ReplaceItems(itemsFromInput(in.Items, &order))
	held, err := s.heldQuantities(ctx, order.ID, "")
	if err != nil {
		return View{}, err
	}
	violations = append(violations, s.Validate(ret, &order, held)...)
	if len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}

	if err := s.returns.Create(ctx, ret); err != nil {
		return View{}, s.StorageFailure("create return", ret.ID, err)
	}
	s.Invalidate(ctx, cache.NamespaceReturn, ret.ID, ret.UserID)

	view = toView(ret, statusName)
	s.Emit(ctx, domain.AggregateReturn, ret.ID, EventCreated, view)
	return view, nil
}

// Update применяет частичное обновление по тем же правилам, что и создание.
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
	ret, err := s.returns.Get(ctx, id)
	if err != nil {
		return View{}, s.StorageFailure("get return", id, err)
	}
	currentName, err := s.StatusName(ctx, ret.StatusID)
	if err != nil {
		return View{}, err
	}

	// Заказ мог быть удалён; тогда проверки, зависящие от него, пропускаются.
	var order *domain.Order
	if found, err := s.orders.Get(ctx, ret.OrderID); err == nil {
		order = &found
	} else if !domain.IsNotFound(err) {
		return View{}, s.StorageFailure("get order", ret.OrderID, err)
	}

	var violations []error
	if in.Items == nil && in.StatusName == nil && in.TotalAmount == nil {
		violations = append(violations, domain.ErrNothingToUpdate)
	}

	next := ret.Clone()
	if in.Items != nil {
		if order == nil {
			// Без заказа цену и количество сверить не с чем.
			violations = append(violations, domain.ErrReturnItemsLocked)
		}
		next.ReplaceItems(itemsFromInput(*in.Items, order))
	}
	if in.TotalAmount != nil && !in.TotalAmount.Equal(next.TotalAmount) {
		violations = append(violations, domain.ErrAmountMismatch)
	}

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

	if in.Items != nil {
		var held map[string]int32
		if order != nil {
			if held, err = s.heldQuantities(ctx, order.ID, next.ID); err != nil {
				return View{}, err
			}
		}
		violations = append(violations, s.Validate(next, order, held)...)
	}
	if len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}

	next.UpdatedAt = s.Now()
	if err := s.returns.Save(ctx, next); err != nil {
		return View{}, s.StorageFailure("save return", id, err)
	}
	next.Version++

	s.Invalidate(ctx, cache.NamespaceReturn, next.ID, next.UserID)

	view := toView(next, nextName)
	s.Emit(ctx, domain.AggregateReturn, next.ID, EventUpdated, view)
	if nextName != currentName {
		s.RecordTransition(currentName, nextName)
		s.Emit(ctx, domain.AggregateReturn, next.ID, EventStatusChanged, map[string]string{
			"return_id": next.ID, "from": currentName, "to": nextName,
		})
	}
	return view, nil
}

func checkTransition(from, to string) error {
	current, err := domain.ParseReturnStatus(from)
	if err != nil {
		return err
	}
	target, err := domain.ParseReturnStatus(to)
	if err != nil {
		return fmt.Errorf("status_name: %w", err)
	}
	if !current.CanTransitionTo(target) {
		return &domain.TransitionError{Entity: domain.EntityReturn, From: from, To: to}
	}
	return nil
}

// Delete удаляет возврат только в статусах requested и rejected.
func (s *Service) Delete(ctx context.Context, id string) (deleted bool, err error) {
	defer s.Observe("delete", time.Now(), &err)

	ret, err := s.returns.Get(ctx, id)
	if err != nil {
		return false, s.StorageFailure("get return", id, err)
	}
	name, err := s.StatusName(ctx, ret.StatusID)
	if err != nil {
		return false, err
	}
	current, err := domain.ParseReturnStatus(name)
	if err != nil || !current.Deletable() {
		return false, nil
	}

	if err := s.returns.Delete(ctx, id, ret.Version); err != nil {
		return false, s.StorageFailure("delete return", id, err)
	}
	s.Invalidate(ctx, cache.NamespaceReturn, ret.ID, ret.UserID)
	s.Emit(ctx, domain.AggregateReturn, ret.ID, EventDeleted, toView(ret, name))
	return true, nil
}

// Get читает возврат через кэш.
func (s *Service) Get(ctx context.Context, id string) (view View, err error) {
	defer s.Observe("get", time.Now(), &err)

	return cache.Fetch(ctx, s.Cache(), cache.ReturnKey(id), s.TTL().Return, func(ctx context.Context) (View, error) {
		ret, err := s.returns.Get(ctx, id)
		if err != nil {
			return View{}, s.StorageFailure("get return", id, err)
		}
		return s.view(ctx, ret)
	})
}

// List возвращает все возвраты.
func (s *Service) List(ctx context.Context) (views []View, err error) {
	defer s.Observe("list", time.Now(), &err)

	return cache.Fetch(ctx, s.Cache(), cache.ReturnsAllKey(), s.TTL().Collection, func(ctx context.Context) ([]View, error) {
		rets, err := s.returns.List(ctx)
		if err != nil {
			return nil, s.StorageFailure("list returns", "", err)
		}
		return s.views(ctx, rets)
	})
}

// ListByUser возвращает возвраты пользователя.
func (s *Service) ListByUser(ctx context.Context, userID string) (views []View, err error) {
	defer s.Observe("list_by_user", time.Now(), &err)

	return cache.Fetch(ctx, s.Cache(), cache.ReturnsByUserKey(userID), s.TTL().Collection, func(ctx context.Context) ([]View, error) {
		rets, err := s.returns.ListByUser(ctx, userID)
		if err != nil {
			return nil, s.StorageFailure("list returns by user", userID, err)
		}
		return s.views(ctx, rets)
	})
}

// heldQuantities суммирует количества по товарам во всех неотклонённых возвратах
// заказа, кроме excludeID.
func (s *Service) heldQuantities(ctx context.Context, orderID, excludeID string) (map[string]int32, error) {
	rets, err := s.returns.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, s.StorageFailure("list returns by order", orderID, err)
	}
	held := make(map[string]int32)
	for _, ret := range rets {
		if ret.ID == excludeID {
			continue
		}
		name, err := s.StatusName(ctx, ret.StatusID)
		if err != nil {
			return nil, err
		}
		if name == string(domain.ReturnStatusRejected) {
			continue
		}
		for _, item := range ret.Items {
			held[item.ProductID] += item.Quantity
		}
	}
	return held, nil
}

// itemsFromInput берёт цену из строки заказа: возврат идёт по цене покупки.
// Переданная клиентом цена сохраняется как есть, чтобы ValidateReturn
// отклонил расхождение; без заказа остаётся только она.
func itemsFromInput(inputs []ItemInput, order *domain.Order) []domain.ReturnItem {
	items := make([]domain.ReturnItem, 0, len(inputs))
	for _, in := range inputs {
		item := domain.ReturnItem{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			Reason:    strings.TrimSpace(in.Reason),
		}
		if order != nil {
			if line, ok := order.ItemByProduct(in.ProductID); ok {
				item.UnitAmount = line.UnitAmount
			}
		}
		if in.UnitAmount != nil {
			item.UnitAmount = *in.UnitAmount
		}
		items = append(items, item)
	}
	return items
}

func (s *Service) view(ctx context.Context, ret domain.Return) (View, error) {
	name, err := s.StatusName(ctx, ret.StatusID)
	if err != nil {
		return View{}, err
	}
	return toView(ret, name), nil
}

func (s *Service) views(ctx context.Context, rets []domain.Return) ([]View, error) {
	result := make([]View, 0, len(rets))
	for _, ret := range rets {
		view, err := s.view(ctx, ret)
		if err != nil {
			return nil, err
		}
		result = append(result, view)
	}
	return result, nil
}

func toView(ret domain.Return, status string) View {
	items := make([]ItemView, 0, len(ret.Items))
	for _, item := range ret.Items {
		items = append(items, ItemView{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			Reason:     item.Reason,
			UnitAmount: item.UnitAmount,
			Subtotal:   item.Subtotal(),
		})
	}
	return View{
		ID:          ret.ID,
		OrderID:     ret.OrderID,
		UserID:      ret.UserID,
		Items:       items,
		Status:      status,
		TotalAmount: ret.TotalAmount,
		Version:     ret.Version,
		CreatedAt:   ret.CreatedAt,
		UpdatedAt:   ret.UpdatedAt,
	}
}
