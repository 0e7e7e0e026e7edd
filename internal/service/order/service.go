// Package order реализует жизненный цикл заказа: создание из корзины, переходы
// статусов, замену позиций с пересчётом суммы и удаление до передачи в исполнение.
package order

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

// Типы событий заказа в outbox.
const (
	EventCreated       = "order.created"
	EventUpdated       = "order.updated"
	EventStatusChanged = "order.status_changed"
	EventDeleted       = "order.deleted"
)

// Carts отдаёт корзины для оформления.
type Carts interface {
	ActiveCart(ctx context.Context, userID string) (domain.Cart, error)
}

// View — представление заказа в ответах и кэше.
type View struct {
	ID              string               `json:"id"`
	CartID          string               `json:"cart_id"`
	UserID          string               `json:"user_id"`
	Items           []lifecycle.ItemView `json:"items"`
	Status          string               `json:"status"`
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	ShippingAddress string               `json:"shipping_address"`
	Version         int64                `json:"version"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// CreateInput — параметры создания заказа. CartID и StatusName необязательны.
type CreateInput struct {
	UserID          string
	CartID          string
	Items           []lifecycle.ItemInput
	StatusName      string
	ShippingAddress string
}

// UpdateInput — частичное обновление: nil означает «поле не передано».
type UpdateInput struct {
	Items           *[]lifecycle.ItemInput
	StatusName      *string
	ShippingAddress *string
	TotalAmount     *decimal.Decimal
}

func (in UpdateInput) empty() bool {
	return in.Items == nil && in.StatusName == nil && in.ShippingAddress == nil && in.TotalAmount == nil
}

// Service изменяет заказы; других путей записи нет.
type Service struct {
	lifecycle.Base
	orders      domain.OrderRepository
	cartRepo    domain.CartRepository
	activeCarts Carts
	catalog     domain.ProductCatalog
}

// NewService создаёт сервис заказов.
func NewService(orders domain.OrderRepository, carts domain.CartRepository, activeCarts Carts, catalog domain.ProductCatalog, deps lifecycle.Deps) *Service {
	return &Service{
		Base:        lifecycle.NewBase(domain.EntityOrder, deps),
		orders:      orders,
		cartRepo:    carts,
		activeCarts: activeCarts,
		catalog:     catalog,
	}
}

// Create оформляет заказ. Сумма всегда считается по позициям. Предварительная проверка
// существующего заказа лишь ускоряет отказ; дубликаты отсекает уникальность cart_id в хранилище.
func (s *Service) Create(ctx context.Context, in CreateInput) (view View, err error) {
	defer s.Observe("create", time.Now(), &err)

	var violations []error
	if in.UserID == "" {
		violations = append(violations, domain.ErrUserRequired)
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		violations = append(violations, domain.ErrShippingAddressEmpty)
	}
	items, itemViolations, err := s.prepareItems(ctx, in.Items, in.UserID)
	if err != nil {
		return View{}, err
	}
	violations = append(violations, itemViolations...)

	statusID, statusName, err := s.ResolveStatus(ctx, in.StatusName, string(domain.OrderStatusPending))
	if err := lifecycle.Collect(&violations, err); err != nil {
		return View{}, err
	}
	if statusName != "" {
		if _, err := domain.ParseOrderStatus(statusName); err != nil {
			violations = append(violations, fmt.Errorf("status_name: %w", err))
		}
	}
	if len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}

	cart, err := s.targetCart(ctx, in.UserID, in.CartID)
	if err != nil {
		return View{}, err
	}

	now := s.Now()
	order := domain.Order{
		ID:              uuid.NewString(),
		CartID:          cart.ID,
		UserID:          in.UserID,
		StatusID:        statusID,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.ReplaceItems(items)
	if violations := order.ValidateInvariants(); len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return View{}, s.StorageFailure("create order", order.ID, err)
	}

	s.Invalidate(ctx, cache.NamespaceOrder, order.ID, order.UserID)
	s.Invalidate(ctx, cache.NamespaceCart, cart.ID, cart.UserID)

	view = toView(order, statusName)
	s.Emit(ctx, domain.AggregateOrder, order.ID, EventCreated, view)
	s.Logger().WithFields(log.Fields{
		"order_id": order.ID,
		"cart_id":  cart.ID,
		"user_id":  order.UserID,
	}).Info("order created")
	return view, nil
}

// Checkout оформляет заказ из текущих позиций корзины (активной, если cartID пуст).
func (s *Service) Checkout(ctx context.Context, userID, cartID, shippingAddress string) (View, error) {
	var cart domain.Cart
	var err error
	if cartID == "" {
		cart, err = s.activeCarts.ActiveCart(ctx, userID)
	} else {
		cart, err = s.cartRepo.Get(ctx, cartID)
		if err != nil {
			err = s.StorageFailure("get cart", cartID, err)
		}
	}
	if err != nil {
		return View{}, err
	}
	return s.Create(ctx, CreateInput{
		UserID:          userID,
		CartID:          cart.ID,
		Items:           lifecycle.ItemInputsFromCart(cart),
		ShippingAddress: shippingAddress,
	})
}

// Update применяет частичное обновление. Все нарушения возвращаются одним списком.
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
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return View{}, s.StorageFailure("get order", id, err)
	}
	currentName, err := s.StatusName(ctx, order.StatusID)
	if err != nil {
		return View{}, err
	}

	var violations []error
	if in.empty() {
		violations = append(violations, domain.ErrNothingToUpdate)
	}

	next := order.Clone()
	itemsRejected := false
	if in.Items != nil {
		items, itemViolations, err := s.prepareItems(ctx, *in.Items, id)
		if err != nil {
			return View{}, err
		}
		violations = append(violations, itemViolations...)
		itemsRejected = len(itemViolations) > 0
		next.ReplaceItems(items)
	}

	if in.TotalAmount != nil {
		// С отклонёнными позициями пересчитанной суммы нет, сравнивать не с чем.
		if in.TotalAmount.IsNegative() {
			violations = append(violations, domain.ErrAmountNegative)
		} else if !itemsRejected && !in.TotalAmount.Equal(next.TotalAmount) {
			violations = append(violations, domain.ErrAmountMismatch)
		}
	}

	if in.ShippingAddress != nil {
		address := strings.TrimSpace(*in.ShippingAddress)
		if address == "" {
			violations = append(violations, domain.ErrShippingAddressEmpty)
		}
		next.ShippingAddress = address
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

	if len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}

	next.UpdatedAt = s.Now()
	if err := s.orders.Save(ctx, next); err != nil {
		return View{}, s.StorageFailure("save order", id, err)
	}
	next.Version++

	s.Invalidate(ctx, cache.NamespaceOrder, next.ID, next.UserID)

	view := toView(next, nextName)
	s.Emit(ctx, domain.AggregateOrder, next.ID, EventUpdated, view)
	if nextName != currentName {
		s.RecordTransition(currentName, nextName)
		s.Emit(ctx, domain.AggregateOrder, next.ID, EventStatusChanged, statusChange{
			OrderID: next.ID, From: currentName, To: nextName,
		})
	}
	return view, nil
}

type statusChange struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// checkTransition сверяет переход с таблицей, без побочных эффектов.
func checkTransition(from, to string) error {
	current, err := domain.ParseOrderStatus(from)
	if err != nil {
		return err
	}
	target, err := domain.ParseOrderStatus(to)
	if err != nil {
		return fmt.Errorf("status_name: %w", err)
	}
	if !current.CanTransitionTo(target) {
		return &domain.TransitionError{Entity: domain.EntityOrder, From: from, To: to}
	}
	return nil
}

// Delete удаляет заказ только в статусах pending и cancelled.
// Для прочих статусов возвращает false без изменений.
func (s *Service) Delete(ctx context.Context, id string) (deleted bool, err error) {
	defer s.Observe("delete", time.Now(), &err)

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return false, s.StorageFailure("get order", id, err)
	}
	name, err := s.StatusName(ctx, order.StatusID)
	if err != nil {
		return false, err
	}
	current, err := domain.ParseOrderStatus(name)
	if err != nil || !current.Deletable() {
		return false, nil
	}

	if err := s.orders.Delete(ctx, id, order.Version); err != nil {
		return false, s.StorageFailure("delete order", id, err)
	}
	s.Invalidate(ctx, cache.NamespaceOrder, order.ID, order.UserID)
	s.Emit(ctx, domain.AggregateOrder, order.ID, EventDeleted, toView(order, name))
	return true, nil
}

// Get читает заказ через кэш.
func (s *Service) Get(ctx context.Context, id string) (view View, err error) {
	defer s.Observe("get", time.Now(), &err)

	return cache.Fetch(ctx, s.Cache(), cache.OrderKey(id), s.TTL().Order, func(ctx context.Context) (View, error) {
		order, err := s.orders.Get(ctx, id)
		if err != nil {
			return View{}, s.StorageFailure("get order", id, err)
		}
		return s.view(ctx, order)
	})
}

// List возвращает все заказы.
func (s *Service) List(ctx context.Context) (views []View, err error) {
	defer s.Observe("list", time.Now(), &err)

	return cache.Fetch(ctx, s.Cache(), cache.OrdersAllKey(), s.TTL().Collection, func(ctx context.Context) ([]View, error) {
		orders, err := s.orders.List(ctx)
		if err != nil {
			return nil, s.StorageFailure("list orders", "", err)
		}
		return s.views(ctx, orders)
	})
}

// ListByUser возвращает заказы пользователя.
func (s *Service) ListByUser(ctx context.Context, userID string) (views []View, err error) {
	defer s.Observe("list_by_user", time.Now(), &err)

	return cache.Fetch(ctx, s.Cache(), cache.OrdersByUserKey(userID), s.TTL().Collection, func(ctx context.Context) ([]View, error) {
		orders, err := s.orders.ListByUser(ctx, userID)
		if err != nil {
			return nil, s.StorageFailure("list orders by user", userID, err)
		}
		return s.views(ctx, orders)
	})
}

// prepareItems выполняет две фазы: чистую проверку формы, затем обогащение из каталога.
func (s *Service) prepareItems(ctx context.Context, inputs []lifecycle.ItemInput, entityID string) ([]domain.OrderItem, []error, error) {
	violations := lifecycle.ValidateItemInputs(inputs)
	if len(violations) > 0 {
		return nil, violations, nil
	}
	items, violations, err := lifecycle.Enrich(ctx, s.catalog, inputs)
	if err != nil {
		return nil, nil, s.StorageFailure("lookup products", entityID, err)
	}
	return items, violations, nil
}

// targetCart находит корзину для заказа и проверяет, что её можно оформить.
func (s *Service) targetCart(ctx context.Context, userID, cartID string) (domain.Cart, error) {
	if cartID == "" {
		return s.activeCarts.ActiveCart(ctx, userID)
	}

	cart, err := s.cartRepo.Get(ctx, cartID)
	if err != nil {
		return domain.Cart{}, s.StorageFailure("get cart", cartID, err)
	}
	if cart.UserID != userID {
		return domain.Cart{}, lifecycle.Ownership("cart", cart.ID, cart.UserID, userID)
	}
	exists, err := s.orders.ExistsByCartID(ctx, cartID)
	if err != nil {
		return domain.Cart{}, s.StorageFailure("check cart order", cartID, err)
	}
	if exists {
		return domain.Cart{}, fmt.Errorf("cart %s: %w", cartID, domain.ErrCartAlreadyOrdered)
	}
	if cart.Finalized {
		return domain.Cart{}, fmt.Errorf("cart %s: %w", cartID, domain.ErrCartFinalized)
	}
	return cart, nil
}

func (s *Service) view(ctx context.Context, order domain.Order) (View, error) {
	name, err := s.StatusName(ctx, order.StatusID)
	if err != nil {
		return View{}, err
	}
	return toView(order, name), nil
}

func (s *Service) views(ctx context.Context, orders []domain.Order) ([]View, error) {
	result := make([]View, 0, len(orders))
	for _, order := range orders {
		view, err := s.view(ctx, order)
		if err != nil {
			return nil, err
		}
		result = append(result, view)
	}
	return result, nil
}

func toView(order domain.Order, status string) View {
	return View{
		ID:              order.ID,
		CartID:          order.CartID,
		UserID:          order.UserID,
		Items:           lifecycle.OrderItemViews(order.Items),
		Status:          status,
		TotalAmount:     order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
		Version:         order.Version,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}
