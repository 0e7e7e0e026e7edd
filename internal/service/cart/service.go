// Package cart управляет корзинами пользователей до оформления заказа.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
)

// View — представление корзины в ответах и кэше.
type View struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	Items     []lifecycle.ItemView `json:"items"`
	Total     decimal.Decimal      `json:"total"`
	Finalized bool                 `json:"finalized"`
	Version   int64                `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Service управляет корзинами пользователей.
type Service struct {
	lifecycle.Base
	carts   domain.CartRepository
	catalog domain.ProductCatalog
}

// NewService создаёт сервис корзин.
func NewService(carts domain.CartRepository, catalog domain.ProductCatalog, deps lifecycle.Deps) *Service {
	return &Service{
		Base:    lifecycle.NewBase("cart", deps),
		carts:   carts,
		catalog: catalog,
	}
}

// Active возвращает активную корзину пользователя, создавая пустую при отсутствии.
func (s *Service) Active(ctx context.Context, userID string) (view View, err error) {
	defer s.Observe("active", time.Now(), &err)

	cart, err := s.ActiveCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return toView(cart), nil
}

// ActiveCart — get-or-create активной корзины. Гонку двух созданий разрешает хранилище:
// проигравший получает ErrActiveCartExists и перечитывает победителя.
func (s *Service) ActiveCart(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.NewValidationError([]error{domain.ErrUserRequired})
	}

	cart, err := s.carts.GetActiveByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, s.StorageFailure("get active cart", userID, err)
	}

	now := s.Now()
	cart = domain.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := s.carts.Create(ctx, cart); err != nil {
		if errors.Is(err, domain.ErrActiveCartExists) {
			existing, getErr := s.carts.GetActiveByUser(ctx, userID)
			if getErr != nil {
				return domain.Cart{}, s.StorageFailure("get active cart", userID, getErr)
			}
			return existing, nil
		}
		return domain.Cart{}, s.StorageFailure("create cart", cart.ID, err)
	}
	s.Invalidate(ctx, cache.NamespaceCart, cart.ID, userID)
	return cart, nil
}

// Create явно создаёт корзину с позициями. Если активная корзина уже есть — ErrActiveCartExists.
func (s *Service) Create(ctx context.Context, userID string, items []lifecycle.ItemInput) (view View, err error) {
	defer s.Observe("create", time.Now(), &err)

	var violations []error
	if userID == "" {
		violations = append(violations, domain.ErrUserRequired)
	}
	var enriched []domain.OrderItem
	if len(items) > 0 {
		shape := lifecycle.ValidateItemInputs(items)
		violations = append(violations, shape...)
		if len(shape) == 0 {
			var itemViolations []error
			enriched, itemViolations, err = lifecycle.Enrich(ctx, s.catalog, items)
			if err != nil {
				return View{}, s.StorageFailure("lookup products", userID, err)
			}
			violations = append(violations, itemViolations...)
		}
	}
	if len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}

	now := s.Now()
	cart := domain.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	for _, item := range enriched {
		cart.Items = append(cart.Items, domain.CartItem(item))
	}
	if err := s.carts.Create(ctx, cart); err != nil {
		return View{}, s.StorageFailure("create cart", cart.ID, err)
	}
	s.Invalidate(ctx, cache.NamespaceCart, cart.ID, userID)
	s.Emit(ctx, domain.AggregateCart, cart.ID, "cart.created", toView(cart))
	return toView(cart), nil
}

// Get возвращает корзину через кэш.
func (s *Service) Get(ctx context.Context, id string) (view View, err error) {
	defer s.Observe("get", time.Now(), &err)

	return cache.Fetch(ctx, s.Cache(), cache.CartKey(id), s.TTL().Cart, func(ctx context.Context) (View, error) {
		cart, err := s.carts.Get(ctx, id)
		if err != nil {
			return View{}, s.StorageFailure("get cart", id, err)
		}
		return toView(cart), nil
	})
}

// AddItem добавляет товар или увеличивает его количество.
func (s *Service) AddItem(ctx context.Context, cartID string, item lifecycle.ItemInput) (view View, err error) {
	defer s.Observe("add_item", time.Now(), &err)

	if violations := lifecycle.ValidateItemInputs([]lifecycle.ItemInput{item}); len(violations) > 0 {
		return View{}, lifecycle.Reject(violations)
	}
	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		merged := item
		for _, existing := range cart.Items {
			if existing.ProductID == item.ProductID {
				merged.Quantity += existing.Quantity
			}
		}
		enriched, violations, err := lifecycle.Enrich(ctx, s.catalog, []lifecycle.ItemInput{merged})
		if err != nil {
			return s.StorageFailure("lookup products", cartID, err)
		}
		if len(violations) > 0 {
			return lifecycle.Reject(violations)
		}
		added := domain.CartItem(enriched[0])
		added.Quantity = item.Quantity
		return cart.UpsertItem(added, s.Now())
	})
}

// UpdateItem задаёт количество товара; ноль удаляет позицию.
func (s *Service) UpdateItem(ctx context.Context, cartID, productID string, quantity int32) (view View, err error) {
	defer s.Observe("update_item", time.Now(), &err)

	if quantity < 0 {
		return View{}, lifecycle.Reject([]error{domain.ItemViolation(0, domain.ErrItemQtyInvalid)})
	}
	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		if quantity > 0 {
			_, violations, err := lifecycle.Enrich(ctx, s.catalog, []lifecycle.ItemInput{{ProductID: productID, Quantity: quantity}})
			if err != nil {
				return s.StorageFailure("lookup products", cartID, err)
			}
			if len(violations) > 0 {
				return lifecycle.Reject(violations)
			}
		}
		return cart.SetQuantity(productID, quantity, s.Now())
	})
}

// RemoveItem удаляет позицию.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID string) (view View, err error) {
	defer s.Observe("remove_item", time.Now(), &err)

	return s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		return cart.RemoveItem(productID, s.Now())
	})
}

func (s *Service) mutate(ctx context.Context, cartID string, apply func(*domain.Cart) error) (View, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return View{}, s.StorageFailure("get cart", cartID, err)
	}
	if cart.Finalized {
		return View{}, fmt.Errorf("cart %s: %w", cartID, domain.ErrCartFinalized)
	}
	if err := apply(&cart); err != nil {
		if errors.Is(err, domain.ErrCartItemNotFound) {
			return View{}, lifecycle.Reject([]error{err})
		}
		return View{}, err
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return View{}, s.StorageFailure("save cart", cartID, err)
	}
	cart.Version++
	s.Invalidate(ctx, cache.NamespaceCart, cart.ID, cart.UserID)
	return toView(cart), nil
}

func toView(cart domain.Cart) View {
	return View{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Items:     lifecycle.OrderItemViews(cart.OrderItems()),
		Total:     cart.Total(),
		Finalized: cart.Finalized,
		Version:   cart.Version,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
}
