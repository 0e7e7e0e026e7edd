package domain

import "context"

// CartRepository описывает хранилище корзин.
type CartRepository interface {
	// Create сохраняет корзину. Вторая активная корзина пользователя даёт ErrActiveCartExists.
	Create(ctx context.Context, cart Cart) error
	// Get возвращает корзину или ErrCartNotFound.
	Get(ctx context.Context, id string) (Cart, error)
	// GetActiveByUser возвращает незавершённую корзину пользователя или ErrCartNotFound.
	GetActiveByUser(ctx context.Context, userID string) (Cart, error)
	// Save перезаписывает корзину с учётом optimistic locking.
	Save(ctx context.Context, cart Cart) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет заказ и помечает его корзину завершённой.
	// Повторный заказ на ту же корзину даёт ErrCartAlreadyOrdered.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// ExistsByCartID — быстрая предварительная проверка; гарантию даёт уникальность cart_id.
	ExistsByCartID(ctx context.Context, cartID string) (bool, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
	// Delete удаляет заказ, если его версия не изменилась.
	Delete(ctx context.Context, id string, version int64) error
}

// ReturnRepository описывает хранилище возвратов.
type ReturnRepository interface {
	Create(ctx context.Context, ret Return) error
	Get(ctx context.Context, id string) (Return, error)
	List(ctx context.Context) ([]Return, error)
	ListByUser(ctx context.Context, userID string) ([]Return, error)
	// ListByOrder возвращает все возвраты по заказу.
	ListByOrder(ctx context.Context, orderID string) ([]Return, error)
	Save(ctx context.Context, ret Return) error
	Delete(ctx context.Context, id string, version int64) error
}

// InvoiceRepository описывает хранилище счетов.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice Invoice) error
	Get(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
	ListByUser(ctx context.Context, userID string) ([]Invoice, error)
	Save(ctx context.Context, invoice Invoice) error
	Delete(ctx context.Context, id string, version int64) error
}
