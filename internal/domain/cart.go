package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem — позиция корзины.
type CartItem struct {
	ProductID  string
	Quantity   int32
	UnitAmount decimal.Decimal
}

// Subtotal возвращает стоимость позиции.
func (i CartItem) Subtotal() decimal.Decimal {
	return lineTotal(i.UnitAmount, i.Quantity)
}

// Cart — изменяемый контейнер позиций до оформления заказа.
// После Finalized=true корзина неизменяема и связана ровно с одним заказом.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	Finalized bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total возвращает сумму позиций корзины.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// UpsertItem добавляет позицию или увеличивает количество существующей.
func (c *Cart) UpsertItem(item CartItem, now time.Time) error {
	if c.Finalized {
		return ErrCartFinalized
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			c.Items[i].UnitAmount = item.UnitAmount
			c.UpdatedAt = now
			return nil
		}
	}
	c.Items = append(c.Items, item)
	c.UpdatedAt = now
	return nil
}

// SetQuantity меняет количество; ноль удаляет позицию.
func (c *Cart) SetQuantity(productID string, qty int32, now time.Time) error {
	if c.Finalized {
		return ErrCartFinalized
	}
	if qty == 0 {
		return c.RemoveItem(productID, now)
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = qty
			c.UpdatedAt = now
			return nil
		}
	}
	return ErrCartItemNotFound
}

// RemoveItem удаляет позицию корзины.
func (c *Cart) RemoveItem(productID string, now time.Time) error {
	if c.Finalized {
		return ErrCartFinalized
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.UpdatedAt = now
			return nil
		}
	}
	return ErrCartItemNotFound
}

// OrderItems копирует позиции корзины в позиции заказа.
func (c *Cart) OrderItems() []OrderItem {
	items := make([]OrderItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, OrderItem(item))
	}
	return items
}

// Clone возвращает глубокую копию корзины.
func (c Cart) Clone() Cart {
	c.Items = append([]CartItem(nil), c.Items...)
	return c
}
