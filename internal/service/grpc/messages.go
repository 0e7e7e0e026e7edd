package grpcsvc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/invoice"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/service/returns"
)

// GetActiveCartRequest: пустой UserID означает вызывающего.
type GetActiveCartRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type CreateCartRequest struct {
	UserID string                `json:"user_id,omitempty"`
	Items  []lifecycle.ItemInput `json:"items,omitempty"`
}

type GetCartRequest struct {
	CartID string `json:"cart_id"`
}

type AddCartItemRequest struct {
	CartID string              `json:"cart_id"`
	Item   lifecycle.ItemInput `json:"item"`
}

type UpdateCartItemRequest struct {
	CartID    string `json:"cart_id"`
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type RemoveCartItemRequest struct {
	CartID    string `json:"cart_id"`
	ProductID string `json:"product_id"`
}

type CartResponse struct {
	Cart cart.View `json:"cart"`
}

type CreateOrderRequest struct {
	UserID          string                `json:"user_id,omitempty"`
	CartID          string                `json:"cart_id,omitempty"`
	Items           []lifecycle.ItemInput `json:"items"`
	StatusName      string                `json:"status_name,omitempty"`
	ShippingAddress string                `json:"shipping_address"`
}

// CheckoutRequest: пустой CartID означает активную корзину.
type CheckoutRequest struct {
	UserID          string `json:"user_id,omitempty"`
	CartID          string `json:"cart_id,omitempty"`
	ShippingAddress string `json:"shipping_address"`
}

// UpdateOrderRequest: отсутствующие поля не меняются.
type UpdateOrderRequest struct {
	OrderID         string                 `json:"order_id"`
	Items           *[]lifecycle.ItemInput `json:"items,omitempty"`
	StatusName      *string                `json:"status_name,omitempty"`
	ShippingAddress *string                `json:"shipping_address,omitempty"`
	TotalAmount     *decimal.Decimal       `json:"total_amount,omitempty"`
}

type OrderResponse struct {
	Order order.View `json:"order"`
}

type OrderListResponse struct {
	Orders []order.View `json:"orders"`
}

type CreateReturnRequest struct {
	OrderID    string              `json:"order_id"`
	UserID     string              `json:"user_id,omitempty"`
	Items      []returns.ItemInput `json:"items"`
	StatusName string              `json:"status_name,omitempty"`
}

type UpdateReturnRequest struct {
	ReturnID    string               `json:"return_id"`
	Items       *[]returns.ItemInput `json:"items,omitempty"`
	StatusName  *string              `json:"status_name,omitempty"`
	TotalAmount *decimal.Decimal     `json:"total_amount,omitempty"`
}

type ReturnResponse struct {
	Return returns.View `json:"return"`
}

type ReturnListResponse struct {
	Returns []returns.View `json:"returns"`
}

type CreateInvoiceRequest struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	StatusName  string          `json:"status_name,omitempty"`
}

type UpdateInvoiceRequest struct {
	InvoiceID   string           `json:"invoice_id"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	StatusName  *string          `json:"status_name,omitempty"`
}

type InvoiceResponse struct {
	Invoice invoice.View `json:"invoice"`
}

type InvoiceListResponse struct {
	Invoices []invoice.View `json:"invoices"`
}

// GetRequest адресует заказ, возврат или счёт по идентификатору.
type GetRequest struct {
	ID string `json:"id"`
}

// ListRequest: пустой UserID означает все записи (только для администратора).
type ListRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type UpdateStatusRequest struct {
	ID         string `json:"id"`
	StatusName string `json:"status_name"`
}

type DeleteRequest struct {
	ID string `json:"id"`
}

// DeleteResponse: Deleted=false, если статус сущности не допускает удаления.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
