package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// Client — клиент LifecycleService. Вызывающий передаётся через authz.AppendToOutgoingContext.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient оборачивает соединение.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts ...grpc.CallOption) (*Resp, error) {
	resp := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetActiveCart(ctx context.Context, req *GetActiveCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "GetActiveCart", req, opts...)
}

func (c *Client) CreateCart(ctx context.Context, req *CreateCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "CreateCart", req, opts...)
}

func (c *Client) GetCart(ctx context.Context, req *GetCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "GetCart", req, opts...)
}

func (c *Client) AddCartItem(ctx context.Context, req *AddCartItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "AddCartItem", req, opts...)
}

func (c *Client) UpdateCartItem(ctx context.Context, req *UpdateCartItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "UpdateCartItem", req, opts...)
}

func (c *Client) RemoveCartItem(ctx context.Context, req *RemoveCartItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, "RemoveCartItem", req, opts...)
}

func (c *Client) CreateOrder(ctx context.Context, req *CreateOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "CreateOrder", req, opts...)
}

func (c *Client) Checkout(ctx context.Context, req *CheckoutRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "Checkout", req, opts...)
}

func (c *Client) GetOrder(ctx context.Context, req *GetRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "GetOrder", req, opts...)
}

func (c *Client) ListOrders(ctx context.Context, req *ListRequest, opts ...grpc.CallOption) (*OrderListResponse, error) {
	return invoke[OrderListResponse](ctx, c.cc, "ListOrders", req, opts...)
}

func (c *Client) UpdateOrder(ctx context.Context, req *UpdateOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "UpdateOrder", req, opts...)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, req *UpdateStatusRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "UpdateOrderStatus", req, opts...)
}

func (c *Client) DeleteOrder(ctx context.Context, req *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c.cc, "DeleteOrder", req, opts...)
}

func (c *Client) CreateReturn(ctx context.Context, req *CreateReturnRequest, opts ...grpc.CallOption) (*ReturnResponse, error) {
	return invoke[ReturnResponse](ctx, c.cc, "CreateReturn", req, opts...)
}

func (c *Client) GetReturn(ctx context.Context, req *GetRequest, opts ...grpc.CallOption) (*ReturnResponse, error) {
	return invoke[ReturnResponse](ctx, c.cc, "GetReturn", req, opts...)
}

func (c *Client) ListReturns(ctx context.Context, req *ListRequest, opts ...grpc.CallOption) (*ReturnListResponse, error) {
	return invoke[ReturnListResponse](ctx, c.cc, "ListReturns", req, opts...)
}

func (c *Client) UpdateReturn(ctx context.Context, req *UpdateReturnRequest, opts ...grpc.CallOption) (*ReturnResponse, error) {
	return invoke[ReturnResponse](ctx, c.cc, "UpdateReturn", req, opts...)
}

func (c *Client) UpdateReturnStatus(ctx context.Context, req *UpdateStatusRequest, opts ...grpc.CallOption) (*ReturnResponse, error) {
	return invoke[ReturnResponse](ctx, c.cc, "UpdateReturnStatus", req, opts...)
}

func (c *Client) DeleteReturn(ctx context.Context, req *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c.cc, "DeleteReturn", req, opts...)
}

func (c *Client) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest, opts ...grpc.CallOption) (*InvoiceResponse, error) {
	return invoke[InvoiceResponse](ctx, c.cc, "CreateInvoice", req, opts...)
}

func (c *Client) GetInvoice(ctx context.Context, req *GetRequest, opts ...grpc.CallOption) (*InvoiceResponse, error) {
	return invoke[InvoiceResponse](ctx, c.cc, "GetInvoice", req, opts...)
}

func (c *Client) ListInvoices(ctx context.Context, req *ListRequest, opts ...grpc.CallOption) (*InvoiceListResponse, error) {
	return invoke[InvoiceListResponse](ctx, c.cc, "ListInvoices", req, opts...)
}

func (c *Client) UpdateInvoice(ctx context.Context, req *UpdateInvoiceRequest, opts ...grpc.CallOption) (*InvoiceResponse, error) {
	return invoke[InvoiceResponse](ctx, c.cc, "UpdateInvoice", req, opts...)
}

func (c *Client) UpdateInvoiceStatus(ctx context.Context, req *UpdateStatusRequest, opts ...grpc.CallOption) (*InvoiceResponse, error) {
	return invoke[InvoiceResponse](ctx, c.cc, "UpdateInvoiceStatus", req, opts...)
}

func (c *Client) DeleteInvoice(ctx context.Context, req *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c.cc, "DeleteInvoice", req, opts...)
}
