package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName — полное имя gRPC-сервиса.
const ServiceName = "storefront.v1.LifecycleService"

// FullMethod возвращает путь метода вида "/storefront.v1.LifecycleService/GetOrder".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// LifecycleServer реализует серверную сторону API жизненного цикла.
type LifecycleServer interface {
	GetActiveCart(context.Context, *GetActiveCartRequest) (*CartResponse, error)
	CreateCart(context.Context, *CreateCartRequest) (*CartResponse, error)
	GetCart(context.Context, *GetCartRequest) (*CartResponse, error)
	AddCartItem(context.Context, *AddCartItemRequest) (*CartResponse, error)
	UpdateCartItem(context.Context, *UpdateCartItemRequest) (*CartResponse, error)
	RemoveCartItem(context.Context, *RemoveCartItemRequest) (*CartResponse, error)

	CreateOrder(context.Context, *CreateOrderRequest) (*OrderResponse, error)
	Checkout(context.Context, *CheckoutRequest) (*OrderResponse, error)
	GetOrder(context.Context, *GetRequest) (*OrderResponse, error)
	ListOrders(context.Context, *ListRequest) (*OrderListResponse, error)
	UpdateOrder(context.Context, *UpdateOrderRequest) (*OrderResponse, error)
	UpdateOrderStatus(context.Context, *UpdateStatusRequest) (*OrderResponse, error)
	DeleteOrder(context.Context, *DeleteRequest) (*DeleteResponse, error)

	CreateReturn(context.Context, *CreateReturnRequest) (*ReturnResponse, error)
	GetReturn(context.Context, *GetRequest) (*ReturnResponse, error)
	ListReturns(context.Context, *ListRequest) (*ReturnListResponse, error)
	UpdateReturn(context.Context, *UpdateReturnRequest) (*ReturnResponse, error)
	UpdateReturnStatus(context.Context, *UpdateStatusRequest) (*ReturnResponse, error)
	DeleteReturn(context.Context, *DeleteRequest) (*DeleteResponse, error)

	CreateInvoice(context.Context, *CreateInvoiceRequest) (*InvoiceResponse, error)
	GetInvoice(context.Context, *GetRequest) (*InvoiceResponse, error)
	ListInvoices(context.Context, *ListRequest) (*InvoiceListResponse, error)
	UpdateInvoice(context.Context, *UpdateInvoiceRequest) (*InvoiceResponse, error)
	UpdateInvoiceStatus(context.Context, *UpdateStatusRequest) (*InvoiceResponse, error)
	DeleteInvoice(context.Context, *DeleteRequest) (*DeleteResponse, error)
}

// RegisterLifecycleServer регистрирует реализацию на gRPC-сервере.
func RegisterLifecycleServer(registrar grpc.ServiceRegistrar, srv LifecycleServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc описывает сервис для grpc.Server. Сообщения кодируются JSON-кодеком.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LifecycleServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetActiveCart", LifecycleServer.GetActiveCart),
		unary("CreateCart", LifecycleServer.CreateCart),
		unary("GetCart", LifecycleServer.GetCart),
		unary("AddCartItem", LifecycleServer.AddCartItem),
		unary("UpdateCartItem", LifecycleServer.UpdateCartItem),
		unary("RemoveCartItem", LifecycleServer.RemoveCartItem),

		unary("CreateOrder", LifecycleServer.CreateOrder),
		unary("Checkout", LifecycleServer.Checkout),
		unary("GetOrder", LifecycleServer.GetOrder),
		unary("ListOrders", LifecycleServer.ListOrders),
		unary("UpdateOrder", LifecycleServer.UpdateOrder),
		unary("UpdateOrderStatus", LifecycleServer.UpdateOrderStatus),
		unary("DeleteOrder", LifecycleServer.DeleteOrder),

		unary("CreateReturn", LifecycleServer.CreateReturn),
		unary("GetReturn", LifecycleServer.GetReturn),
		unary("ListReturns", LifecycleServer.ListReturns),
		unary("UpdateReturn", LifecycleServer.UpdateReturn),
		unary("UpdateReturnStatus", LifecycleServer.UpdateReturnStatus),
		unary("DeleteReturn", LifecycleServer.DeleteReturn),

		unary("CreateInvoice", LifecycleServer.CreateInvoice),
		unary("GetInvoice", LifecycleServer.GetInvoice),
		unary("ListInvoices", LifecycleServer.ListInvoices),
		unary("UpdateInvoice", LifecycleServer.UpdateInvoice),
		unary("UpdateInvoiceStatus", LifecycleServer.UpdateInvoiceStatus),
		unary("DeleteInvoice", LifecycleServer.DeleteInvoice),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/lifecycle",
}

// unary строит обработчик метода так же, как это делает protoc-gen-go-grpc.
func unary[Req, Resp any](name string, call func(LifecycleServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			server := srv.(LifecycleServer)
			if interceptor == nil {
				return call(server, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}
