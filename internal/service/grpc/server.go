// Package grpcsvc публикует сервисы жизненного цикла через gRPC.
package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/service/authz"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/invoice"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/service/returns"
)

// Services перечисляет компоненты жизненного цикла, которые обслуживает сервер.
type Services struct {
	Carts    *cart.Service
	Orders   *order.Service
	Returns  *returns.Service
	Invoices *invoice.Service
}

// Server реализует LifecycleServer. Владельцу доступны свои сущности,
// администратору все. Смена статуса разрешена только администратору.
type Server struct {
	carts    *cart.Service
	orders   *order.Service
	returns  *returns.Service
	invoices *invoice.Service
	logger   *log.Entry
}

var _ LifecycleServer = (*Server)(nil)

// NewServer конструирует сервер с зависимостями.
func NewServer(services Services, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "lifecycle-grpc")
	}
	return &Server{
		carts:    services.Carts,
		orders:   services.Orders,
		returns:  services.Returns,
		invoices: services.Invoices,
		logger:   logger,
	}
}

func callerFrom(ctx context.Context) (authz.Caller, error) {
	caller, ok := authz.FromIncomingContext(ctx)
	if !ok {
		return authz.Caller{}, status.Error(codes.Unauthenticated, authz.MetadataUserID+" metadata is required")
	}
	return caller, nil
}

// subject определяет пользователя, от имени которого выполняется запрос.
func subject(ctx context.Context, requested string) (authz.Caller, string, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return authz.Caller{}, "", err
	}
	if requested == "" {
		return caller, caller.UserID, nil
	}
	if !authz.IsOwnerOrAdmin(caller, requested) {
		return authz.Caller{}, "", status.Error(codes.PermissionDenied, "caller may not act for another user")
	}
	return caller, requested, nil
}

func allowOwner(caller authz.Caller, ownerID string) error {
	if !authz.IsOwnerOrAdmin(caller, ownerID) {
		return status.Error(codes.PermissionDenied, "resource belongs to another user")
	}
	return nil
}

func requireAdmin(caller authz.Caller) error {
	if !authz.IsAdmin(caller) {
		return status.Error(codes.PermissionDenied, "admin role is required")
	}
	return nil
}

func requireID(id, field string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, field+" is required")
	}
	return nil
}

func (s *Server) fail(method string, err error) error {
	return toStatus(s.logger, method, err)
}

// --- Cart ---

func (s *Server) GetActiveCart(ctx context.Context, req *GetActiveCartRequest) (*CartResponse, error) {
	_, userID, err := subject(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	view, err := s.carts.Active(ctx, userID)
	if err != nil {
		return nil, s.fail("GetActiveCart", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *Server) CreateCart(ctx context.Context, req *CreateCartRequest) (*CartResponse, error) {
	_, userID, err := subject(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	view, err := s.carts.Create(ctx, userID, req.Items)
	if err != nil {
		return nil, s.fail("CreateCart", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *Server) GetCart(ctx context.Context, req *GetCartRequest) (*CartResponse, error) {
	view, err := s.ownedCart(ctx, "GetCart", req.CartID)
	if err != nil {
		return nil, err
	}
	return &CartResponse{Cart: view}, nil
}

func (s *Server) AddCartItem(ctx context.Context, req *AddCartItemRequest) (*CartResponse, error) {
	if _, err := s.ownedCart(ctx, "AddCartItem", req.CartID); err != nil {
		return nil, err
	}
	view, err := s.carts.AddItem(ctx, req.CartID, req.Item)
	if err != nil {
		return nil, s.fail("AddCartItem", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *Server) UpdateCartItem(ctx context.Context, req *UpdateCartItemRequest) (*CartResponse, error) {
	if _, err := s.ownedCart(ctx, "UpdateCartItem", req.CartID); err != nil {
		return nil, err
	}
	view, err := s.carts.UpdateItem(ctx, req.CartID, req.ProductID, req.Quantity)
	if err != nil {
		return nil, s.fail("UpdateCartItem", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *Server) RemoveCartItem(ctx context.Context, req *RemoveCartItemRequest) (*CartResponse, error) {
	if _, err := s.ownedCart(ctx, "RemoveCartItem", req.CartID); err != nil {
		return nil, err
	}
	view, err := s.carts.RemoveItem(ctx, req.CartID, req.ProductID)
	if err != nil {
		return nil, s.fail("RemoveCartItem", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *Server) ownedCart(ctx context.Context, method, cartID string) (cart.View, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return cart.View{}, err
	}
	if err := requireID(cartID, "cart_id"); err != nil {
		return cart.View{}, err
	}
	view, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return cart.View{}, s.fail(method, err)
	}
	return view, allowOwner(caller, view.UserID)
}

// --- Order ---

func (s *Server) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	caller, userID, err := subject(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.StatusName != "" {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
	}
	view, err := s.orders.Create(ctx, order.CreateInput{
		UserID:          userID,
		CartID:          req.CartID,
		Items:           req.Items,
		StatusName:      req.StatusName,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		return nil, s.fail("CreateOrder", err)
	}
	return &OrderResponse{Order: view}, nil
}

func (s *Server) Checkout(ctx context.Context, req *CheckoutRequest) (*OrderResponse, error) {
	_, userID, err := subject(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	view, err := s.orders.Checkout(ctx, userID, req.CartID, req.ShippingAddress)
	if err != nil {
		return nil, s.fail("Checkout", err)
	}
	return &OrderResponse{Order: view}, nil
}

func (s *Server) GetOrder(ctx context.Context, req *GetRequest) (*OrderResponse, error) {
	view, _, err := s.ownedOrder(ctx, "GetOrder", req.ID)
	if err != nil {
		return nil, err
	}
	return &OrderResponse{Order: view}, nil
}

func (s *Server) ListOrders(ctx context.Context, req *ListRequest) (*OrderListResponse, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var views []order.View
	if req.UserID == "" {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
		views, err = s.orders.List(ctx)
	} else {
		if err := allowOwner(caller, req.UserID); err != nil {
			return nil, err
		}
		views, err = s.orders.ListByUser(ctx, req.UserID)
	}
	if err != nil {
		return nil, s.fail("ListOrders", err)
	}
	return &OrderListResponse{Orders: views}, nil
}

func (s *Server) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*OrderResponse, error) {
	_, caller, err := s.ownedOrder(ctx, "UpdateOrder", req.OrderID)
	if err != nil {
		return nil, err
	}
	if req.StatusName != nil {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
	}
	view, err := s.orders.Update(ctx, req.OrderID, order.UpdateInput{
		Items:           req.Items,
		StatusName:      req.StatusName,
		ShippingAddress: req.ShippingAddress,
		TotalAmount:     req.TotalAmount,
	})
	if err != nil {
		return nil, s.fail("UpdateOrder", err)
	}
	return &OrderResponse{Order: view}, nil
}

func (s *Server) UpdateOrderStatus(ctx context.Context, req *UpdateStatusRequest) (*OrderResponse, error) {
	if err := s.adminCall(ctx, req.ID); err != nil {
		return nil, err
	}
	view, err := s.orders.UpdateStatus(ctx, req.ID, req.StatusName)
	if err != nil {
		return nil, s.fail("UpdateOrderStatus", err)
	}
	return &OrderResponse{Order: view}, nil
}

func (s *Server) DeleteOrder(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	if _, _, err := s.ownedOrder(ctx, "DeleteOrder", req.ID); err != nil {
		return nil, err
	}
	deleted, err := s.orders.Delete(ctx, req.ID)
	if err != nil {
		return nil, s.fail("DeleteOrder", err)
	}
	return &DeleteResponse{Deleted: deleted}, nil
}

func (s *Server) ownedOrder(ctx context.Context, method, id string) (order.View, authz.Caller, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return order.View{}, authz.Caller{}, err
	}
	if err := requireID(id, "order_id"); err != nil {
		return order.View{}, caller, err
	}
	view, err := s.orders.Get(ctx, id)
	if err != nil {
		return order.View{}, caller, s.fail(method, err)
	}
	return view, caller, allowOwner(caller, view.UserID)
}

// --- Return ---

func (s *Server) CreateReturn(ctx context.Context, req *CreateReturnRequest) (*ReturnResponse, error) {
	caller, userID, err := subject(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.StatusName != "" {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
	}
	// Владение заказом проверяет сам сервис, права администратора его не отменяют.
	view, err := s.returns.Create(ctx, returns.CreateInput{
		OrderID:    req.OrderID,
		UserID:     userID,
		Items:      req.Items,
		StatusName: req.StatusName,
	})
	if err != nil {
		return nil, s.fail("CreateReturn", err)
	}
	return &ReturnResponse{Return: view}, nil
}

func (s *Server) GetReturn(ctx context.Context, req *GetRequest) (*ReturnResponse, error) {
	view, _, err := s.ownedReturn(ctx, "GetReturn", req.ID)
	if err != nil {
		return nil, err
	}
	return &ReturnResponse{Return: view}, nil
}

func (s *Server) ListReturns(ctx context.Context, req *ListRequest) (*ReturnListResponse, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var views []returns.View
	if req.UserID == "" {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
		views, err = s.returns.List(ctx)
	} else {
		if err := allowOwner(caller, req.UserID); err != nil {
			return nil, err
		}
		views, err = s.returns.ListByUser(ctx, req.UserID)
	}
	if err != nil {
		return nil, s.fail("ListReturns", err)
	}
	return &ReturnListResponse{Returns: views}, nil
}

func (s *Server) UpdateReturn(ctx context.Context, req *UpdateReturnRequest) (*ReturnResponse, error) {
	_, caller, err := s.ownedReturn(ctx, "UpdateReturn", req.ReturnID)
	if err != nil {
		return nil, err
	}
	if req.StatusName != nil {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
	}
	view, err := s.returns.Update(ctx, req.ReturnID, returns.UpdateInput{
		Items:       req.Items,
		StatusName:  req.StatusName,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		return nil, s.fail("UpdateReturn", err)
	}
	return &ReturnResponse{Return: view}, nil
}

func (s *Server) UpdateReturnStatus(ctx context.Context, req *UpdateStatusRequest) (*ReturnResponse, error) {
	if err := s.adminCall(ctx, req.ID); err != nil {
		return nil, err
	}
	view, err := s.returns.UpdateStatus(ctx, req.ID, req.StatusName)
	if err != nil {
		return nil, s.fail("UpdateReturnStatus", err)
	}
	return &ReturnResponse{Return: view}, nil
}

func (s *Server) DeleteReturn(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	if _, _, err := s.ownedReturn(ctx, "DeleteReturn", req.ID); err != nil {
		return nil, err
	}
	deleted, err := s.returns.Delete(ctx, req.ID)
	if err != nil {
		return nil, s.fail("DeleteReturn", err)
	}
	return &DeleteResponse{Deleted: deleted}, nil
}

func (s *Server) ownedReturn(ctx context.Context, method, id string) (returns.View, authz.Caller, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return returns.View{}, authz.Caller{}, err
	}
	if err := requireID(id, "return_id"); err != nil {
		return returns.View{}, caller, err
	}
	view, err := s.returns.Get(ctx, id)
	if err != nil {
		return returns.View{}, caller, s.fail(method, err)
	}
	return view, caller, allowOwner(caller, view.UserID)
}

// --- Invoice ---

func (s *Server) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*InvoiceResponse, error) {
	caller, userID, err := subject(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.StatusName != "" {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
	}
	view, err := s.invoices.Create(ctx, invoice.CreateInput{
		OrderID:     req.OrderID,
		UserID:      userID,
		TotalAmount: req.TotalAmount,
		DueDate:     req.DueDate,
		StatusName:  req.StatusName,
	})
	if err != nil {
		return nil, s.fail("CreateInvoice", err)
	}
	return &InvoiceResponse{Invoice: view}, nil
}

func (s *Server) GetInvoice(ctx context.Context, req *GetRequest) (*InvoiceResponse, error) {
	view, _, err := s.ownedInvoice(ctx, "GetInvoice", req.ID)
	if err != nil {
		return nil, err
	}
	return &InvoiceResponse{Invoice: view}, nil
}

func (s *Server) ListInvoices(ctx context.Context, req *ListRequest) (*InvoiceListResponse, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var views []invoice.View
	if req.UserID == "" {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
		views, err = s.invoices.List(ctx)
	} else {
		if err := allowOwner(caller, req.UserID); err != nil {
			return nil, err
		}
		views, err = s.invoices.ListByUser(ctx, req.UserID)
	}
	if err != nil {
		return nil, s.fail("ListInvoices", err)
	}
	return &InvoiceListResponse{Invoices: views}, nil
}

func (s *Server) UpdateInvoice(ctx context.Context, req *UpdateInvoiceRequest) (*InvoiceResponse, error) {
	_, caller, err := s.ownedInvoice(ctx, "UpdateInvoice", req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if req.StatusName != nil {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
	}
	view, err := s.invoices.Update(ctx, req.InvoiceID, invoice.UpdateInput{
		TotalAmount: req.TotalAmount,
		DueDate:     req.DueDate,
		StatusName:  req.StatusName,
	})
	if err != nil {
		return nil, s.fail("UpdateInvoice", err)
	}
	return &InvoiceResponse{Invoice: view}, nil
}

func (s *Server) UpdateInvoiceStatus(ctx context.Context, req *UpdateStatusRequest) (*InvoiceResponse, error) {
	if err := s.adminCall(ctx, req.ID); err != nil {
		return nil, err
	}
	view, err := s.invoices.UpdateStatus(ctx, req.ID, req.StatusName)
	if err != nil {
		return nil, s.fail("UpdateInvoiceStatus", err)
	}
	return &InvoiceResponse{Invoice: view}, nil
}

func (s *Server) DeleteInvoice(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	if _, _, err := s.ownedInvoice(ctx, "DeleteInvoice", req.ID); err != nil {
		return nil, err
	}
	deleted, err := s.invoices.Delete(ctx, req.ID)
	if err != nil {
		return nil, s.fail("DeleteInvoice", err)
	}
	return &DeleteResponse{Deleted: deleted}, nil
}

func (s *Server) ownedInvoice(ctx context.Context, method, id string) (invoice.View, authz.Caller, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return invoice.View{}, authz.Caller{}, err
	}
	if err := requireID(id, "invoice_id"); err != nil {
		return invoice.View{}, caller, err
	}
	view, err := s.invoices.Get(ctx, id)
	if err != nil {
		return invoice.View{}, caller, s.fail(method, err)
	}
	return view, caller, allowOwner(caller, view.UserID)
}

func (s *Server) adminCall(ctx context.Context, id string) error {
	caller, err := callerFrom(ctx)
	if err != nil {
		return err
	}
	if err := requireAdmin(caller); err != nil {
		return err
	}
	return requireID(id, "id")
}
