package service

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// ProductService defines catalogue read operations.
type ProductService interface {
	// GetAll retrieves all products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// ValidateIDs returns the subset of ids that still resolve to products.
	ValidateIDs(ctx context.Context, ids []string) ([]string, error)
}

// OrderService places orders and serves order queries.
type OrderService interface {
	// PlaceOrder prices the cart, creates the remote payment order and
	// persists a pending order with its stock reserved.
	PlaceOrder(ctx context.Context, userID string, req *model.PlaceOrderRequest) (*model.PlaceOrderResponse, error)

	// ListUserOrders returns the user's orders, newest first.
	ListUserOrders(ctx context.Context, userID string) ([]model.Order, error)

	// GetUserOrder returns one of the user's orders by order number.
	GetUserOrder(ctx context.Context, userID, orderNumber string) (*model.Order, error)

	// ListOrders returns one page of orders for administrators.
	ListOrders(ctx context.Context, filter model.OrderFilter) (*model.OrderPage, error)

	// GetOrder returns any order by ID.
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
}

// ReconciliationService moves orders after placement: payment verification
// and status changes, including cancellation with stock restoration.
type ReconciliationService interface {
	// VerifyPayment checks the gateway signature and marks the order paid.
	VerifyPayment(ctx context.Context, userID string, req *model.VerifyPaymentRequest) (*model.VerifyPaymentResponse, error)

	// UpdateStatus applies an administrator status change.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error)

	// CancelOrder cancels one of the user's orders.
	CancelOrder(ctx context.Context, userID, orderNumber string) (*model.Order, error)
}

// SignatureVerifier checks payment callback signatures.
type SignatureVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}
