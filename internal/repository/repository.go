package repository

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines the interface for catalogue read operations.
type ProductRepository interface {
	// GetAll retrieves products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product with its sizes. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products with their sizes in one batch read.
	// Missing IDs are simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)

	// ExistingIDs returns the subset of ids that resolve to products.
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

// InventoryRepository mutates stock. Every call runs inside the caller's transaction.
type InventoryRepository interface {
	// Reserve atomically decrements the size row (when present) and the parent
	// product stock. Returns *model.InsufficientStockError when unavailable.
	Reserve(ctx context.Context, tx pgx.Tx, change model.StockChange) error

	// Release atomically increments stock, saturating instead of failing.
	// Returns false when the target rows no longer exist.
	Release(ctx context.Context, tx pgx.Tx, change model.StockChange) (bool, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateShippingAddress inserts the per-order address snapshot.
	CreateShippingAddress(ctx context.Context, tx pgx.Tx, address *model.ShippingAddress) error

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// LockByID loads an order with its items and holds a row lock until the transaction ends.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// LockByOrderNumber is LockByID keyed on the remote order id.
	LockByOrderNumber(ctx context.Context, tx pgx.Tx, orderNumber string) (*model.Order, error)

	// UpdateStatus writes a status/payment transition.
	UpdateStatus(ctx context.Context, tx pgx.Tx, update model.StatusUpdate) error

	// GetByID retrieves an order with items and shipping address. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetByOrderNumber retrieves an order by its remote order id. Returns nil when absent.
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// ListByUser returns a user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)

	// List returns one page of orders matching filter together with the total match count.
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, int, error)
}
