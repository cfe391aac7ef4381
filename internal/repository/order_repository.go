package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrDuplicateOrderNumber is returned when an order with the same remote order id already exists.
var ErrDuplicateOrderNumber = model.NewDomainError(model.ErrCodeStateConflict, "Order number already exists")

const orderSelect = `
	SELECT o.id, o.order_number, o.user_id, o.status, o.payment_status, o.payment_method, o.payment_id,
	       o.subtotal, o.tax, o.shipping, o.total, o.shipping_address_id, o.created_at, o.updated_at,
	       a.id, a.user_id, a.full_name, a.phone, a.street, a.city, a.state, a.postal_code, a.country, a.created_at
	FROM orders o
	JOIN addresses a ON a.id = o.shipping_address_id`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	db     beginner
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		db:     pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateShippingAddress inserts the address snapshot for a new order.
func (r *orderRepository) CreateShippingAddress(ctx context.Context, tx pgx.Tx, address *model.ShippingAddress) error {
	query := `
		INSERT INTO addresses (id, user_id, full_name, phone, street, city, state, postal_code, country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(ctx, query,
		address.ID, address.UserID, address.FullName, address.Phone, address.Street,
		address.City, address.State, address.PostalCode, address.Country, address.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", address.UserID).Msg("failed to create shipping address")
		return fmt.Errorf("failed to create shipping address: %w", err)
	}

	return nil
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (
			id, order_number, user_id, status, payment_status, payment_method, payment_id,
			subtotal, tax, shipping, total, shipping_address_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := tx.Exec(ctx, query,
		order.ID, order.OrderNumber, order.UserID, order.Status, order.PaymentStatus, order.PaymentMethod, order.PaymentID,
		order.Subtotal, order.Tax, order.Shipping, order.Total, order.ShippingAddressID, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn().Str("order_number", order.OrderNumber).Msg("duplicate order number")
			return ErrDuplicateOrderNumber
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, product_id, product_name, product_image, size_id, size_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query,
			item.ID, item.OrderID, item.ProductID, item.ProductName, item.ProductImage,
			item.SizeID, item.SizeName, item.Quantity, item.Price,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_name", items[i].ProductName).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// LockByID loads an order by ID and locks its row.
func (r *orderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, tx, orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id)
}

// LockByOrderNumber loads an order by remote order id and locks its row.
func (r *orderRepository) LockByOrderNumber(ctx context.Context, tx pgx.Tx, orderNumber string) (*model.Order, error) {
	return r.getOne(ctx, tx, orderSelect+` WHERE o.order_number = $1 FOR UPDATE OF o`, orderNumber)
}

// UpdateStatus writes a status/payment transition.
func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, update model.StatusUpdate) error {
	query := `
		UPDATE orders
		SET status = $2, payment_status = $3, payment_id = COALESCE($4, payment_id), updated_at = $5
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, update.OrderID, update.Status, update.PaymentStatus, update.PaymentID, update.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", update.OrderID.String()).Msg("failed to update order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	r.logger.Debug().
		Str("order_id", update.OrderID.String()).
		Str("status", string(update.Status)).
		Str("payment_status", string(update.PaymentStatus)).
		Msg("order status updated")

	return nil
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, r.db, orderSelect+` WHERE o.id = $1`, id)
}

// GetByOrderNumber retrieves an order by its remote order id.
func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.getOne(ctx, r.db, orderSelect+` WHERE o.order_number = $1`, orderNumber)
}

// ListByUser returns a user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := r.getMany(ctx, r.db, orderSelect+` WHERE o.user_id = $1 ORDER BY o.created_at DESC`, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list user orders")
		return nil, err
	}
	return orders, nil
}

// List returns one page of orders for the back office.
func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, int, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(o.order_number ILIKE $%d OR o.user_id ILIKE $%d OR a.full_name ILIKE $%d)", n, n, n))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM orders o JOIN addresses a ON a.id = o.shipping_address_id` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error().Err(err).Msg("failed to count orders")
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset())
	pageQuery := orderSelect + where +
		fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	orders, err := r.getMany(ctx, r.db, pageQuery, args...)
	if err != nil {
		r.logger.Error().Err(err).Int("page", filter.Page).Msg("failed to list orders")
		return nil, 0, err
	}

	return orders, total, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o model.Order
		a model.ShippingAddress
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.PaymentID,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Total, &o.ShippingAddressID, &o.CreatedAt, &o.UpdatedAt,
		&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Street, &a.City, &a.State, &a.PostalCode, &a.Country, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ShippingAddress = &a
	return &o, nil
}

func (r *orderRepository) getOne(ctx context.Context, q querier, query string, arg any) (*model.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Interface("key", arg).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Interface("key", arg).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := r.loadItems(ctx, q, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []model.OrderItem{}
	}

	return order, nil
}

func (r *orderRepository) getMany(ctx context.Context, q querier, query string, args ...any) ([]model.Order, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	items, err := r.loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []model.OrderItem{}
		}
	}

	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	itemsQuery := `
		SELECT id, order_id, product_id, product_name, product_image, size_id, size_name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, product_name, id
	`

	rows, err := q.Query(ctx, itemsQuery, orderIDs)
	if err != nil {
		r.logger.Error().Err(err).Int("orders", len(orderIDs)).Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductImage,
			&item.SizeID, &item.SizeName, &item.Quantity, &item.Price,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}
