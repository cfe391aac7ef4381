package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultOrderPageLimit = 20
	maxOrderPageLimit     = 100
	defaultTxTimeout      = 10 * time.Second
)

// OrderServiceConfig holds placement settings.
type OrderServiceConfig struct {
	Rules         pricing.Rules
	TxTimeout     time.Duration
	ReceiptPrefix string
	PaymentMethod string
}

// orderService implements OrderService.
type orderService struct {
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
	gateway       payment.Gateway
	publisher     events.Publisher
	metrics       *metrics.Metrics
	cfg           OrderServiceConfig
	logger        zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	inventoryRepo repository.InventoryRepository,
	gateway payment.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg OrderServiceConfig,
	logger zerolog.Logger,
) OrderService {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = defaultTxTimeout
	}
	if cfg.PaymentMethod == "" {
		cfg.PaymentMethod = "razorpay"
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &orderService{
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		gateway:       gateway,
		publisher:     publisher,
		metrics:       m,
		cfg:           cfg,
		logger:        logger.With().Str("service", "order").Logger(),
	}
}

// PlaceOrder runs the placement in three steps: price the cart from the
// catalogue, create the remote payment order, then reserve stock and persist
// the order in one bounded transaction. The gateway call stays outside the
// transaction so no row lock is held across network latency.
func (s *orderService) PlaceOrder(ctx context.Context, userID string, req *model.PlaceOrderRequest) (*model.PlaceOrderResponse, error) {
	if userID == "" {
		return nil, model.ErrUnauthorised
	}
	if req == nil {
		return nil, model.NewValidationError("request body is required")
	}
	if err := model.Validate(req); err != nil {
		s.metrics.PlacementFailed(metrics.ReasonValidation)
		return nil, err
	}

	lines, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		s.metrics.PlacementFailed(failureReason(err))
		return nil, err
	}

	quote := s.cfg.Rules.Quote(lines)

	remote, err := s.createRemoteOrder(ctx, userID, quote)
	if err != nil {
		s.metrics.PlacementFailed(metrics.ReasonGateway)
		return nil, err
	}

	order, err := s.persistOrder(ctx, userID, req.ShippingAddress, quote, remote)
	if err != nil {
		// The remote order is left to expire on the gateway side.
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("remote_order_id", remote.ID).
			Msg("order not persisted, remote order orphaned")
		s.metrics.PlacementFailed(failureReason(err))
		return nil, err
	}

	s.metrics.OrderPlaced(quote.Total.InexactFloat64())
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.TypeOrderPlaced, order, "", ""))

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("user_id", userID).
		Int("item_count", len(order.Items)).
		Str("total", order.Total.StringFixed(2)).
		Msg("order placed")

	return &model.PlaceOrderResponse{
		OrderID:   remote.ID,
		Amount:    remote.Amount,
		Currency:  remote.Currency,
		DBOrderID: order.ID,
	}, nil
}

// resolveLines reads every referenced product in one batch and binds the
// cart lines to catalogue data. Nothing is locked.
func (s *orderService) resolveLines(ctx context.Context, items []model.CartLine) ([]pricing.Line, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("product_count", len(ids)).Msg("failed to load products for pricing")
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			s.logger.Warn().Str("product_id", item.ProductID).Msg("cart references unknown product")
			return nil, productNotFound(item.ProductID)
		}

		line := pricing.Line{Product: product, Quantity: item.Quantity}
		if item.SizeID == nil && len(product.Sizes) > 0 {
			s.logger.Warn().Str("product_id", item.ProductID).Msg("cart line for sized product has no size")
			return nil, model.NewValidationError(fmt.Sprintf("Size is required for %s", product.Name))
		}
		if item.SizeID != nil {
			size, ok := product.Size(*item.SizeID)
			if !ok {
				s.logger.Warn().
					Str("product_id", item.ProductID).
					Str("size_id", *item.SizeID).
					Msg("cart references unknown size")
				return nil, model.NewDomainError(model.ErrCodeSizeNotFound,
					fmt.Sprintf("Size %s not found for product %s", *item.SizeID, product.Name))
			}
			sizeID := size.ID
			line.SizeID = &sizeID
			line.SizeName = size.Label
		}
		lines = append(lines, line)
	}

	return lines, nil
}

func (s *orderService) createRemoteOrder(ctx context.Context, userID string, quote pricing.Quote) (*payment.RemoteOrder, error) {
	start := time.Now()
	remote, err := s.gateway.CreateOrder(ctx, payment.CreateOrderRequest{
		AmountMinor: quote.MinorUnits(),
		Currency:    quote.Currency,
		Receipt:     s.cfg.ReceiptPrefix + strconv.FormatInt(start.UnixMilli(), 10),
		Metadata:    map[string]string{"userId": userID},
	})
	s.metrics.ObserveGateway(err, time.Since(start))

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Int64("amount", quote.MinorUnits()).
			Msg("failed to create remote payment order")
		return nil, model.NewGatewayError(err)
	}

	return remote, nil
}

func (s *orderService) persistOrder(
	ctx context.Context,
	userID string,
	input *model.ShippingAddressInput,
	quote pricing.Quote,
	remote *payment.RemoteOrder,
) (*model.Order, error) {
	now := time.Now().UTC()

	address := &model.ShippingAddress{
		ID:         uuid.New(),
		UserID:     userID,
		FullName:   input.FullName,
		Phone:      input.Phone,
		Street:     input.Street,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    input.Country,
		CreatedAt:  now,
	}

	order := &model.Order{
		ID:                uuid.New(),
		OrderNumber:       remote.ID,
		UserID:            userID,
		Status:            model.OrderStatusPending,
		PaymentStatus:     model.PaymentStatusPending,
		PaymentMethod:     s.cfg.PaymentMethod,
		Subtotal:          quote.Subtotal,
		Tax:               quote.Tax,
		Shipping:          quote.Shipping,
		Total:             quote.Total,
		ShippingAddressID: address.ID,
		ShippingAddress:   address,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	order.Items = make([]model.OrderItem, len(quote.Lines))
	for i, line := range quote.Lines {
		productID := line.Product.ID
		item := model.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    &productID,
			ProductName:  line.Product.Name,
			ProductImage: line.Product.PrimaryImage(),
			SizeID:       line.SizeID,
			Quantity:     line.Quantity,
			Price:        line.UnitPrice,
		}
		if line.SizeName != "" {
			sizeName := line.SizeName
			item.SizeName = &sizeName
		}
		order.Items[i] = item
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	err := withTx(txCtx, s.orderRepo.BeginTx, s.logger, func(tx pgx.Tx) error {
		for _, line := range quote.Lines {
			change := model.StockChange{
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				SizeID:      line.SizeID,
				SizeName:    line.SizeName,
				Quantity:    line.Quantity,
			}
			if err := s.inventoryRepo.Reserve(txCtx, tx, change); err != nil {
				return err
			}
		}

		if err := s.orderRepo.CreateShippingAddress(txCtx, tx, address); err != nil {
			return err
		}
		if err := s.orderRepo.CreateOrder(txCtx, tx, order); err != nil {
			return err
		}
		return s.orderRepo.CreateOrderItems(txCtx, tx, order.Items)
	})
	if err != nil {
		if model.ErrorCode(err) != model.ErrCodeInternalError {
			return nil, err
		}
		if isTimeout(ctx, txCtx, err) {
			s.logger.Error().Err(err).Dur("timeout", s.cfg.TxTimeout).Msg("order transaction timed out")
			return nil, model.WrapDomainError(model.ErrCodeTransactionTimeout, "Order transaction timed out", err)
		}
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to persist order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return order, nil
}

// isTimeout reports whether err came from the transaction deadline rather
// than the caller giving up.
func isTimeout(parent, txCtx context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(txCtx.Err(), context.DeadlineExceeded)
}

func failureReason(err error) string {
	switch model.ErrorCode(err) {
	case model.ErrCodeValidation:
		return metrics.ReasonValidation
	case model.ErrCodeProductNotFound, model.ErrCodeSizeNotFound:
		return metrics.ReasonNotFound
	case model.ErrCodeInsufficientStock:
		return metrics.ReasonStock
	case model.ErrCodeGateway:
		return metrics.ReasonGateway
	case model.ErrCodeTransactionTimeout:
		return metrics.ReasonTimeout
	default:
		return metrics.ReasonInternal
	}
}

// ListUserOrders returns the user's orders, newest first.
func (s *orderService) ListUserOrders(ctx context.Context, userID string) ([]model.Order, error) {
	if userID == "" {
		return nil, model.ErrUnauthorised
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list user orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}

	return orders, nil
}

// GetUserOrder returns an order only when it belongs to userID.
func (s *orderService) GetUserOrder(ctx context.Context, userID, orderNumber string) (*model.Order, error) {
	if userID == "" {
		return nil, model.ErrUnauthorised
	}

	order, err := s.orderRepo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		s.logger.Error().Err(err).Str("order_number", orderNumber).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	// Another user's order is reported as missing.
	if order == nil || order.UserID != userID {
		s.logger.Debug().Str("order_number", orderNumber).Str("user_id", userID).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	return order, nil
}

// ListOrders returns one page of orders for administrators.
func (s *orderService) ListOrders(ctx context.Context, filter model.OrderFilter) (*model.OrderPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultOrderPageLimit
	}
	if filter.Limit > maxOrderPageLimit {
		filter.Limit = maxOrderPageLimit
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).
			Int("page", filter.Page).
			Int("limit", filter.Limit).
			Str("search", filter.Search).
			Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit

	return &model.OrderPage{
		Orders: orders,
		Pagination: model.Pagination{
			Page:       filter.Page,
			Limit:      filter.Limit,
			TotalCount: total,
			TotalPages: totalPages,
			HasMore:    filter.Page < totalPages,
		},
	}, nil
}

// GetOrder returns any order by ID.
func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	return order, nil
}
