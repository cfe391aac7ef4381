package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// reconciliationService implements ReconciliationService.
type reconciliationService struct {
	orderRepo     repository.OrderRepository
	inventoryRepo repository.InventoryRepository
	verifier      SignatureVerifier
	publisher     events.Publisher
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// NewReconciliationService creates a new reconciliation service.
func NewReconciliationService(
	orderRepo repository.OrderRepository,
	inventoryRepo repository.InventoryRepository,
	verifier SignatureVerifier,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) ReconciliationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &reconciliationService{
		orderRepo:     orderRepo,
		inventoryRepo: inventoryRepo,
		verifier:      verifier,
		publisher:     publisher,
		metrics:       m,
		logger:        logger.With().Str("service", "reconciliation").Logger(),
	}
}

// VerifyPayment is the only path that marks a payment completed. The
// signature is checked before any read so a forged callback never touches
// order state.
func (s *reconciliationService) VerifyPayment(ctx context.Context, userID string, req *model.VerifyPaymentRequest) (*model.VerifyPaymentResponse, error) {
	if req == nil {
		return nil, model.NewValidationError("request body is required")
	}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	if !s.verifier.Verify(req.RemoteOrderID, req.RemotePaymentID, req.Signature) {
		s.logger.Warn().
			Str("user_id", userID).
			Str("remote_order_id", req.RemoteOrderID).
			Msg("payment signature mismatch")
		s.metrics.PaymentVerified(metrics.ResultInvalid)
		return nil, model.ErrInvalidSignature
	}

	var (
		order       *model.Order
		previous    model.OrderStatus
		alreadyPaid bool
	)

	err := withTx(ctx, s.orderRepo.BeginTx, s.logger, func(tx pgx.Tx) error {
		var err error
		order, err = s.orderRepo.LockByOrderNumber(ctx, tx, req.RemoteOrderID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if order == nil {
			return model.NewDomainError(model.ErrCodeOrderNotFound,
				fmt.Sprintf("Order %s not found", req.RemoteOrderID))
		}

		previous = order.Status
		switch {
		case order.PaymentStatus == model.PaymentStatusCompleted:
			alreadyPaid = true
			return nil
		case order.Status == model.OrderStatusCancelled:
			return model.NewDomainError(model.ErrCodeStateConflict,
				fmt.Sprintf("Order %s is cancelled", order.OrderNumber))
		}

		// Only a pending order moves to confirmed; later fulfilment states are kept.
		status := order.Status
		if status == model.OrderStatusPending {
			status = model.OrderStatusConfirmed
		}
		paymentID := req.RemotePaymentID
		update := model.StatusUpdate{
			OrderID:       order.ID,
			Status:        status,
			PaymentStatus: model.PaymentStatusCompleted,
			PaymentID:     &paymentID,
			UpdatedAt:     time.Now().UTC(),
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, update); err != nil {
			return err
		}

		order.Status = update.Status
		order.PaymentStatus = update.PaymentStatus
		order.PaymentID = update.PaymentID
		order.UpdatedAt = update.UpdatedAt
		return nil
	})
	if err != nil {
		if model.ErrorCode(err) == model.ErrCodeStateConflict {
			s.metrics.PaymentVerified(metrics.ResultConflict)
		}
		s.logger.Warn().Err(err).Str("remote_order_id", req.RemoteOrderID).Msg("payment verification failed")
		return nil, err
	}

	if alreadyPaid {
		s.metrics.PaymentVerified(metrics.ResultAlreadyPaid)
		s.logger.Info().Str("order_number", order.OrderNumber).Msg("payment already verified")
	} else {
		s.metrics.PaymentVerified(metrics.ResultVerified)
		publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.TypeOrderPaid, order, previous, ""))
		s.logger.Info().
			Str("order_id", order.ID.String()).
			Str("order_number", order.OrderNumber).
			Str("payment_id", req.RemotePaymentID).
			Msg("payment verified")
	}

	return &model.VerifyPaymentResponse{
		Success: true,
		Order: model.VerifiedOrder{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			Total:       order.Total,
		},
	}, nil
}

// UpdateStatus applies an administrator status change. Moving into
// cancelled restores stock in the same transaction.
func (s *reconciliationService) UpdateStatus(ctx context.Context, id uuid.UUID, raw string) (*model.Order, error) {
	status, ok := model.ParseOrderStatus(raw)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("Invalid status %q", raw))
	}

	return s.transition(ctx, metrics.TriggerAdmin, status,
		func(tx pgx.Tx) (*model.Order, error) {
			order, err := s.orderRepo.LockByID(ctx, tx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to lock order: %w", err)
			}
			if order == nil {
				return nil, model.ErrOrderNotFound
			}
			return order, nil
		},
		func(order *model.Order) error {
			if order.Status.IsTerminal() {
				return model.NewDomainError(model.ErrCodeStateConflict,
					fmt.Sprintf("Order %s is %s and cannot move to %s", order.OrderNumber, order.Status, status))
			}
			return nil
		},
	)
}

// CancelOrder lets a user cancel their own order while it is pending or confirmed.
func (s *reconciliationService) CancelOrder(ctx context.Context, userID, orderNumber string) (*model.Order, error) {
	if userID == "" {
		return nil, model.ErrUnauthorised
	}

	return s.transition(ctx, metrics.TriggerUser, model.OrderStatusCancelled,
		func(tx pgx.Tx) (*model.Order, error) {
			order, err := s.orderRepo.LockByOrderNumber(ctx, tx, orderNumber)
			if err != nil {
				return nil, fmt.Errorf("failed to lock order: %w", err)
			}
			if order == nil || order.UserID != userID {
				return nil, model.ErrOrderNotFound
			}
			return order, nil
		},
		func(order *model.Order) error {
			if !order.Status.UserCancellable() {
				return model.NewDomainError(model.ErrCodeStateConflict,
					fmt.Sprintf("Order %s is %s and can no longer be cancelled", order.OrderNumber, order.Status))
			}
			return nil
		},
	)
}

// transition locks an order, checks it may move to target and writes the
// change. Cancelling an already cancelled order is a no-op.
func (s *reconciliationService) transition(
	ctx context.Context,
	trigger string,
	target model.OrderStatus,
	lock func(tx pgx.Tx) (*model.Order, error),
	allowed func(order *model.Order) error,
) (*model.Order, error) {
	var (
		order    *model.Order
		previous model.OrderStatus
		restored int
		noop     bool
	)

	err := withTx(ctx, s.orderRepo.BeginTx, s.logger, func(tx pgx.Tx) error {
		var err error
		order, err = lock(tx)
		if err != nil {
			return err
		}

		previous = order.Status
		if target == model.OrderStatusCancelled && previous == model.OrderStatusCancelled {
			noop = true
			return nil
		}
		if err := allowed(order); err != nil {
			return err
		}

		update := model.StatusUpdate{
			OrderID:       order.ID,
			Status:        target,
			PaymentStatus: order.PaymentStatus,
			UpdatedAt:     time.Now().UTC(),
		}
		if target == model.OrderStatusCancelled {
			restored, err = s.restoreStock(ctx, tx, order)
			if err != nil {
				return err
			}
			update.PaymentStatus = order.PaymentStatus.PaymentStatusOnCancel()
		}

		if err := s.orderRepo.UpdateStatus(ctx, tx, update); err != nil {
			return err
		}

		order.Status = update.Status
		order.PaymentStatus = update.PaymentStatus
		order.UpdatedAt = update.UpdatedAt
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("trigger", trigger).Str("target", string(target)).Msg("status change failed")
		return nil, err
	}

	if noop {
		s.logger.Debug().Str("order_id", order.ID.String()).Msg("order already cancelled")
		return order, nil
	}

	eventType := events.TypeOrderStatusChanged
	if target == model.OrderStatusCancelled {
		eventType = events.TypeOrderCancelled
		s.metrics.OrderCancelled(trigger, restored)
	}
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(eventType, order, previous, trigger))

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("from", string(previous)).
		Str("to", string(target)).
		Str("trigger", trigger).
		Int("restored_units", restored).
		Msg("order status changed")

	return order, nil
}

// restoreStock puts every line back on the shelf. Lines whose product or
// size has since been deleted are skipped.
func (s *reconciliationService) restoreStock(ctx context.Context, tx pgx.Tx, order *model.Order) (int, error) {
	restored := 0
	for _, item := range order.Items {
		if item.ProductID == nil {
			s.logger.Info().Str("order_id", order.ID.String()).Str("product", item.ProductName).
				Msg("product deleted, skipping restoration")
			continue
		}
		if item.SizeID == nil && item.SizeName != nil {
			s.logger.Info().Str("order_id", order.ID.String()).Str("product_id", *item.ProductID).
				Msg("size deleted, skipping restoration")
			continue
		}

		change := model.StockChange{
			ProductID:   *item.ProductID,
			ProductName: item.ProductName,
			SizeID:      item.SizeID,
			Quantity:    item.Quantity,
		}
		if item.SizeName != nil {
			change.SizeName = *item.SizeName
		}

		ok, err := s.inventoryRepo.Release(ctx, tx, change)
		if err != nil {
			return 0, fmt.Errorf("failed to restore stock for %s: %w", item.ProductName, err)
		}
		if ok {
			restored += item.Quantity
		}
	}
	return restored, nil
}
