package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/events"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// withTx runs fn inside a transaction and commits when fn succeeds.
// Rollback runs on a context detached from ctx so an expired deadline
// still releases the row locks.
func withTx(ctx context.Context, begin func(context.Context) (pgx.Tx, error), logger zerolog.Logger, fn func(tx pgx.Tx) error) error {
	tx, err := begin(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		rollback(ctx, tx, logger)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		rollback(ctx, tx, logger)
		logger.Error().Err(err).Msg("failed to commit transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func rollback(ctx context.Context, tx pgx.Tx, logger zerolog.Logger) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error().Err(err).Msg("failed to rollback transaction")
	}
}

// publish delivers an event after commit. Failures are logged only.
func publish(ctx context.Context, publisher events.Publisher, logger zerolog.Logger, event events.OrderEvent) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn().
			Err(err).
			Str("event", event.Type).
			Str("order_id", event.OrderID.String()).
			Msg("failed to publish order event")
	}
}
