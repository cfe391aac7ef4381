package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Reservations are single conditional UPDATEs. The row lock taken by the
// UPDATE serialises concurrent reservations and the WHERE clause is
// re-evaluated against the committed row, so two transactions can never both
// see enough stock for the same unit.
const (
	reserveSizeQuery = `
		UPDATE product_sizes
		SET quantity = quantity - $3
		WHERE id = $1 AND product_id = $2 AND quantity >= $3
		RETURNING quantity`

	reserveProductQuery = `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING stock`

	releaseSizeQuery = `
		UPDATE product_sizes
		SET quantity = LEAST(quantity::bigint + $3, 2147483647)
		WHERE id = $1 AND product_id = $2`

	releaseProductQuery = `
		UPDATE products
		SET stock = LEAST(stock::bigint + $2, 2147483647)
		WHERE id = $1`
)

// inventoryRepository implements InventoryRepository using PostgreSQL.
type inventoryRepository struct {
	logger zerolog.Logger
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory ledger.
func NewInventoryRepository(logger zerolog.Logger) InventoryRepository {
	return &inventoryRepository{
		logger: logger.With().Str("repository", "inventory").Logger(),
	}
}

// Reserve decrements stock for one line.
func (r *inventoryRepository) Reserve(ctx context.Context, tx pgx.Tx, change model.StockChange) error {
	if change.Quantity <= 0 {
		return model.NewValidationError("reservation quantity must be greater than zero")
	}

	if change.SizeID != nil {
		var remaining int
		err := tx.QueryRow(ctx, reserveSizeQuery, *change.SizeID, change.ProductID, change.Quantity).Scan(&remaining)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return r.sizeShortfall(ctx, tx, change)
			}
			return fmt.Errorf("failed to reserve size stock: %w", err)
		}
	}

	var remaining int
	err := tx.QueryRow(ctx, reserveProductQuery, change.ProductID, change.Quantity).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.productShortfall(ctx, tx, change)
		}
		return fmt.Errorf("failed to reserve product stock: %w", err)
	}

	r.logger.Debug().
		Str("product_id", change.ProductID).
		Int("quantity", change.Quantity).
		Int("remaining", remaining).
		Msg("stock reserved")

	return nil
}

// Release increments stock for one line. Missing rows are skipped.
func (r *inventoryRepository) Release(ctx context.Context, tx pgx.Tx, change model.StockChange) (bool, error) {
	if change.Quantity <= 0 {
		return false, nil
	}

	if change.SizeID != nil {
		tag, err := tx.Exec(ctx, releaseSizeQuery, *change.SizeID, change.ProductID, change.Quantity)
		if err != nil {
			return false, fmt.Errorf("failed to release size stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			r.logger.Warn().
				Str("product_id", change.ProductID).
				Str("size_id", *change.SizeID).
				Msg("size no longer exists, skipping restoration")
			return false, nil
		}
	}

	tag, err := tx.Exec(ctx, releaseProductQuery, change.ProductID, change.Quantity)
	if err != nil {
		return false, fmt.Errorf("failed to release product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().Str("product_id", change.ProductID).Msg("product no longer exists, skipping restoration")
		return false, nil
	}

	return true, nil
}

func (r *inventoryRepository) sizeShortfall(ctx context.Context, tx pgx.Tx, change model.StockChange) error {
	var available int
	err := tx.QueryRow(ctx,
		`SELECT quantity FROM product_sizes WHERE id = $1 AND product_id = $2`,
		*change.SizeID, change.ProductID,
	).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NewDomainError(model.ErrCodeSizeNotFound,
				fmt.Sprintf("Size not found for product %s", change.ProductName))
		}
		return fmt.Errorf("failed to read size stock: %w", err)
	}

	r.logger.Info().
		Str("product_id", change.ProductID).
		Str("size_id", *change.SizeID).
		Int("requested", change.Quantity).
		Int("available", available).
		Msg("insufficient size stock")

	return &model.InsufficientStockError{
		ProductID:   change.ProductID,
		ProductName: change.ProductName,
		SizeID:      change.SizeID,
		SizeName:    change.SizeName,
		Available:   available,
		Requested:   change.Quantity,
	}
}

func (r *inventoryRepository) productShortfall(ctx context.Context, tx pgx.Tx, change model.StockChange) error {
	var available int
	err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, change.ProductID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NewDomainError(model.ErrCodeProductNotFound,
				fmt.Sprintf("Product %s not found", change.ProductID))
		}
		return fmt.Errorf("failed to read product stock: %w", err)
	}

	r.logger.Info().
		Str("product_id", change.ProductID).
		Int("requested", change.Quantity).
		Int("available", available).
		Msg("insufficient product stock")

	return &model.InsufficientStockError{
		ProductID:   change.ProductID,
		ProductName: change.ProductName,
		SizeID:      change.SizeID,
		SizeName:    change.SizeName,
		Available:   available,
		Requested:   change.Quantity,
	}
}
