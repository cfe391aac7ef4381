package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

const (
	defaultProductLimit = 10
	maxProductLimit     = 100
	maxValidateIDs      = 500
)

// productService implements ProductService.
type productService struct {
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(productRepo repository.ProductRepository, logger zerolog.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		logger:      logger.With().Str("service", "product").Logger(),
	}
}

// GetAll lists the catalogue page by page. Out of range paging values are
// clamped rather than rejected.
func (s *productService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	limit, offset = catalogPage(limit, offset)
	log := s.logger.With().Int("limit", limit).Int("offset", offset).Logger()

	products, err := s.productRepo.GetAll(ctx, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("catalogue page read failed")
		return nil, fmt.Errorf("failed to list catalogue: %w", err)
	}

	log.Debug().Int("count", len(products)).Msg("catalogue page read")
	return products, nil
}

// GetByID returns one product with its sizes.
func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, productNotFound(id)
	}

	product, err := s.productRepo.GetByID(ctx, id)
	switch {
	case err != nil:
		s.logger.Error().Err(err).Str("product_id", id).Msg("product read failed")
		return nil, fmt.Errorf("failed to read product %s: %w", id, err)
	case product == nil:
		return nil, productNotFound(id)
	}
	return product, nil
}

func catalogPage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = defaultProductLimit
	case limit > maxProductLimit:
		limit = maxProductLimit
	}
	return limit, max(offset, 0)
}

// productNotFound is the 404 shared by catalogue reads and checkout pricing.
func productNotFound(id string) error {
	if id == "" {
		return model.ErrProductNotFound
	}
	return model.NewDomainError(model.ErrCodeProductNotFound, fmt.Sprintf("Product %s not found", id))
}

// ValidateIDs returns the subset of ids that still resolve to products, in request order.
func (s *productService) ValidateIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	if len(ids) > maxValidateIDs {
		return nil, model.NewValidationError(fmt.Sprintf("productIds must contain at most %d entries", maxValidateIDs))
	}

	valid, err := s.productRepo.ExistingIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to validate product IDs")
		return nil, fmt.Errorf("failed to validate products: %w", err)
	}
	if valid == nil {
		valid = []string{}
	}

	s.logger.Debug().
		Int("requested", len(ids)).
		Int("valid", len(valid)).
		Msg("validated product IDs")

	return valid, nil
}
