package pricing

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Loader loads a pricing rules document and merges it over base rules.
type Loader interface {
	Load(ctx context.Context, path string) (Rules, error)
}

// fileLoader implements Loader for rules documents on the local file system.
type fileLoader struct {
	base   Rules
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based rules loader.
func NewFileLoader(base Rules, logger zerolog.Logger) Loader {
	return &fileLoader{
		base:   base,
		logger: logger.With().Str("component", "pricing-loader").Logger(),
	}
}

// Load reads a YAML rules file.
func (l *fileLoader) Load(ctx context.Context, path string) (Rules, error) {
	if err := ctx.Err(); err != nil {
		return Rules{}, err
	}

	l.logger.Info().Str("file", path).Msg("loading pricing rules")

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open pricing rules")
		return Rules{}, fmt.Errorf("failed to open pricing rules %s: %w", path, err)
	}
	defer file.Close()

	rules, err := ParseRules(file, l.base)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("invalid pricing rules")
		return Rules{}, fmt.Errorf("pricing rules %s: %w", path, err)
	}

	l.logger.Info().
		Str("file", path).
		Str("tax_rate", rules.TaxRate.String()).
		Str("free_shipping_threshold", rules.FreeShippingThreshold.String()).
		Str("flat_shipping_cost", rules.FlatShippingCost.String()).
		Msg("pricing rules loaded")

	return rules, nil
}

// fallbackLoader tries S3 first, then the local file system.
type fallbackLoader struct {
	s3Loader   Loader
	fileLoader Loader
	s3Prefix   string
	s3Enabled  bool
	logger     zerolog.Logger
}

// NewFallbackLoader creates a loader that tries S3 first, then falls back to local file system.
// If s3Loader is nil, it will only use the file loader.
func NewFallbackLoader(s3Loader, fileLoader Loader, s3Prefix string, s3Enabled bool, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		s3Loader:   s3Loader,
		fileLoader: fileLoader,
		s3Prefix:   s3Prefix,
		s3Enabled:  s3Enabled,
		logger:     logger.With().Str("component", "pricing-fallback-loader").Logger(),
	}
}

// Load prepends the S3 prefix for the remote attempt and uses path as-is locally.
func (l *fallbackLoader) Load(ctx context.Context, path string) (Rules, error) {
	if l.s3Enabled && l.s3Loader != nil {
		key := l.s3Prefix + path

		rules, err := l.s3Loader.Load(ctx, key)
		if err == nil {
			return rules, nil
		}

		l.logger.Warn().
			Err(err).
			Str("s3_key", key).
			Msg("failed to load pricing rules from S3, falling back to local file system")
	}

	return l.fileLoader.Load(ctx, path)
}
