package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handler"
	"storefront/internal/idempotency"
	"storefront/internal/metrics"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Closers run in reverse order on exit; their errors are joined into err.
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Database.ConnectionString(), logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	rules, err := loadPricingRules(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to load pricing rules: %w", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		closers = append(closers, natsPublisher)
		publisher = natsPublisher
	} else {
		logger.Info().Msg("NATS not configured, order events are discarded")
	}

	var guard *idempotency.Guard
	if cfg.Redis.URL != "" {
		store, err := idempotency.NewRedisStore(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		closers = append(closers, store)
		if guard, err = idempotency.NewGuard(store, cfg.Redis.IdempotencyTTL); err != nil {
			return fmt.Errorf("failed to initialize idempotency guard: %w", err)
		}
	} else {
		logger.Info().Msg("Redis not configured, Idempotency-Key is ignored")
	}

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	// Repositories
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	inventoryRepo := repository.NewInventoryRepository(logger)

	// Services
	gateway := payment.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret, logger)
	verifier := payment.NewSignatureVerifier(cfg.Payment.KeySecret)

	productService := service.NewProductService(productRepo, logger)
	orderService := service.NewOrderService(orderRepo, productRepo, inventoryRepo, gateway, publisher, m,
		service.OrderServiceConfig{
			Rules:         rules,
			TxTimeout:     cfg.Checkout.TxTimeout,
			ReceiptPrefix: cfg.Payment.ReceiptPrefix,
		}, logger)
	reconciliationService := service.NewReconciliationService(orderRepo, inventoryRepo, verifier, publisher, m, logger)

	mux := router.New(router.Handlers{
		Product: handler.NewProductHandler(productService, logger),
		Order:   handler.NewOrderHandler(orderService, reconciliationService, logger),
		Payment: handler.NewPaymentHandler(reconciliationService, logger),
		Admin:   handler.NewAdminHandler(orderService, reconciliationService, logger),
	}, router.Options{
		APIKey:      cfg.Auth.APIKey,
		JWTSecret:   cfg.Auth.JWTSecret,
		JWTIssuer:   cfg.Auth.JWTIssuer,
		Idempotency: guard,
		Metrics:     m,
		Gatherer:    registry,
		HealthCheck: pool.Ping,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			return multierr.Append(fmt.Errorf("server shutdown failed: %w", err), server.Close())
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// loadPricingRules starts from the configured checkout values and, when a
// rules document is configured, overlays it (S3 first, local file second).
func loadPricingRules(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (pricing.Rules, error) {
	base := pricing.DefaultRules(cfg.Checkout, cfg.Payment.Currency)
	if cfg.Checkout.RulesPath == "" {
		logger.Info().Msg("using pricing rules from environment")
		return base, nil
	}

	fileLoader := pricing.NewFileLoader(base, logger)
	var s3Loader pricing.Loader
	if cfg.S3.Enabled {
		var err error
		s3Loader, err = pricing.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, base, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		}
	}

	loader := pricing.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, cfg.S3.Enabled, logger)
	rules, err := loader.Load(ctx, cfg.Checkout.RulesPath)
	if err != nil {
		return pricing.Rules{}, err
	}

	logger.Info().
		Str("tax_rate", rules.TaxRate.String()).
		Str("free_shipping_threshold", rules.FreeShippingThreshold.String()).
		Str("flat_shipping_cost", rules.FlatShippingCost.String()).
		Str("currency", rules.Currency).
		Msg("pricing rules loaded")
	return rules, nil
}
