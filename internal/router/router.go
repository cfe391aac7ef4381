package router

import (
	"context"
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/idempotency"
	"storefront/internal/metrics"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Product *handler.ProductHandler
	Order   *handler.OrderHandler
	Payment *handler.PaymentHandler
	Admin   *handler.AdminHandler
}

// Options carries the cross-cutting dependencies of the router.
type Options struct {
	APIKey    string
	JWTSecret string
	JWTIssuer string

	// Idempotency is nil when Redis is not configured.
	Idempotency *idempotency.Guard
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer

	// HealthCheck reports whether dependencies are reachable. Optional.
	HealthCheck func(ctx context.Context) error
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery sits inside RequestID so panics still report the id.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.CORS)

	r.Get("/health", health(opts.HealthCheck))
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(opts.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.Product.GetAll)
		r.Get("/products/{id}", h.Product.GetByID)
		r.Post("/products/validate", h.Product.Validate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(opts.JWTSecret, opts.JWTIssuer, logger))

			r.With(middleware.Idempotency(opts.Idempotency, "create-order", logger)).
				Post("/orders", h.Order.Create)
			r.Get("/orders", h.Order.List)
			r.Get("/orders/{orderNumber}", h.Order.Get)
			r.Post("/orders/{orderNumber}/cancel", h.Order.Cancel)

			r.Post("/payments/verify", h.Payment.Verify)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(opts.APIKey, logger))

			r.Get("/orders", h.Admin.ListOrders)
			r.Get("/orders/{id}", h.Admin.GetOrder)
			r.Patch("/orders/{id}", h.Admin.UpdateStatus)
		})
	})

	return r
}

func health(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			if err := check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status": "unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "healthy"}`))
	}
}
