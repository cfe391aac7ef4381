package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Placement failure reasons.
const (
	ReasonValidation = "validation"
	ReasonNotFound   = "not_found"
	ReasonStock      = "insufficient_stock"
	ReasonGateway    = "gateway"
	ReasonTimeout    = "timeout"
	ReasonInternal   = "internal"
)

// Payment verification results.
const (
	ResultVerified    = "verified"
	ResultInvalid     = "invalid_signature"
	ResultAlreadyPaid = "already_paid"
	ResultConflict    = "conflict"
)

// Cancellation triggers.
const (
	TriggerUser  = "user"
	TriggerAdmin = "admin"
)

const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	unknownLabelValue = "unknown"
)

// Metrics holds the business and HTTP collectors of the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ordersPlaced      prometheus.Counter
	placementFailures *prometheus.CounterVec
	stockRejections   prometheus.Counter
	verifications     *prometheus.CounterVec
	cancellations     *prometheus.CounterVec
	restoredUnits     prometheus.Counter
	orderValue        prometheus.Histogram
	gatewayLatency    *prometheus.HistogramVec
	httpDuration      *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &Metrics{
		ordersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders persisted in pending state.",
		}),
		placementFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placement_failures_total",
			Help:      "Order placements that did not persist an order.",
		}, []string{"reason"}),
		stockRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "stock_rejections_total",
			Help:      "Reservations rejected for insufficient stock.",
		}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "verifications_total",
			Help:      "Payment verification attempts by result.",
		}, []string{"result"}),
		cancellations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "cancellations_total",
			Help:      "Orders moved into cancelled.",
		}, []string{"trigger"}),
		restoredUnits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "restored_units_total",
			Help:      "Units returned to stock by cancellations.",
		}),
		orderValue: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "value",
			Help:      "Order totals in major currency units.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		gatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "gateway_duration_seconds",
			Help:      "Latency of remote payment order creation.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route", "status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
	}
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// OrderPlaced records a persisted order and its total.
func (m *Metrics) OrderPlaced(total float64) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.orderValue.Observe(total)
}

// PlacementFailed records a placement that stopped before commit.
func (m *Metrics) PlacementFailed(reason string) {
	if m == nil {
		return
	}
	m.placementFailures.WithLabelValues(normalizeLabel(reason)).Inc()
	if reason == ReasonStock {
		m.stockRejections.Inc()
	}
}

// PaymentVerified records the result of a verification attempt.
func (m *Metrics) PaymentVerified(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(result)).Inc()
}

// OrderCancelled records a cancellation and the units it put back.
func (m *Metrics) OrderCancelled(trigger string, restored int) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(normalizeLabel(trigger)).Inc()
	m.restoredUnits.Add(float64(restored))
}

// ObserveGateway records one gateway call.
func (m *Metrics) ObserveGateway(err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	m.gatewayLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveHTTP records one served request. route is the matched route pattern.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return unknownLabelValue
	}
	return v
}
