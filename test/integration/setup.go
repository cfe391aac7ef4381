package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAPIKey    = "test-api-key"
	testJWTSecret = "integration-jwt-secret"
	testJWTIssuer = "storefront-identity"
	testPaySecret = "rzp_test_integration_secret"
	testTxTimeout = 10 * time.Second
	shopperUserID = "user-alice"
	otherUserID   = "user-bob"
)

// TestDB represents a migrated PostgreSQL test instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, applies the migrations and
// returns a connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := database.Migrate(ctx, connStr, zerolog.Nop()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	poolConfig.MaxConns = 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// TestServer is the full HTTP stack wired against a test database.
type TestServer struct {
	Handler  http.Handler
	Gateway  *payment.FakeGateway
	Verifier *payment.SignatureVerifier
	Registry *prometheus.Registry
}

// SetupTestServer wires repositories, services, handlers and the router the
// same way cmd/api does, with a fake payment gateway.
func SetupTestServer(t *testing.T, testDB *TestDB) *TestServer {
	t.Helper()

	logger := zerolog.Nop()
	gateway := payment.NewFakeGateway()
	verifier := payment.NewSignatureVerifier(testPaySecret)
	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	rules := pricing.DefaultRules(config.CheckoutConfig{
		TaxRate:               0.10,
		FreeShippingThreshold: 50,
		FlatShippingCost:      10,
	}, "INR")

	productRepo := repository.NewProductRepository(testDB.Pool, logger)
	orderRepo := repository.NewOrderRepository(testDB.Pool, logger)
	inventoryRepo := repository.NewInventoryRepository(logger)

	productService := service.NewProductService(productRepo, logger)
	orderService := service.NewOrderService(orderRepo, productRepo, inventoryRepo, gateway, nil, m,
		service.OrderServiceConfig{Rules: rules, TxTimeout: testTxTimeout, ReceiptPrefix: "order_"}, logger)
	reconciliationService := service.NewReconciliationService(orderRepo, inventoryRepo, verifier, nil, m, logger)

	mux := router.New(router.Handlers{
		Product: handler.NewProductHandler(productService, logger),
		Order:   handler.NewOrderHandler(orderService, reconciliationService, logger),
		Payment: handler.NewPaymentHandler(reconciliationService, logger),
		Admin:   handler.NewAdminHandler(orderService, reconciliationService, logger),
	}, router.Options{
		APIKey:      testAPIKey,
		JWTSecret:   testJWTSecret,
		JWTIssuer:   testJWTIssuer,
		Metrics:     m,
		Gatherer:    registry,
		HealthCheck: testDB.Pool.Ping,
	}, logger)

	return &TestServer{Handler: mux, Gateway: gateway, Verifier: verifier, Registry: registry}
}

type seedSize struct {
	id       string
	label    string
	quantity int
}

type seedProduct struct {
	id       string
	name     string
	price    string
	discount string
	stock    int
	sizes    []seedSize
}

// SeedCatalog inserts products and their sizes.
func SeedCatalog(t *testing.T, pool *pgxpool.Pool, products ...seedProduct) {
	t.Helper()

	ctx := context.Background()

	for _, p := range products {
		discount := p.discount
		if discount == "" {
			discount = "0"
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, price, discount, stock, images, category)
			VALUES ($1, $2, $3, $4, $5, $6, 'apparel')`,
			p.id, p.name, decimal.RequireFromString(p.price), decimal.RequireFromString(discount), p.stock,
			[]string{"https://cdn.example.com/" + p.id + ".jpg"},
		)
		require.NoError(t, err, "seed product %s", p.id)

		for _, s := range p.sizes {
			_, err := pool.Exec(ctx,
				`INSERT INTO product_sizes (id, product_id, size, quantity) VALUES ($1, $2, $3, $4)`,
				s.id, p.id, s.label, s.quantity,
			)
			require.NoError(t, err, "seed size %s", s.id)
		}
	}
}

// CleanupDB removes all rows from the test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`TRUNCATE order_items, orders, addresses, product_sizes, products CASCADE`)
	require.NoError(t, err)
}

// ProductStock returns the aggregate stock column of a product.
func ProductStock(t *testing.T, pool *pgxpool.Pool, id string) int {
	t.Helper()
	var stock int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock))
	return stock
}

// SizeQuantity returns the quantity of a product size.
func SizeQuantity(t *testing.T, pool *pgxpool.Pool, id string) int {
	t.Helper()
	var qty int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT quantity FROM product_sizes WHERE id = $1`, id).Scan(&qty))
	return qty
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

type apiRequest struct {
	method string
	path   string
	body   interface{}
	user   string
	apiKey string
}

// do sends req through the server and returns the recorded response.
func (s *TestServer) do(t *testing.T, req apiRequest) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if req.body != nil {
		switch b := req.body.(type) {
		case string:
			body.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&body).Encode(b))
		}
	}

	r := httptest.NewRequest(req.method, req.path, &body)
	r.Header.Set("Content-Type", "application/json")
	if req.user != "" {
		token, err := middleware.SignToken(testJWTSecret, testJWTIssuer, req.user, time.Hour)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if req.apiKey != "" {
		r.Header.Set("X-API-Key", req.apiKey)
	}

	w := httptest.NewRecorder()
	s.Handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func checkoutRequest(lines ...model.CartLine) model.PlaceOrderRequest {
	return model.PlaceOrderRequest{
		Items: lines,
		ShippingAddress: &model.ShippingAddressInput{
			FullName:   "Alice Shopper",
			Phone:      "+91-9000000000",
			Street:     "1 Residency Road",
			City:       "Bengaluru",
			State:      "KA",
			PostalCode: "560025",
			Country:    "IN",
		},
	}
}

func strPtr(s string) *string { return &s }
