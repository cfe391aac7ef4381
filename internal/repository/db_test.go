package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer with the schema migrated and returns a connection pool.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, connStr, zerolog.Nop()))

	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	poolConfig.MaxConns = 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

type seedProduct struct {
	id       string
	name     string
	price    string
	discount string
	stock    int
	sizes    []model.ProductSize
}

// seedProducts inserts products and their sizes.
func seedProducts(t *testing.T, pool *pgxpool.Pool, products []seedProduct) {
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
		require.NoError(t, err)

		for _, s := range p.sizes {
			_, err := pool.Exec(ctx,
				`INSERT INTO product_sizes (id, product_id, size, quantity) VALUES ($1, $2, $3, $4)`,
				s.ID, p.id, s.Label, s.Quantity,
			)
			require.NoError(t, err)
		}
	}
}

func productStock(t *testing.T, pool *pgxpool.Pool, id string) int {
	t.Helper()
	var stock int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock))
	return stock
}

func sizeQuantity(t *testing.T, pool *pgxpool.Pool, id string) int {
	t.Helper()
	var qty int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT quantity FROM product_sizes WHERE id = $1`, id).Scan(&qty))
	return qty
}

func strPtr(s string) *string { return &s }
