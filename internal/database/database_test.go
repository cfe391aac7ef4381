package database

import (
	"context"
	"testing"
	"time"

	"storefront/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestNewPool_InvalidConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:           "localhost",
		Port:           5432,
		User:           "postgres",
		Database:       "storefront",
		SSLMode:        "not-a-mode",
		MaxConnections: 1,
		MinConnections: 1,
	}

	pool, err := NewPool(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Contains(t, err.Error(), "failed to parse database config")
}

func TestNewPool_Unreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool, err := NewPool(ctx, config.DatabaseConfig{
		Host:           "127.0.0.1",
		Port:           1,
		User:           "postgres",
		Database:       "storefront",
		SSLMode:        "disable",
		MaxConnections: 1,
		MinConnections: 1,
	}, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestMigrate(t *testing.T) {
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
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, connStr, zerolog.Nop()))
	// Re-running is a no-op.
	require.NoError(t, Migrate(ctx, connStr, zerolog.Nop()))

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "postgres",
		Password:        "postgres",
		Database:        "testdb",
		SSLMode:         "disable",
		MaxConnections:  4,
		MinConnections:  1,
		MaxConnLifetime: 60,
	}, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()

	var appName, lockTimeout string
	require.NoError(t, pool.QueryRow(ctx, "SHOW application_name").Scan(&appName))
	require.NoError(t, pool.QueryRow(ctx, "SHOW lock_timeout").Scan(&lockTimeout))
	assert.Equal(t, "storefront", appName)
	assert.Equal(t, "5s", lockTimeout)

	for _, table := range []string{"products", "product_sizes", "addresses", "orders", "order_items"} {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}

	_, err = pool.Exec(ctx, "INSERT INTO products (id, name, price, stock) VALUES ('neg', 'Negative', 1, -1)")
	assert.Error(t, err, "stock check constraint should reject negative stock")
}
