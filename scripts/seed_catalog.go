//go:build ignore

// Seeds a local database with a small catalogue.
//
//	go run scripts/seed_catalog.go
package main

import (
	"context"
	"fmt"
	"os"

	"storefront/internal/config"
	"storefront/internal/database"

	"github.com/shopspring/decimal"
)

type size struct {
	id       string
	label    string
	quantity int
}

type product struct {
	id       string
	name     string
	price    string
	discount string
	category string
	stock    int
	sizes    []size
}

var catalogue = []product{
	{id: "TOTE-001", name: "Canvas Tote", price: "100", discount: "10", category: "bags", stock: 5},
	{id: "MUG-001", name: "Enamel Mug", price: "12", category: "home", stock: 40},
	{
		id: "SHIRT-001", name: "Linen Shirt", price: "40", category: "apparel",
		sizes: []size{
			{id: "SHIRT-001-S", label: "S", quantity: 4},
			{id: "SHIRT-001-M", label: "M", quantity: 6},
			{id: "SHIRT-001-L", label: "L", quantity: 2},
		},
	},
	{
		id: "CAP-001", name: "Wool Cap", price: "25", discount: "20", category: "apparel",
		sizes: []size{{id: "CAP-001-OS", label: "One size", quantity: 15}},
	},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.NewLogger(cfg.Logger)
	ctx := context.Background()

	if err := database.Migrate(ctx, cfg.Database.ConnectionString(), logger); err != nil {
		return err
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	for _, p := range catalogue {
		stock := p.stock
		for _, s := range p.sizes {
			stock += s.quantity
		}
		discount := p.discount
		if discount == "" {
			discount = "0"
		}

		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, price, discount, stock, images, category)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			p.id, p.name, decimal.RequireFromString(p.price), decimal.RequireFromString(discount), stock,
			[]string{"https://cdn.example.com/" + p.id + ".jpg"}, p.category,
		)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.id, err)
		}

		for _, s := range p.sizes {
			_, err := pool.Exec(ctx, `
				INSERT INTO product_sizes (id, product_id, size, quantity)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO NOTHING`,
				s.id, p.id, s.label, s.quantity,
			)
			if err != nil {
				return fmt.Errorf("insert size %s: %w", s.id, err)
			}
		}
	}

	logger.Info().Int("products", len(catalogue)).Msg("catalogue seeded")
	return nil
}
