package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalogue item.
// Stock is the sum of the variant quantities when the product has sizes.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"` // percentage, 0-100
	Stock     int             `json:"stock"`
	Images    []string        `json:"images"`
	Category  string          `json:"category"`
	Sizes     []ProductSize   `json:"sizes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ProductSize is a variant of a product carrying its own stock.
type ProductSize struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Label     string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// PrimaryImage returns the first image of the product or an empty string.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Size looks up a variant by ID.
func (p Product) Size(id string) (ProductSize, bool) {
	for _, s := range p.Sizes {
		if s.ID == id {
			return s, true
		}
	}
	return ProductSize{}, false
}

// StockChange describes a reservation or restoration against the inventory ledger.
type StockChange struct {
	ProductID   string
	ProductName string
	SizeID      *string
	SizeName    string
	Quantity    int
}

// ValidateProductsRequest is the payload for pruning stale cart entries.
type ValidateProductsRequest struct {
	ProductIDs []string `json:"productIds"`
}

// ValidateProductsResponse lists the IDs that still resolve to live products.
type ValidateProductsResponse struct {
	ValidProductIDs []string `json:"validProductIds"`
}
