package pricing

import (
	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Line is a cart line resolved against the catalogue.
type Line struct {
	Product  model.Product
	SizeID   *string
	SizeName string
	Quantity int
}

// PricedLine is a Line with its charged unit price.
type PricedLine struct {
	Line
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Quote is a fully priced cart.
type Quote struct {
	Lines    []PricedLine
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
	Currency string
}

// MinorUnits returns the total in the currency's minor unit.
func (q Quote) MinorUnits() int64 {
	return q.Total.Mul(hundred).Round(0).IntPart()
}

// UnitPrice applies a percentage discount and rounds to two decimal places.
func UnitPrice(price, discountPercent decimal.Decimal) decimal.Decimal {
	return price.Mul(one.Sub(discountPercent.Div(hundred))).Round(2)
}

// Quote prices lines using catalogue prices only. Shipping is waived when the
// subtotal is strictly above the free shipping threshold.
func (r Rules) Quote(lines []Line) Quote {
	q := Quote{
		Lines:    make([]PricedLine, 0, len(lines)),
		Subtotal: decimal.Zero,
		Currency: r.Currency,
	}

	for _, line := range lines {
		unit := UnitPrice(line.Product.Price, line.Product.Discount)
		total := unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		q.Lines = append(q.Lines, PricedLine{Line: line, UnitPrice: unit, LineTotal: total})
		q.Subtotal = q.Subtotal.Add(total)
	}

	q.Tax = q.Subtotal.Mul(r.TaxRate).Round(2)
	if q.Subtotal.GreaterThan(r.FreeShippingThreshold) {
		q.Shipping = decimal.Zero
	} else {
		q.Shipping = r.FlatShippingCost
	}
	q.Total = q.Subtotal.Add(q.Tax).Add(q.Shipping)

	return q
}
