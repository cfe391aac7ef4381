package pricing

import (
	"fmt"
	"io"

	"storefront/internal/config"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Rules are the server-side pricing constants applied to every quote.
type Rules struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingCost      decimal.Decimal
	Currency              string
}

// DefaultRules builds rules from environment configuration.
func DefaultRules(checkout config.CheckoutConfig, currency string) Rules {
	return Rules{
		TaxRate:               decimal.NewFromFloat(checkout.TaxRate),
		FreeShippingThreshold: decimal.NewFromFloat(checkout.FreeShippingThreshold),
		FlatShippingCost:      decimal.NewFromFloat(checkout.FlatShippingCost),
		Currency:              currency,
	}
}

// Validate rejects rules that would produce negative or nonsensical totals.
func (r Rules) Validate() error {
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax rate must be between 0 and 1, got %s", r.TaxRate)
	}
	if r.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("free shipping threshold cannot be negative")
	}
	if r.FlatShippingCost.IsNegative() {
		return fmt.Errorf("flat shipping cost cannot be negative")
	}
	if len(r.Currency) != 3 {
		return fmt.Errorf("invalid currency %q", r.Currency)
	}
	return nil
}

// rulesDocument is the YAML shape of an override file. Omitted keys keep the base value.
type rulesDocument struct {
	TaxRate               *decimal.Decimal `yaml:"tax_rate"`
	FreeShippingThreshold *decimal.Decimal `yaml:"free_shipping_threshold"`
	FlatShippingCost      *decimal.Decimal `yaml:"flat_shipping_cost"`
	Currency              *string          `yaml:"currency"`
}

// ParseRules reads a YAML rules document and applies it on top of base.
func ParseRules(r io.Reader, base Rules) (Rules, error) {
	var doc rulesDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return Rules{}, fmt.Errorf("failed to decode pricing rules: %w", err)
	}

	rules := base
	if doc.TaxRate != nil {
		rules.TaxRate = *doc.TaxRate
	}
	if doc.FreeShippingThreshold != nil {
		rules.FreeShippingThreshold = *doc.FreeShippingThreshold
	}
	if doc.FlatShippingCost != nil {
		rules.FlatShippingCost = *doc.FlatShippingCost
	}
	if doc.Currency != nil {
		rules.Currency = *doc.Currency
	}

	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}

	return rules, nil
}
