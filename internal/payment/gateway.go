package payment

import (
	"context"
	"errors"
)

// Gateway creates remote payment orders. Implementations may use Razorpay or a fake.
type Gateway interface {
	// CreateOrder creates a remote order for amount minor units. The returned
	// ID becomes the local order number.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*RemoteOrder, error)
}

// CreateOrderRequest describes a remote payment order.
type CreateOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Metadata    map[string]string
}

// RemoteOrder is the gateway's view of a created order.
type RemoteOrder struct {
	ID       string
	Amount   int64
	Currency string
}

var (
	// ErrInvalidAmount is returned when the amount is not positive.
	ErrInvalidAmount = errors.New("payment: amount must be positive")

	// ErrMalformedResponse is returned when the gateway response lacks an order id.
	ErrMalformedResponse = errors.New("payment: malformed gateway response")
)
