package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// FakeGateway is an in-memory Gateway for tests and local development.
type FakeGateway struct {
	// CreateOrderFunc overrides the default behaviour when set.
	CreateOrderFunc func(ctx context.Context, req CreateOrderRequest) (*RemoteOrder, error)

	mu       sync.Mutex
	requests []CreateOrderRequest
	seq      atomic.Int64
}

// NewFakeGateway creates a fake gateway issuing sequential order ids.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

// CreateOrder records the request and returns a synthetic remote order.
func (f *FakeGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (*RemoteOrder, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.CreateOrderFunc != nil {
		return f.CreateOrderFunc(ctx, req)
	}
	if req.AmountMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	return &RemoteOrder{
		ID:       fmt.Sprintf("order_fake%06d", f.seq.Add(1)),
		Amount:   req.AmountMinor,
		Currency: req.Currency,
	}, nil
}

// Requests returns a copy of every request received.
func (f *FakeGateway) Requests() []CreateOrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CreateOrderRequest(nil), f.requests...)
}
