package payment

import (
	"context"
	"fmt"

	"github.com/razorpay/razorpay-go"
	"github.com/rs/zerolog"
)

// orderCreator is the subset of the Razorpay orders resource used here.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway implements Gateway with the Razorpay Orders API.
type RazorpayGateway struct {
	orders orderCreator
	logger zerolog.Logger
}

// NewRazorpayGateway creates a gateway authenticated with the key pair.
func NewRazorpayGateway(keyID, keySecret string, logger zerolog.Logger) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return newRazorpayGateway(client.Order, logger)
}

func newRazorpayGateway(orders orderCreator, logger zerolog.Logger) *RazorpayGateway {
	return &RazorpayGateway{
		orders: orders,
		logger: logger.With().Str("component", "razorpay-gateway").Logger(),
	}
}

type createResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder creates a Razorpay order. The SDK is not context aware, so the
// call runs in its own goroutine and ctx bounds how long we wait for it.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (*RemoteOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	notes := make(map[string]interface{}, len(req.Metadata))
	for k, v := range req.Metadata {
		notes[k] = v
	}

	data := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	done := make(chan createResult, 1)
	go func() {
		body, err := g.orders.Create(data, nil)
		done <- createResult{body: body, err: err}
	}()

	var res createResult
	select {
	case <-ctx.Done():
		g.logger.Warn().Err(ctx.Err()).Str("receipt", req.Receipt).Msg("gateway call abandoned")
		return nil, fmt.Errorf("razorpay create order: %w", ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		g.logger.Error().Err(res.err).Str("receipt", req.Receipt).Msg("failed to create remote order")
		return nil, fmt.Errorf("razorpay create order: %w", res.err)
	}

	order, err := parseOrder(res.body)
	if err != nil {
		g.logger.Error().Err(err).Str("receipt", req.Receipt).Msg("unexpected gateway response")
		return nil, err
	}

	g.logger.Info().
		Str("remote_order_id", order.ID).
		Int64("amount", order.Amount).
		Str("currency", order.Currency).
		Msg("remote order created")

	return order, nil
}

func parseOrder(body map[string]interface{}) (*RemoteOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, ErrMalformedResponse
	}

	order := &RemoteOrder{ID: id}
	order.Currency, _ = body["currency"].(string)

	switch amount := body["amount"].(type) {
	case float64:
		order.Amount = int64(amount)
	case int64:
		order.Amount = amount
	case int:
		order.Amount = int64(amount)
	default:
		return nil, fmt.Errorf("%w: missing amount", ErrMalformedResponse)
	}

	return order, nil
}
