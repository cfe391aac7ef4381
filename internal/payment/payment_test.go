package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderCreator is a mock implementation of orderCreator.
type MockOrderCreator struct {
	mock.Mock
}

func (m *MockOrderCreator) Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error) {
	args := m.Called(data, extraHeaders)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func TestRazorpayGateway_CreateOrder(t *testing.T) {
	req := CreateOrderRequest{
		AmountMinor: 49500,
		Currency:    "INR",
		Receipt:     "order_1700000000",
		Metadata:    map[string]string{"userId": "user-1"},
	}

	tests := []struct {
		name        string
		setupMock   func(m *MockOrderCreator)
		req         CreateOrderRequest
		expected    *RemoteOrder
		expectError error
		errorMsg    string
	}{
		{
			name: "Success",
			req:  req,
			setupMock: func(m *MockOrderCreator) {
				m.On("Create", mock.MatchedBy(func(data map[string]interface{}) bool {
					notes := data["notes"].(map[string]interface{})
					return data["amount"] == int64(49500) &&
						data["currency"] == "INR" &&
						data["receipt"] == "order_1700000000" &&
						notes["userId"] == "user-1"
				}), map[string]string(nil)).Return(map[string]interface{}{
					"id":       "order_Nx1",
					"amount":   float64(49500),
					"currency": "INR",
					"status":   "created",
				}, nil)
			},
			expected: &RemoteOrder{ID: "order_Nx1", Amount: 49500, Currency: "INR"},
		},
		{
			name: "Gateway error",
			req:  req,
			setupMock: func(m *MockOrderCreator) {
				m.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("BAD_REQUEST_ERROR"))
			},
			errorMsg: "BAD_REQUEST_ERROR",
		},
		{
			name: "Response without id",
			req:  req,
			setupMock: func(m *MockOrderCreator) {
				m.On("Create", mock.Anything, mock.Anything).Return(map[string]interface{}{"amount": float64(1)}, nil)
			},
			expectError: ErrMalformedResponse,
		},
		{
			name:        "Non-positive amount never reaches gateway",
			req:         CreateOrderRequest{AmountMinor: 0, Currency: "INR"},
			setupMock:   func(m *MockOrderCreator) {},
			expectError: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockOrderCreator)
			tt.setupMock(m)
			gateway := newRazorpayGateway(m, zerolog.Nop())

			order, err := gateway.CreateOrder(context.Background(), tt.req)

			switch {
			case tt.expectError != nil:
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, order)
			case tt.errorMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expected, order)
			}
			m.AssertExpectations(t)
		})
	}
}

type slowCreator struct {
	release chan struct{}
}

func (s *slowCreator) Create(map[string]interface{}, map[string]string) (map[string]interface{}, error) {
	<-s.release
	return map[string]interface{}{"id": "late", "amount": float64(1)}, nil
}

func TestRazorpayGateway_CreateOrder_ContextDeadline(t *testing.T) {
	creator := &slowCreator{release: make(chan struct{})}
	defer close(creator.release)

	gateway := newRazorpayGateway(creator, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gateway.CreateOrder(ctx, CreateOrderRequest{AmountMinor: 100, Currency: "INR"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignatureVerifier(t *testing.T) {
	verifier := NewSignatureVerifier("test_secret")

	t.Run("Round trip", func(t *testing.T) {
		sig := verifier.Sign("order_1", "pay_1")
		assert.Len(t, sig, 64)
		assert.True(t, verifier.Verify("order_1", "pay_1", sig))
	})

	t.Run("Every single character mutation fails", func(t *testing.T) {
		sig := verifier.Sign("order_Nx1", "pay_Q9")
		for i := range sig {
			mutated := []byte(sig)
			if mutated[i] == 'a' {
				mutated[i] = 'b'
			} else {
				mutated[i] = 'a'
			}
			assert.False(t, verifier.Verify("order_Nx1", "pay_Q9", string(mutated)), "mutation at %d accepted", i)
		}
	})

	t.Run("Swapped ids fail", func(t *testing.T) {
		sig := verifier.Sign("order_1", "pay_1")
		assert.False(t, verifier.Verify("pay_1", "order_1", sig))
	})

	t.Run("Different secret fails", func(t *testing.T) {
		sig := NewSignatureVerifier("other").Sign("order_1", "pay_1")
		assert.False(t, verifier.Verify("order_1", "pay_1", sig))
	})

	t.Run("Uppercase hex is not accepted", func(t *testing.T) {
		sig := verifier.Sign("order_1", "pay_1")
		upper := []byte(sig)
		for i, c := range upper {
			if c >= 'a' && c <= 'f' {
				upper[i] = c - 32
			}
		}
		if string(upper) != sig {
			assert.False(t, verifier.Verify("order_1", "pay_1", string(upper)))
		}
	})
}

func TestFakeGateway(t *testing.T) {
	gateway := NewFakeGateway()

	first, err := gateway.CreateOrder(context.Background(), CreateOrderRequest{AmountMinor: 100, Currency: "INR"})
	require.NoError(t, err)
	second, err := gateway.CreateOrder(context.Background(), CreateOrderRequest{AmountMinor: 200, Currency: "INR"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(200), second.Amount)
	assert.Len(t, gateway.Requests(), 2)
}
