package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validOrderBody = `{
	"items": [{"productId": "P001", "quantity": 2, "sizeId": "S-M"}],
	"shippingAddress": {
		"fullName": "Asha Rao", "phone": "9999999999", "street": "12 MG Road",
		"city": "Bengaluru", "postalCode": "560001", "country": "IN"
	}
}`

func TestOrderHandler_Create(t *testing.T) {
	logger := zerolog.Nop()
	dbOrderID := uuid.New()

	tests := []struct {
		name            string
		body            string
		mockReturn      *model.PlaceOrderResponse
		mockError       error
		expectedStatus  int
		expectedCode    string
		expectedMessage string
		expectService   bool
	}{
		{
			name: "Success",
			body: validOrderBody,
			mockReturn: &model.PlaceOrderResponse{
				OrderID: "order_fake000001", Amount: 49500, Currency: "INR", DBOrderID: dbOrderID,
			},
			expectedStatus: http.StatusCreated,
			expectService:  true,
		},
		{
			name:           "Invalid JSON",
			body:           `{"items": [`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:            "Empty cart",
			body:            `{"items": []}`,
			mockError:       model.NewValidationError("items: must contain at least 1 item"),
			expectedStatus:  http.StatusBadRequest,
			expectedCode:    model.ErrCodeValidation,
			expectedMessage: "items: must contain at least 1 item",
			expectService:   true,
		},
		{
			name: "Insufficient stock",
			body: validOrderBody,
			mockError: &model.InsufficientStockError{
				ProductID: "P001", ProductName: "Linen Shirt", SizeName: "M", Available: 1, Requested: 2,
			},
			expectedStatus:  http.StatusBadRequest,
			expectedCode:    model.ErrCodeInsufficientStock,
			expectedMessage: "Insufficient stock for Linen Shirt (Size: M). Available: 1",
			expectService:   true,
		},
		{
			name:           "Unknown product",
			body:           validOrderBody,
			mockError:      model.NewDomainError(model.ErrCodeProductNotFound, "Product P001 not found"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeProductNotFound,
			expectService:  true,
		},
		{
			name:           "Gateway failure",
			body:           validOrderBody,
			mockError:      model.NewGatewayError(errors.New("connection refused")),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeGateway,
			expectService:  true,
		},
		{
			name:           "Transaction timeout",
			body:           validOrderBody,
			mockError:      model.ErrTransactionTimeout,
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeTransactionTimeout,
			expectService:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockOrders := new(MockOrderService)
			if tt.expectService {
				mockOrders.On("PlaceOrder", mock.Anything, "user-1", mock.AnythingOfType("*model.PlaceOrderRequest")).
					Return(tt.mockReturn, tt.mockError)
			}

			handler := NewOrderHandler(mockOrders, new(MockReconciliationService), logger)
			req := asUser(httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tt.body)), "user-1")
			w := httptest.NewRecorder()

			handler.Create(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusCreated {
				var resp model.PlaceOrderResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "order_fake000001", resp.OrderID)
				assert.Equal(t, int64(49500), resp.Amount)
				assert.Equal(t, dbOrderID, resp.DBOrderID)
			}
			if tt.expectedCode != "" {
				var body model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.expectedCode, body.Code)
				if tt.expectedMessage != "" {
					assert.Equal(t, tt.expectedMessage, body.Message)
				}
			}
			mockOrders.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_CreatePassesCart(t *testing.T) {
	mockOrders := new(MockOrderService)
	mockOrders.On("PlaceOrder", mock.Anything, "user-1", mock.MatchedBy(func(req *model.PlaceOrderRequest) bool {
		return len(req.Items) == 1 &&
			req.Items[0].ProductID == "P001" &&
			req.Items[0].Quantity == 2 &&
			req.Items[0].SizeID != nil && *req.Items[0].SizeID == "S-M" &&
			req.ShippingAddress != nil && req.ShippingAddress.City == "Bengaluru"
	})).Return(&model.PlaceOrderResponse{OrderID: "order_1"}, nil)

	handler := NewOrderHandler(mockOrders, new(MockReconciliationService), zerolog.Nop())
	w := httptest.NewRecorder()
	handler.Create(w, asUser(httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(validOrderBody)), "user-1"))

	assert.Equal(t, http.StatusCreated, w.Code)
	mockOrders.AssertExpectations(t)
}

func TestOrderHandler_List(t *testing.T) {
	mockOrders := new(MockOrderService)
	mockOrders.On("ListUserOrders", mock.Anything, "user-1").Return([]model.Order{
		{OrderNumber: "order_2", Total: decimal.NewFromInt(20)},
		{OrderNumber: "order_1", Total: decimal.NewFromInt(10)},
	}, nil)

	handler := NewOrderHandler(mockOrders, new(MockReconciliationService), zerolog.Nop())
	w := httptest.NewRecorder()
	handler.List(w, asUser(httptest.NewRequest(http.MethodGet, "/api/orders", nil), "user-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var orders []model.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 2)
	assert.Equal(t, "order_2", orders[0].OrderNumber)
	mockOrders.AssertExpectations(t)
}

func TestOrderHandler_Get(t *testing.T) {
	tests := []struct {
		name           string
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
	}{
		{
			name:           "Own order",
			mockReturn:     &model.Order{OrderNumber: "order_1", UserID: "user-1"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Someone else's order",
			mockError:      model.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Database failure",
			mockError:      errors.New("failed to get order: conn closed"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockOrders := new(MockOrderService)
			mockOrders.On("GetUserOrder", mock.Anything, "user-1", "order_1").Return(tt.mockReturn, tt.mockError)

			handler := NewOrderHandler(mockOrders, new(MockReconciliationService), zerolog.Nop())
			req := httptest.NewRequest(http.MethodGet, "/api/orders/order_1", nil)
			req = withURLParams(asUser(req, "user-1"), map[string]string{"orderNumber": "order_1"})
			w := httptest.NewRecorder()

			handler.Get(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockOrders.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_Cancel(t *testing.T) {
	tests := []struct {
		name           string
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "Cancelled",
			mockReturn: &model.Order{
				OrderNumber: "order_1", Status: model.OrderStatusCancelled, PaymentStatus: model.PaymentStatusFailed,
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Already shipped",
			mockError:      model.ErrStateConflict,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeStateConflict,
		},
		{
			name:           "Unknown order",
			mockError:      model.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRecon := new(MockReconciliationService)
			mockRecon.On("CancelOrder", mock.Anything, "user-1", "order_1").Return(tt.mockReturn, tt.mockError)

			handler := NewOrderHandler(new(MockOrderService), mockRecon, zerolog.Nop())
			req := httptest.NewRequest(http.MethodPost, "/api/orders/order_1/cancel", nil)
			req = withURLParams(asUser(req, "user-1"), map[string]string{"orderNumber": "order_1"})
			w := httptest.NewRecorder()

			handler.Cancel(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				var body model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.expectedCode, body.Code)
			} else {
				var order model.Order
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
				assert.Equal(t, model.OrderStatusCancelled, order.Status)
			}
			mockRecon.AssertExpectations(t)
		})
	}
}
