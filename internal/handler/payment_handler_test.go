package handler

import (
	"encoding/json"
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

func TestPaymentHandler_Verify(t *testing.T) {
	orderID := uuid.New()
	body := `{"remoteOrderId":"order_1","remotePaymentId":"pay_1","signature":"abc"}`

	tests := []struct {
		name            string
		body            string
		mockReturn      *model.VerifyPaymentResponse
		mockError       error
		expectService   bool
		expectedStatus  int
		expectedMessage string
	}{
		{
			name: "Verified",
			body: body,
			mockReturn: &model.VerifyPaymentResponse{
				Success: true,
				Order:   model.VerifiedOrder{ID: orderID, OrderNumber: "order_1", Total: decimal.RequireFromString("495.00")},
			},
			expectService:  true,
			expectedStatus: http.StatusOK,
		},
		{
			name:            "Bad signature is opaque",
			body:            body,
			mockError:       model.WrapDomainError(model.ErrCodeInvalidSignature, "expected 9f86d0", nil),
			expectService:   true,
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "invalid signature",
		},
		{
			name:           "Paid order was cancelled",
			body:           body,
			mockError:      model.ErrStateConflict,
			expectService:  true,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "Malformed body",
			body:           `not json`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRecon := new(MockReconciliationService)
			if tt.expectService {
				mockRecon.On("VerifyPayment", mock.Anything, "user-1", &model.VerifyPaymentRequest{
					RemoteOrderID: "order_1", RemotePaymentID: "pay_1", Signature: "abc",
				}).Return(tt.mockReturn, tt.mockError)
			}

			handler := NewPaymentHandler(mockRecon, zerolog.Nop())
			req := asUser(httptest.NewRequest(http.MethodPost, "/api/payments/verify", strings.NewReader(tt.body)), "user-1")
			w := httptest.NewRecorder()

			handler.Verify(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var resp model.VerifyPaymentResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.True(t, resp.Success)
				assert.Equal(t, orderID, resp.Order.ID)
				assert.True(t, resp.Order.Total.Equal(decimal.NewFromInt(495)))
			}
			if tt.expectedMessage != "" {
				var resp model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedMessage, resp.Message)
				assert.NotContains(t, w.Body.String(), "9f86d0")
			}
			mockRecon.AssertExpectations(t)
		})
	}
}
