package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeUnauthorised       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeSizeNotFound       = "SIZE_NOT_FOUND"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeGateway            = "GATEWAY_ERROR"
	ErrCodeInvalidSignature   = "INVALID_SIGNATURE"
	ErrCodeTransactionTimeout = "TRANSACTION_TIMEOUT"
	ErrCodeStateConflict      = "STATE_CONFLICT"
	ErrCodeDuplicateRequest   = "DUPLICATE_REQUEST"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

type codeMetadata struct {
	status        int
	publicMessage string
}

var codeTable = map[string]codeMetadata{
	ErrCodeValidation:         {http.StatusBadRequest, "Validation failed"},
	ErrCodeInvalidJSON:        {http.StatusBadRequest, "Invalid request body"},
	ErrCodeUnauthorised:       {http.StatusUnauthorized, "Unauthorized"},
	ErrCodeForbidden:          {http.StatusForbidden, "Forbidden"},
	ErrCodeProductNotFound:    {http.StatusNotFound, "Product not found"},
	ErrCodeOrderNotFound:      {http.StatusNotFound, "Order not found"},
	ErrCodeSizeNotFound:       {http.StatusNotFound, "Size not found"},
	ErrCodeInsufficientStock:  {http.StatusBadRequest, "Insufficient stock"},
	ErrCodeGateway:            {http.StatusInternalServerError, "Failed to create payment order"},
	ErrCodeInvalidSignature:   {http.StatusBadRequest, "invalid signature"},
	ErrCodeTransactionTimeout: {http.StatusInternalServerError, "Order could not be completed, please retry"},
	ErrCodeStateConflict:      {http.StatusConflict, "Order cannot transition to the requested state"},
	ErrCodeDuplicateRequest:   {http.StatusConflict, "A request with this idempotency key was already received"},
	ErrCodeInternalError:      {http.StatusInternalServerError, "An unexpected error occurred"},
}

// HTTPStatus returns the HTTP status associated with an error code.
func HTTPStatus(code string) int {
	if meta, ok := codeTable[code]; ok {
		return meta.status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the generic client-facing message for an error code.
func PublicMessage(code string) string {
	if meta, ok := codeTable[code]; ok {
		return meta.publicMessage
	}
	return codeTable[ErrCodeInternalError].publicMessage
}

// DomainError is a business error carrying an API error code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error around an underlying cause.
func WrapDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors
var (
	ErrProductNotFound    = NewDomainError(ErrCodeProductNotFound, "One or more products not found")
	ErrOrderNotFound      = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrSizeNotFound       = NewDomainError(ErrCodeSizeNotFound, "Size not found for product")
	ErrInsufficientStock  = NewDomainError(ErrCodeInsufficientStock, "Insufficient stock")
	ErrInvalidSignature   = NewDomainError(ErrCodeInvalidSignature, "invalid signature")
	ErrTransactionTimeout = NewDomainError(ErrCodeTransactionTimeout, "Order transaction timed out")
	ErrStateConflict      = NewDomainError(ErrCodeStateConflict, "Order cannot transition to the requested state")
	ErrDuplicateRequest   = NewDomainError(ErrCodeDuplicateRequest, "Duplicate request")
	ErrUnauthorised       = NewDomainError(ErrCodeUnauthorised, "Authentication required")
)

// NewValidationError creates a VALIDATION_ERROR with the given message.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// NewGatewayError wraps a payment gateway failure.
func NewGatewayError(err error) *DomainError {
	return WrapDomainError(ErrCodeGateway, "Failed to create payment order", err)
}

// InsufficientStockError reports a reservation that could not be satisfied.
// Available is the quantity observed when the reservation was rejected.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	SizeID      *string
	SizeName    string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	if e.SizeName != "" {
		return fmt.Sprintf("Insufficient stock for %s (Size: %s). Available: %d", e.ProductName, e.SizeName, e.Available)
	}
	return fmt.Sprintf("Insufficient stock for %s. Available: %d", e.ProductName, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ErrorCode extracts the API error code from err, defaulting to INTERNAL_ERROR.
func ErrorCode(err error) string {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return ErrCodeInsufficientStock
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}
