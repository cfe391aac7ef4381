package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every valid order status.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus converts a raw string into a known OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	for _, s := range OrderStatuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// UserCancellable reports whether a shopper may still cancel an order in this status.
func (s OrderStatus) UserCancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentStatusOnCancel returns the payment status an order takes when it is cancelled.
func (s PaymentStatus) PaymentStatusOnCancel() PaymentStatus {
	if s == PaymentStatusCompleted {
		return PaymentStatusRefunded
	}
	return PaymentStatusFailed
}

// Order represents a customer order. Totals are fixed at creation.
type Order struct {
	ID                uuid.UUID        `json:"id"`
	OrderNumber       string           `json:"orderNumber"`
	UserID            string           `json:"userId"`
	Status            OrderStatus      `json:"status"`
	PaymentStatus     PaymentStatus    `json:"paymentStatus"`
	PaymentMethod     string           `json:"paymentMethod"`
	PaymentID         *string          `json:"paymentId,omitempty"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	Tax               decimal.Decimal  `json:"tax"`
	Shipping          decimal.Decimal  `json:"shipping"`
	Total             decimal.Decimal  `json:"total"`
	ShippingAddressID uuid.UUID        `json:"shippingAddressId"`
	ShippingAddress   *ShippingAddress `json:"shippingAddress,omitempty"`
	Items             []OrderItem      `json:"items"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// OrderItem represents a line item in an order. Name, image and price are
// snapshots taken at placement time.
type OrderItem struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"-"`
	ProductID    *string         `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage"`
	SizeID       *string         `json:"sizeId,omitempty"`
	SizeName     *string         `json:"sizeName,omitempty"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

// LineTotal returns price * quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShippingAddress is a per-order copy of the delivery address.
type ShippingAddress struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"userId"`
	FullName   string    `json:"fullName"`
	Phone      string    `json:"phone"`
	Street     string    `json:"street"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StatusUpdate is a status/payment transition applied to a locked order row.
type StatusUpdate struct {
	OrderID       uuid.UUID
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentID     *string
	UpdatedAt     time.Time
}

// CartLine is a single untrusted line from the client cart.
type CartLine struct {
	ProductID string  `json:"productId" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gt=0,lte=1000"`
	SizeID    *string `json:"sizeId,omitempty" validate:"omitempty,min=1"`
	SizeName  *string `json:"sizeName,omitempty"`
}

// ShippingAddressInput is the address submitted at checkout.
type ShippingAddressInput struct {
	FullName   string `json:"fullName" validate:"required,notblank"`
	Phone      string `json:"phone" validate:"required,notblank"`
	Street     string `json:"street" validate:"required,notblank"`
	City       string `json:"city" validate:"required,notblank"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode" validate:"required,notblank"`
	Country    string `json:"country" validate:"required,notblank"`
}

// PlaceOrderRequest is the payload for creating an order.
type PlaceOrderRequest struct {
	Items           []CartLine            `json:"items" validate:"required,min=1,dive"`
	ShippingAddress *ShippingAddressInput `json:"shippingAddress" validate:"required"`
}

// PlaceOrderResponse carries the remote payment handle and the local order id.
type PlaceOrderResponse struct {
	OrderID   string    `json:"orderId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	DBOrderID uuid.UUID `json:"dbOrderId"`
}

// VerifyPaymentRequest is the client-reported payment success callback.
type VerifyPaymentRequest struct {
	RemoteOrderID   string `json:"remoteOrderId" validate:"required"`
	RemotePaymentID string `json:"remotePaymentId" validate:"required"`
	Signature       string `json:"signature" validate:"required"`
}

// VerifiedOrder is the order summary returned after verification.
type VerifiedOrder struct {
	ID          uuid.UUID       `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	Total       decimal.Decimal `json:"total"`
}

// VerifyPaymentResponse is returned after a successful verification.
type VerifyPaymentResponse struct {
	Success bool          `json:"success"`
	Order   VerifiedOrder `json:"order"`
}

// UpdateStatusRequest is the admin payload for changing order status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderFilter narrows the admin order listing.
type OrderFilter struct {
	Page   int
	Limit  int
	Status *OrderStatus
	Search string
}

// Offset returns the row offset for the filter's page.
func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalCount int  `json:"totalCount"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// OrderPage is a page of orders for the admin listing.
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}
