package events

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types published after an order transaction commits.
const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderPaid          = "order.paid"
	TypeOrderCancelled     = "order.cancelled"
	TypeOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload of every order event.
type OrderEvent struct {
	ID             uuid.UUID           `json:"id"`
	Type           string              `json:"type"`
	OrderID        uuid.UUID           `json:"orderId"`
	OrderNumber    string              `json:"orderNumber"`
	UserID         string              `json:"userId"`
	Status         model.OrderStatus   `json:"status"`
	PreviousStatus model.OrderStatus   `json:"previousStatus,omitempty"`
	PaymentStatus  model.PaymentStatus `json:"paymentStatus"`
	Total          decimal.Decimal     `json:"total"`
	Trigger        string              `json:"trigger,omitempty"`
	OccurredAt     time.Time           `json:"occurredAt"`
}

// NewOrderEvent snapshots order into an event of the given type.
func NewOrderEvent(eventType string, order *model.Order, previous model.OrderStatus, trigger string) OrderEvent {
	return OrderEvent{
		ID:             uuid.New(),
		Type:           eventType,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		PaymentStatus:  order.PaymentStatus,
		Total:          order.Total,
		Trigger:        trigger,
		OccurredAt:     time.Now().UTC(),
	}
}

// Publisher delivers order events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
