package domain

import (
	"strconv"
	"time"

	orderdomain "storefront-orders/internal/features/orders/domain"

	"github.com/google/uuid"
)

// EventType identifies status change events on every transport.
const EventType = "order.status_changed"

// StatusChanged is emitted after an order status transition was committed.
type StatusChanged struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewStatusChanged builds the event for an order in its new status.
func NewStatusChanged(o *orderdomain.Order, at time.Time) StatusChanged {
	return StatusChanged{
		EventID:    uuid.NewString(),
		Type:       EventType,
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
		OccurredAt: at.UTC(),
	}
}

// Key partitions events of the same order together.
func (e StatusChanged) Key() string {
	return strconv.FormatInt(e.OrderID, 10)
}
