package domain

import (
	"strings"

	invdomain "storefront-orders/internal/features/inventory/domain"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the current state of an order.
type OrderStatus string

const (
	// StatusPending is the usual initial state; stock is already reserved.
	StatusPending OrderStatus = "PENDING"
	// StatusProcessing means the order is being picked and packed.
	StatusProcessing OrderStatus = "PROCESSING"
	// StatusShipped means the order has been handed to the carrier.
	StatusShipped OrderStatus = "SHIPPED"
	// StatusDelivered means the customer received the order.
	StatusDelivered OrderStatus = "DELIVERED"
	// StatusCancelled means the order was called off; stock was given back.
	StatusCancelled OrderStatus = "CANCELLED"
	// StatusReturned means the goods came back; stock was given back.
	StatusReturned OrderStatus = "RETURNED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []OrderStatus{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
	StatusReturned,
}

// ParseStatus accepts status names case-insensitively.
func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: "unknown status " + s, sentinel: ErrInvalidStatus}
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsReversed reports whether stock for an order in this status has been given back.
func (s OrderStatus) IsReversed() bool {
	return s == StatusCancelled || s == StatusReturned
}

// IsFulfilling reports whether the order is being or has been fulfilled.
func (s OrderStatus) IsFulfilling() bool {
	return s == StatusProcessing || s == StatusShipped || s == StatusDelivered
}

// IsTerminal reports statuses an order normally never leaves.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s.IsReversed()
}

// CurrentSchemaVersion is written into every stored order document.
const CurrentSchemaVersion = 1

// Order is a customer purchase. Only Status and TrackingNumber change after creation.
type Order struct {
	// SchemaVersion identifies the document layout.
	SchemaVersion int `json:"schemaVersion"`
	// ID is allocated at creation and never changes.
	ID int64 `json:"id"`
	// CustomerID identifies the purchaser.
	CustomerID string `json:"customerId"`
	// CustomerUsername is the purchaser's display name at order time.
	CustomerUsername string `json:"customerUsername"`
	// Items is the non-empty list of purchased lines.
	Items []OrderItem `json:"items"`
	// TotalAmount always equals the sum of the item totals.
	TotalAmount decimal.Decimal `json:"totalAmount"`
	// Status is the lifecycle state.
	Status OrderStatus `json:"status"`
	// PaymentMethod is free text, e.g. "card" or "cash on delivery".
	PaymentMethod string `json:"paymentMethod"`
	// ShippingAddress is free text.
	ShippingAddress string `json:"shippingAddress"`
	// OrderDate is the creation time in epoch milliseconds.
	OrderDate int64 `json:"orderDate"`
	// EstimatedDelivery is an optional epoch-milliseconds estimate.
	EstimatedDelivery *int64 `json:"estimatedDelivery,omitempty"`
	// TrackingNumber is set through status updates only.
	TrackingNumber string `json:"trackingNumber,omitempty"`
	// Notes is optional free text from the customer.
	Notes string `json:"notes,omitempty"`
}

// OrderItem is one purchased product line.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	// TotalPrice always equals UnitPrice * Quantity.
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// StockLines returns the stock the order holds while it is not reversed.
func (o *Order) StockLines() []invdomain.StockLine {
	lines := make([]invdomain.StockLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = invdomain.StockLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines
}

// Clone returns a deep copy so callers can mutate drafts safely.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.EstimatedDelivery != nil {
		v := *o.EstimatedDelivery
		c.EstimatedDelivery = &v
	}
	return c
}
