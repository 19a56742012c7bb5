package service

import (
	"context"
	"time"

	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/notifications/domain"
	"storefront-orders/internal/features/notifications/ports"
	orderdomain "storefront-orders/internal/features/orders/domain"

	"go.uber.org/zap"
)

const defaultDeliveryTimeout = 5 * time.Second

// Dispatcher turns committed status transitions into events for a Sink.
// Delivery failures are logged; the transition itself already succeeded.
type Dispatcher struct {
	sink    ports.Sink
	timeout time.Duration
	now     func() time.Time
}

// NewDispatcher creates a dispatcher. A timeout of zero uses five seconds.
func NewDispatcher(sink ports.Sink, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &Dispatcher{
		sink:    sink,
		timeout: timeout,
		now:     time.Now,
	}
}

// StatusChanged delivers one event. The request context only contributes its
// values: a client that hangs up must not cancel the delivery.
func (d *Dispatcher) StatusChanged(ctx context.Context, o *orderdomain.Order) {
	event := domain.NewStatusChanged(o, d.now())

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.sink.Notify(ctx, event); err != nil {
		logger.Named("notifications").Error("Failed to deliver status change",
			zap.String("event_id", event.EventID),
			zap.Int64("order_id", event.OrderID),
			zap.String("status", event.Status),
			zap.Error(err),
		)
	}
}
