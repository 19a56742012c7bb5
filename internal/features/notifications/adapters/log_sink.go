package adapters

import (
	"context"

	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/notifications/domain"

	"go.uber.org/zap"
)

// LogSink writes events to the application log. Used when no broker is configured.
type LogSink struct{}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Notify(_ context.Context, e domain.StatusChanged) error {
	logger.Named("notifications").Info("Order status changed",
		zap.String("event_id", e.EventID),
		zap.Int64("order_id", e.OrderID),
		zap.String("customer_id", e.CustomerID),
		zap.String("status", e.Status),
	)
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
