package service

import (
	"context"
	"fmt"
	"time"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/orders/ports"

	"go.uber.org/zap"
)

// OrderCounterKey holds the last allocated order id.
const OrderCounterKey = "counters/orders"

// IDAllocator hands out ascending order ids from an atomic counter.
type IDAllocator struct {
	counter docstore.Counter
	orders  ports.OrderRepository
	now     func() time.Time
}

// NewIDAllocator creates an allocator over counter.
func NewIDAllocator(counter docstore.Counter, orders ports.OrderRepository) *IDAllocator {
	return &IDAllocator{
		counter: counter,
		orders:  orders,
		now:     time.Now,
	}
}

// NextID increments the order counter. When the counter cannot be reached the
// current time in milliseconds is used instead and the counter is lifted past
// it, so ids handed out after recovery stay ascending.
func (a *IDAllocator) NextID(ctx context.Context) int64 {
	id, err := a.counter.Incr(ctx, OrderCounterKey)
	if err == nil {
		return id
	}

	fallback := a.now().UnixMilli()
	log := logger.Named("orders")
	log.Warn("Order counter unavailable, using timestamp id",
		zap.Int64("order_id", fallback),
		zap.Error(err),
	)
	if err := a.counter.RaiseTo(ctx, OrderCounterKey, fallback); err != nil {
		log.Warn("Failed to raise order counter", zap.Error(err))
	}
	return fallback
}

// Seed raises the counter to the highest stored order id. Orders written
// before the counter existed keep the sequence ascending.
func (a *IDAllocator) Seed(ctx context.Context) error {
	orders, err := a.orders.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan orders: %w", err)
	}

	var highest int64
	for _, o := range orders {
		highest = max(highest, o.ID)
	}
	if highest == 0 {
		return nil
	}

	if err := a.counter.RaiseTo(ctx, OrderCounterKey, highest); err != nil {
		return fmt.Errorf("failed to seed order counter: %w", err)
	}
	logger.Named("orders").Info("Order counter seeded", zap.Int64("highest_id", highest))
	return nil
}
