package ports

import (
	"context"

	"storefront-orders/internal/features/notifications/domain"
)

// Sink delivers status change events to an external dispatcher.
type Sink interface {
	Notify(ctx context.Context, event domain.StatusChanged) error
	Close() error
}
