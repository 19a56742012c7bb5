package ports

import (
	"context"

	"storefront-orders/internal/core/docstore"
	invdomain "storefront-orders/internal/features/inventory/domain"
	"storefront-orders/internal/features/orders/domain"
)

// OrderRepository persists orders as documents under "orders/{id}".
type OrderRepository interface {
	Ref(id int64) docstore.Ref
	Get(ctx context.Context, id int64) (*domain.Order, error)
	// List returns every stored order in no particular order.
	List(ctx context.Context) ([]domain.Order, error)

	GetTx(ctx context.Context, tx docstore.Txn, id int64) (*domain.Order, error)
	// ExistsTx reports whether id is taken without decoding the document.
	ExistsTx(ctx context.Context, tx docstore.Txn, id int64) (bool, error)
	SaveTx(tx docstore.Txn, o *domain.Order) error

	// Watch subscribes to writes of the orders collection.
	Watch(ctx context.Context) (docstore.Subscription, error)
}

// StockLedger is the subset of the inventory ledger the order service batches
// into its own transactions.
type StockLedger interface {
	Refs(lines []invdomain.StockLine) []docstore.Ref
	Check(ctx context.Context, tx docstore.Txn, lines []invdomain.StockLine) error
	Reserve(ctx context.Context, tx docstore.Txn, lines []invdomain.StockLine) error
	Release(ctx context.Context, tx docstore.Txn, lines []invdomain.StockLine) error
	Rededuct(ctx context.Context, tx docstore.Txn, lines []invdomain.StockLine) ([]invdomain.StockLine, error)
}

// IDAllocator hands out order ids.
type IDAllocator interface {
	NextID(ctx context.Context) int64
}

// StatusNotifier receives successful status transitions.
type StatusNotifier interface {
	StatusChanged(ctx context.Context, o *domain.Order)
}

// OrderService is the primary port for the order lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, draft domain.Order) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, trackingNumber string) (*domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.Filter) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	ListRecent(ctx context.Context, sinceDays, limit int) ([]domain.Order, error)
}

// SnapshotStream is a live feed of order list snapshots.
type SnapshotStream interface {
	Start() error
	Stop()
	Snapshots() <-chan []domain.Order
	Err() error
}

// OrderStreamer opens snapshot streams.
type OrderStreamer interface {
	StreamAll(ctx context.Context) SnapshotStream
	StreamByCustomer(ctx context.Context, customerID string) SnapshotStream
}
