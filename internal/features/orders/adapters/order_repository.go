package adapters

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/orders/domain"

	"go.uber.org/zap"
)

// OrdersCollection is the document collection holding orders.
const OrdersCollection = "orders"

// DocumentOrderRepository implements ports.OrderRepository on a docstore.Store.
type DocumentOrderRepository struct {
	store docstore.Store
}

// NewDocumentOrderRepository creates a repository over store.
func NewDocumentOrderRepository(store docstore.Store) *DocumentOrderRepository {
	return &DocumentOrderRepository{store: store}
}

// Ref returns the document reference of an order.
func (r *DocumentOrderRepository) Ref(id int64) docstore.Ref {
	return docstore.Ref{Collection: OrdersCollection, ID: strconv.FormatInt(id, 10)}
}

// Get loads one order.
func (r *DocumentOrderRepository) Get(ctx context.Context, id int64) (*domain.Order, error) {
	data, err := r.store.Get(ctx, r.Ref(id))
	if err != nil {
		return nil, mapNotFound(err, id)
	}
	return domain.Decode(data)
}

// List loads every order. Documents that fail to decode are skipped and logged
// so one corrupt record cannot hide the rest of the collection.
func (r *DocumentOrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	docs, err := r.store.List(ctx, OrdersCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := domain.Decode(doc)
		if err != nil {
			logger.Named("orders").Error("Skipping undecodable order document", zap.Error(err))
			continue
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

// GetTx loads an order inside a transaction.
func (r *DocumentOrderRepository) GetTx(ctx context.Context, tx docstore.Txn, id int64) (*domain.Order, error) {
	data, err := tx.Get(ctx, r.Ref(id))
	if err != nil {
		return nil, mapNotFound(err, id)
	}
	return domain.Decode(data)
}

// ExistsTx reports whether an order document is stored under id.
func (r *DocumentOrderRepository) ExistsTx(ctx context.Context, tx docstore.Txn, id int64) (bool, error) {
	_, err := tx.Get(ctx, r.Ref(id))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, docstore.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to probe order %d: %w", id, err)
	}
}

// SaveTx stages an order write inside a transaction.
func (r *DocumentOrderRepository) SaveTx(tx docstore.Txn, o *domain.Order) error {
	data, err := domain.Encode(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", o.ID, err)
	}
	tx.Set(r.Ref(o.ID), data)
	return nil
}

// Watch subscribes to change notifications of the orders collection.
func (r *DocumentOrderRepository) Watch(ctx context.Context) (docstore.Subscription, error) {
	return r.store.Subscribe(ctx, OrdersCollection)
}

func mapNotFound(err error, id int64) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	return fmt.Errorf("failed to load order %d: %w", id, err)
}
