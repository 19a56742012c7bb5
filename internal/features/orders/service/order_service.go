package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/core/metrics"
	invdomain "storefront-orders/internal/features/inventory/domain"
	invservice "storefront-orders/internal/features/inventory/service"
	"storefront-orders/internal/features/orders/domain"
	"storefront-orders/internal/features/orders/ports"

	"go.uber.org/zap"
)

// maxIDAttempts bounds how often CreateOrder asks for a fresh id after a collision.
const maxIDAttempts = 3

// Operation labels for order metrics.
const (
	opCreate       = "create"
	opUpdateStatus = "update_status"
)

// OrderService implements ports.OrderService.
//
// Every write is one optimistic transaction over the order document and the
// documents of the products it references: stock and order either change
// together or not at all.
type OrderService struct {
	store    docstore.Transactor
	orders   ports.OrderRepository
	ledger   ports.StockLedger
	ids      ports.IDAllocator
	notifier ports.StatusNotifier
	now      func() time.Time
}

// NewOrderService creates a new OrderService. notifier may be nil.
func NewOrderService(
	store docstore.Transactor,
	orders ports.OrderRepository,
	ledger ports.StockLedger,
	ids ports.IDAllocator,
	notifier ports.StatusNotifier,
) *OrderService {
	return &OrderService{
		store:    store,
		orders:   orders,
		ledger:   ledger,
		ids:      ids,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateOrder validates a draft, reserves its stock and stores it under a new id.
// Unless the initial status is reversed, every item's quantity is deducted in
// the same commit that writes the order. Availability is checked for all items
// before anything is deducted.
func (s *OrderService) CreateOrder(ctx context.Context, draft domain.Order) (*domain.Order, error) {
	o, err := s.createOrder(ctx, draft)
	metrics.RecordOrderOperation(opCreate, err)
	return o, err
}

func (s *OrderService) createOrder(ctx context.Context, draft domain.Order) (*domain.Order, error) {
	o := draft.Clone()
	o.ID = 0
	o.TrackingNumber = ""
	if o.OrderDate == 0 {
		o.OrderDate = s.now().UnixMilli()
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	lines := o.StockLines()
	var err error
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		o.ID = s.ids.NextID(ctx)
		refs := append(s.ledger.Refs(lines), s.orders.Ref(o.ID))

		err = s.store.Update(ctx, refs, func(ctx context.Context, tx docstore.Txn) error {
			taken, err := s.orders.ExistsTx(ctx, tx, o.ID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: %d", domain.ErrIDCollision, o.ID)
			}

			if o.Status.IsReversed() {
				err = s.ledger.Check(ctx, tx, lines)
			} else {
				err = s.ledger.Reserve(ctx, tx, lines)
			}
			if err != nil {
				return err
			}
			return s.orders.SaveTx(tx, &o)
		})
		if !errors.Is(err, domain.ErrIDCollision) {
			break
		}
		logger.Named("orders").Warn("Allocated order id already taken",
			zap.Int64("order_id", o.ID),
			zap.Int("attempt", attempt),
		)
	}
	if err != nil {
		return nil, classify("create order", err)
	}

	if !o.Status.IsReversed() {
		metrics.RecordStockAdjustment(metrics.DirectionDeduct, totalUnits(lines))
	}
	logger.Named("orders").Info("Order created",
		zap.Int64("order_id", o.ID),
		zap.String("customer_id", o.CustomerID),
		zap.String("status", string(o.Status)),
	)
	return &o, nil
}

// stockEffect is the stock side effect of a status transition.
type stockEffect int

const (
	effectNone stockEffect = iota
	effectRestore
	effectRededuct
)

// reconcile decides what a transition does to stock. Leaving the reversed
// group takes the stock again, entering it gives the stock back and every
// other transition, including repeating the current status, leaves it alone.
func reconcile(from, to domain.OrderStatus) stockEffect {
	wasReversed := from.IsReversed()
	becomesReversed := to.IsReversed()
	switch {
	case becomesReversed && !wasReversed:
		return effectRestore
	case wasReversed && !becomesReversed:
		return effectRededuct
	default:
		return effectNone
	}
}

// UpdateOrderStatus moves an order to status and applies the matching stock
// change in the same commit. A non-empty trackingNumber replaces the stored one.
// Any failure leaves both order and stock untouched and is returned.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, trackingNumber string) (*domain.Order, error) {
	o, err := s.updateOrderStatus(ctx, id, status, trackingNumber)
	metrics.RecordOrderOperation(opUpdateStatus, err)
	return o, err
}

func (s *OrderService) updateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, trackingNumber string) (*domain.Order, error) {
	status, err := domain.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}

	// Items never change after creation, so the product set read here is the
	// one the transaction has to watch.
	current, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, classify("load order", err)
	}
	lines := current.StockLines()
	refs := append(s.ledger.Refs(lines), s.orders.Ref(id))

	var (
		updated    *domain.Order
		previous   domain.OrderStatus
		effect     stockEffect
		shortfalls []invdomain.StockLine
	)
	err = s.store.Update(ctx, refs, func(ctx context.Context, tx docstore.Txn) error {
		o, err := s.orders.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}

		previous = o.Status
		effect = reconcile(o.Status, status)
		shortfalls = nil
		switch effect {
		case effectRestore:
			err = s.ledger.Release(ctx, tx, lines)
		case effectRededuct:
			shortfalls, err = s.ledger.Rededuct(ctx, tx, lines)
		}
		if err != nil {
			return err
		}

		o.Status = status
		if trackingNumber != "" {
			o.TrackingNumber = trackingNumber
		}
		if err := s.orders.SaveTx(tx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, classify("update order status", err)
	}

	switch effect {
	case effectRestore:
		metrics.RecordStockAdjustment(metrics.DirectionRestore, totalUnits(lines))
	case effectRededuct:
		metrics.RecordStockAdjustment(metrics.DirectionDeduct, totalUnits(lines))
		invservice.LogShortfalls(shortfalls, id)
	}

	logger.Named("orders").Info("Order status updated",
		zap.Int64("order_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)
	if previous != status && s.notifier != nil {
		s.notifier.StatusChanged(ctx, updated)
	}
	return updated, nil
}

// GetOrder returns one order or ErrOrderNotFound.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, classify("get order", err)
	}
	return o, nil
}

// ListOrders returns the orders matching filter, newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter domain.Filter) ([]domain.Order, error) {
	if filter.Limit < 0 {
		return nil, &domain.ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if filter.Status != "" {
		status, err := domain.ParseStatus(string(filter.Status))
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, classify("list orders", err)
	}
	return filter.Apply(orders), nil
}

// ListByStatus returns every order currently in status, newest first.
func (s *OrderService) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return nil, err
	}
	return s.ListOrders(ctx, domain.Filter{Status: status})
}

// ListRecent returns orders placed during the last sinceDays days, newest
// first, capped at limit when limit is positive.
func (s *OrderService) ListRecent(ctx context.Context, sinceDays, limit int) ([]domain.Order, error) {
	if sinceDays <= 0 {
		return nil, &domain.ValidationError{Field: "days", Reason: "must be positive"}
	}
	since := s.now().AddDate(0, 0, -sinceDays)
	return s.ListOrders(ctx, domain.Filter{Since: since, Limit: limit})
}

// classify passes domain failures through and wraps everything else as a
// persistence failure.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, invdomain.ErrProductNotFound),
		errors.Is(err, invdomain.ErrInsufficientStock),
		errors.Is(err, invdomain.ErrInvalidQuantity):
		return err
	default:
		return &domain.PersistenceError{Op: op, Err: err}
	}
}

func totalUnits(lines []invdomain.StockLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
