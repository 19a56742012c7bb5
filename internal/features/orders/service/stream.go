package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/orders/domain"
	"storefront-orders/internal/features/orders/ports"

	"go.uber.org/zap"
)

var (
	// ErrStreamStopped is returned by Start once the subscription was stopped.
	ErrStreamStopped = errors.New("order stream already stopped")
	// ErrFeedClosed ends a stream whose change feed went away.
	ErrFeedClosed = errors.New("order change feed closed")
)

// OrderStream publishes full order list snapshots to subscribers.
type OrderStream struct {
	orders ports.OrderRepository
	buffer int
}

// NewOrderStream creates a stream over the order repository. buffer is the
// number of undelivered snapshots each subscription keeps.
func NewOrderStream(orders ports.OrderRepository, buffer int) *OrderStream {
	return &OrderStream{
		orders: orders,
		buffer: max(1, buffer),
	}
}

// StreamAll subscribes to every order.
func (s *OrderStream) StreamAll(ctx context.Context) ports.SnapshotStream {
	return s.open(ctx, domain.Filter{})
}

// StreamByCustomer subscribes to the orders of one customer.
func (s *OrderStream) StreamByCustomer(ctx context.Context, customerID string) ports.SnapshotStream {
	return s.open(ctx, domain.Filter{CustomerID: customerID})
}

func (s *OrderStream) open(ctx context.Context, filter domain.Filter) *Subscription {
	return &Subscription{
		parent: ctx,
		orders: s.orders,
		filter: filter,
		out:    make(chan []domain.Order, s.buffer),
		done:   make(chan struct{}),
	}
}

// Subscription delivers a snapshot when started and another one after every
// change to the orders collection. Snapshots are sorted newest first. When the
// consumer falls behind, the oldest undelivered snapshot is discarded.
//
// The Snapshots channel is closed when the subscription ends, after which Err
// reports why: nil after Stop or context cancellation, the store error otherwise.
type Subscription struct {
	parent context.Context
	orders ports.OrderRepository
	filter domain.Filter
	out    chan []domain.Order
	done   chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	err     error
}

// Start opens the change subscription and begins delivering snapshots. Writes
// committed after Start returns are always reflected in a later snapshot.
// Calling Start on a running subscription does nothing.
func (s *Subscription) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStreamStopped
	}
	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(s.parent)
	feed, err := s.orders.Watch(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch orders: %w", err)
	}

	s.started = true
	s.cancel = cancel
	go s.run(ctx, feed)
	return nil
}

// Stop ends the subscription and waits for the delivery goroutine to exit.
// Snapshots not yet received are dropped. Stop may be called any number of times.
func (s *Subscription) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	if !started {
		close(s.out)
		close(s.done)
		return
	}

	cancel()
	<-s.done
	for range s.out {
	}
}

// Snapshots returns the delivery channel.
func (s *Subscription) Snapshots() <-chan []domain.Order {
	return s.out
}

// Err returns the error that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) run(ctx context.Context, feed docstore.Subscription) {
	defer close(s.done)
	defer close(s.out)
	defer feed.Close()

	if !s.emit(ctx) {
		return
	}

	changes := feed.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				s.fail(ctx, ErrFeedClosed)
				return
			}
			// Several writes in a row only need one snapshot.
			if !drain(changes) {
				s.fail(ctx, ErrFeedClosed)
				return
			}
			if !s.emit(ctx) {
				return
			}
		}
	}
}

// emit loads and sends one snapshot. It reports false when the stream has to end.
func (s *Subscription) emit(ctx context.Context) bool {
	orders, err := s.orders.List(ctx)
	if err != nil {
		s.fail(ctx, err)
		return false
	}
	snapshot := s.filter.Apply(orders)

	for {
		select {
		case s.out <- snapshot:
			return true
		case <-ctx.Done():
			return false
		default:
			select {
			case <-s.out:
			default:
			}
		}
	}
}

func (s *Subscription) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	logger.Named("orders").Warn("Order stream terminated", zap.Error(err))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// drain consumes pending notifications. It reports false if the feed closed.
func drain(changes <-chan docstore.Change) bool {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}
