package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/features/orders/adapters"
	"storefront-orders/internal/features/orders/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCounter is a mock implementation of docstore.Counter
type MockCounter struct {
	mock.Mock
}

func (m *MockCounter) Incr(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCounter) RaiseTo(ctx context.Context, key string, floor int64) error {
	args := m.Called(ctx, key, floor)
	return args.Error(0)
}

func TestIDAllocator_Sequential(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := docstore.NewRedisStore("redis://"+mr.Addr(), 8)
	require.NoError(t, err)
	defer store.Close()

	ids := NewIDAllocator(store, adapters.NewDocumentOrderRepository(store))
	ctx := context.Background()

	assert.Equal(t, int64(1), ids.NextID(ctx))
	assert.Equal(t, int64(2), ids.NextID(ctx))
	assert.Equal(t, int64(3), ids.NextID(ctx))
}

func TestIDAllocator_Seed(t *testing.T) {
	f := newServiceFixture(t, map[string]int{"P1": 10})
	ctx := context.Background()

	for _, id := range []int64{4, 17, 9} {
		o := draft(domain.StatusPending, line{"P1", 1, 10})
		o.ID = id
		o.OrderDate = 1
		err := f.store.Update(ctx, []docstore.Ref{f.orders.Ref(id)}, func(ctx context.Context, tx docstore.Txn) error {
			return f.orders.SaveTx(tx, &o)
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.ids.Seed(ctx))
	assert.Equal(t, int64(18), f.ids.NextID(ctx))

	// Seeding never lowers the counter.
	f.mr.Set(OrderCounterKey, "50")
	require.NoError(t, f.ids.Seed(ctx))
	assert.Equal(t, int64(51), f.ids.NextID(ctx))
}

func TestIDAllocator_SeedEmptyStore(t *testing.T) {
	f := newServiceFixture(t, nil)

	require.NoError(t, f.ids.Seed(context.Background()))
	assert.False(t, f.mr.Exists(OrderCounterKey))
}

func TestIDAllocator_FallsBackToTimestamp(t *testing.T) {
	counter := new(MockCounter)
	down := errors.New("connection refused")
	counter.On("Incr", mock.Anything, OrderCounterKey).Return(int64(0), down)
	counter.On("RaiseTo", mock.Anything, OrderCounterKey, int64(1767225600000)).Return(nil)

	ids := NewIDAllocator(counter, nil)
	ids.now = func() time.Time { return time.UnixMilli(1767225600000) }

	assert.Equal(t, int64(1767225600000), ids.NextID(context.Background()))
	counter.AssertExpectations(t)
}
