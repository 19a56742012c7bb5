package adapters

import (
	"context"
	"testing"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/features/orders/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*DocumentOrderRepository, *docstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := docstore.NewRedisStore("redis://"+mr.Addr(), 8)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewDocumentOrderRepository(store), store, mr
}

func sampleOrder(id int64) *domain.Order {
	return &domain.Order{
		ID:               id,
		CustomerID:       "c-1",
		CustomerUsername: "alice",
		Items: []domain.OrderItem{{
			ProductID:   "P1",
			ProductName: "Brake pad",
			Quantity:    2,
			UnitPrice:   decimal.NewFromInt(15),
			TotalPrice:  decimal.NewFromInt(30),
		}},
		TotalAmount:     decimal.NewFromInt(30),
		Status:          domain.StatusPending,
		PaymentMethod:   "card",
		ShippingAddress: "1 Main St",
		OrderDate:       1767225600000,
	}
}

func save(t *testing.T, repo *DocumentOrderRepository, store docstore.Transactor, o *domain.Order) {
	t.Helper()
	err := store.Update(context.Background(), []docstore.Ref{repo.Ref(o.ID)}, func(ctx context.Context, tx docstore.Txn) error {
		return repo.SaveTx(tx, o)
	})
	require.NoError(t, err)
}

func TestDocumentOrderRepository_SaveGet(t *testing.T) {
	repo, store, mr := newRepo(t)

	save(t, repo, store, sampleOrder(12))

	got, err := repo.Get(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.ID)
	assert.Equal(t, domain.CurrentSchemaVersion, got.SchemaVersion)
	assert.True(t, decimal.NewFromInt(30).Equal(got.TotalAmount))

	raw, err := mr.Get("orders/12")
	require.NoError(t, err)
	assert.Contains(t, raw, `"customerId":"c-1"`)
}

func TestDocumentOrderRepository_NotFound(t *testing.T) {
	repo, _, _ := newRepo(t)

	_, err := repo.Get(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestDocumentOrderRepository_GetRejectsCorruptDocument(t *testing.T) {
	repo, _, mr := newRepo(t)
	mr.Set("orders/3", `{"id":3,"status":"SOMEWHERE"}`)

	_, err := repo.Get(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, domain.IsDecodeError(err))
}

func TestDocumentOrderRepository_ListSkipsCorruptDocuments(t *testing.T) {
	repo, store, mr := newRepo(t)

	save(t, repo, store, sampleOrder(1))
	save(t, repo, store, sampleOrder(2))
	mr.Set("orders/3", `not json`)

	orders, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestDocumentOrderRepository_ExistsTx(t *testing.T) {
	repo, store, _ := newRepo(t)
	save(t, repo, store, sampleOrder(5))

	ctx := context.Background()
	refs := []docstore.Ref{repo.Ref(5), repo.Ref(6)}
	err := store.Update(ctx, refs, func(ctx context.Context, tx docstore.Txn) error {
		taken, err := repo.ExistsTx(ctx, tx, 5)
		require.NoError(t, err)
		assert.True(t, taken)

		free, err := repo.ExistsTx(ctx, tx, 6)
		require.NoError(t, err)
		assert.False(t, free)
		return nil
	})
	require.NoError(t, err)
}
