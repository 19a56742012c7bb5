package service

import (
	"context"
	"errors"
	"testing"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/features/inventory/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTransactor struct{ err error }

func (f failingTransactor) Update(context.Context, []docstore.Ref, docstore.TxnFunc) error {
	return f.err
}

func TestCatalogService_UpsertProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateTakesQuantity", func(t *testing.T) {
		f := newLedgerFixture(t, nil)
		svc := NewCatalogService(f.store, f.repo, f.ledger)

		p, err := svc.UpsertProduct(ctx, domain.Product{ID: " P1 ", Name: "Spark plug", Quantity: 3, Price: decimal.NewFromInt(4)})
		require.NoError(t, err)
		assert.Equal(t, "P1", p.ID)
		assert.Equal(t, 3, p.Quantity)
		assert.Equal(t, 3, f.stock(t, "P1"))
	})

	t.Run("UpdateKeepsStoredQuantity", func(t *testing.T) {
		f := newLedgerFixture(t, map[string]int{"P1": 7})
		svc := NewCatalogService(f.store, f.repo, f.ledger)

		p, err := svc.UpsertProduct(ctx, domain.Product{ID: "P1", Name: "Iridium plug", Quantity: 100, ShelfLocation: "B2"})
		require.NoError(t, err)
		assert.Equal(t, 7, p.Quantity)

		stored, err := svc.GetProduct(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, "Iridium plug", stored.Name)
		assert.Equal(t, "B2", stored.ShelfLocation)
		assert.Equal(t, 7, stored.Quantity)
	})

	t.Run("Invalid", func(t *testing.T) {
		f := newLedgerFixture(t, nil)
		svc := NewCatalogService(f.store, f.repo, f.ledger)

		_, err := svc.UpsertProduct(ctx, domain.Product{ID: "P1", Name: "Spark plug", Quantity: -1})
		assert.ErrorIs(t, err, domain.ErrInvalidProduct)

		_, err = svc.GetProduct(ctx, "P1")
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("StoreError", func(t *testing.T) {
		f := newLedgerFixture(t, nil)
		svc := NewCatalogService(failingTransactor{err: errors.New("db error")}, f.repo, f.ledger)

		_, err := svc.UpsertProduct(ctx, domain.Product{ID: "P1", Name: "Spark plug"})
		assert.ErrorContains(t, err, "db error")
	})
}

func TestCatalogService_Restock(t *testing.T) {
	f := newLedgerFixture(t, map[string]int{"P1": 2})
	svc := NewCatalogService(f.store, f.repo, f.ledger)
	ctx := context.Background()

	p, err := svc.Restock(ctx, "P1", 5)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Quantity)
	assert.Equal(t, 7, f.stock(t, "P1"))

	_, err = svc.Restock(ctx, "P1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.Restock(ctx, "P404", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	assert.Equal(t, 7, f.stock(t, "P1"))
}

func TestCatalogService_GetAndList(t *testing.T) {
	f := newLedgerFixture(t, map[string]int{"P2": 1, "P1": 4})
	svc := NewCatalogService(f.store, f.repo, f.ledger)
	ctx := context.Background()

	_, err := svc.GetProduct(ctx, "P404")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "P1", products[0].ID)
	assert.Equal(t, "P2", products[1].ID)
}
