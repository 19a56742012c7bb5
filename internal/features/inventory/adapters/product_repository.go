package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/features/inventory/domain"
)

// ProductsCollection is the document collection holding products.
const ProductsCollection = "products"

// DocumentProductRepository implements ports.ProductRepository on a docstore.Store.
type DocumentProductRepository struct {
	store docstore.Store
}

// NewDocumentProductRepository creates a repository over store.
func NewDocumentProductRepository(store docstore.Store) *DocumentProductRepository {
	return &DocumentProductRepository{store: store}
}

// Ref returns the document reference of a product.
func (r *DocumentProductRepository) Ref(id string) docstore.Ref {
	return docstore.Ref{Collection: ProductsCollection, ID: id}
}

// Get loads one product.
func (r *DocumentProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	data, err := r.store.Get(ctx, r.Ref(id))
	if err != nil {
		return nil, mapNotFound(err, id)
	}
	return decodeProduct(data)
}

// List loads every product sorted by id.
func (r *DocumentProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.store.List(ctx, ProductsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProduct(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// Save overwrites a product document.
func (r *DocumentProductRepository) Save(ctx context.Context, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	if err := r.store.Set(ctx, r.Ref(p.ID), data); err != nil {
		return fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	return nil
}

// GetTx loads a product inside a transaction.
func (r *DocumentProductRepository) GetTx(ctx context.Context, tx docstore.Txn, id string) (*domain.Product, error) {
	data, err := tx.Get(ctx, r.Ref(id))
	if err != nil {
		return nil, mapNotFound(err, id)
	}
	return decodeProduct(data)
}

// SaveTx stages a product write inside a transaction.
func (r *DocumentProductRepository) SaveTx(tx docstore.Txn, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	tx.Set(r.Ref(p.ID), data)
	return nil
}

func mapNotFound(err error, id string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return fmt.Errorf("failed to load product %s: %w", id, err)
}

func decodeProduct(data []byte) (*domain.Product, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p domain.Product
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("stored product is corrupt: %w", err)
	}
	return &p, nil
}
