package ports

import (
	"context"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/features/inventory/domain"
)

// ProductRepository persists products as documents under "products/{id}".
// The *Tx variants participate in a docstore transaction opened by the caller.
type ProductRepository interface {
	Ref(id string) docstore.Ref
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Save(ctx context.Context, p *domain.Product) error

	GetTx(ctx context.Context, tx docstore.Txn, id string) (*domain.Product, error)
	SaveTx(tx docstore.Txn, p *domain.Product) error
}

// ProductCatalog is the primary port for product administration.
type ProductCatalog interface {
	// UpsertProduct sets the quantity only when it creates the product.
	UpsertProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	Restock(ctx context.Context, id string, units int) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}
