package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/features/inventory/domain"
	"storefront-orders/internal/features/inventory/ports"
)

// CatalogService implements ports.ProductCatalog.
// Stock only moves through the ledger: an upsert sets the quantity of a new
// product and never touches the quantity of an existing one.
type CatalogService struct {
	store  docstore.Transactor
	repo   ports.ProductRepository
	ledger *StockLedger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store docstore.Transactor, repo ports.ProductRepository, ledger *StockLedger) *CatalogService {
	return &CatalogService{
		store:  store,
		repo:   repo,
		ledger: ledger,
	}
}

// UpsertProduct validates and stores a product. For an existing product the
// descriptive fields are replaced and the stored quantity is kept.
func (s *CatalogService) UpsertProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.ID = strings.TrimSpace(p.ID)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var saved domain.Product
	err := s.store.Update(ctx, []docstore.Ref{s.repo.Ref(p.ID)}, func(ctx context.Context, tx docstore.Txn) error {
		saved = p
		current, err := s.repo.GetTx(ctx, tx, p.ID)
		switch {
		case err == nil:
			saved.Quantity = current.Quantity
		case !errors.Is(err, domain.ErrProductNotFound):
			return err
		}
		return s.repo.SaveTx(tx, &saved)
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to save product: %w", err)
	}
	return &saved, nil
}

// Restock adds units to an existing product's stock.
func (s *CatalogService) Restock(ctx context.Context, id string, units int) (*domain.Product, error) {
	if _, err := s.ledger.Restore(ctx, id, units); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// GetProduct returns one product or ErrProductNotFound.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.Get(ctx, id)
}

// ListProducts returns every product sorted by id.
func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}
