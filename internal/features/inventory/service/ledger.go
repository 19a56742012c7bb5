package service

import (
	"context"
	"fmt"

	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/core/metrics"
	"storefront-orders/internal/features/inventory/domain"
	"storefront-orders/internal/features/inventory/ports"

	"go.uber.org/zap"
)

// StockLedger owns every mutation of product quantities.
//
// Each standalone operation is a single optimistic transaction on the product
// document, so concurrent deducts cannot lose updates. The transaction-scoped
// variants (Check, Reserve, Release, Rededuct) let the order service commit
// stock changes together with the order write.
type StockLedger struct {
	store    docstore.Transactor
	products ports.ProductRepository
}

// NewStockLedger creates a ledger over the product repository.
func NewStockLedger(store docstore.Transactor, products ports.ProductRepository) *StockLedger {
	return &StockLedger{
		store:    store,
		products: products,
	}
}

// Refs returns the documents a transaction over lines has to watch.
func (l *StockLedger) Refs(lines []domain.StockLine) []docstore.Ref {
	ids := domain.ProductIDs(lines)
	refs := make([]docstore.Ref, len(ids))
	for i, id := range ids {
		refs[i] = l.products.Ref(id)
	}
	return refs
}

// CheckAvailability verifies that every line can be covered by current stock.
// All lines are evaluated against one consistent read and nothing is written.
func (l *StockLedger) CheckAvailability(ctx context.Context, lines []domain.StockLine) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	return l.store.Update(ctx, l.Refs(lines), func(ctx context.Context, tx docstore.Txn) error {
		return l.Check(ctx, tx, lines)
	})
}

// Deduct removes quantity units from a product, clamping at zero.
// It returns the stock left after the deduction.
func (l *StockLedger) Deduct(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	var remaining int
	var shortfalls []domain.StockLine
	line := []domain.StockLine{{ProductID: productID, Quantity: quantity}}
	err := l.store.Update(ctx, l.Refs(line), func(ctx context.Context, tx docstore.Txn) error {
		var err error
		shortfalls, err = l.Rededuct(ctx, tx, line)
		if err != nil {
			return err
		}
		p, err := l.products.GetTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		remaining = p.Quantity
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deduct %s: %w", productID, err)
	}

	metrics.RecordStockAdjustment(metrics.DirectionDeduct, quantity)
	LogShortfalls(shortfalls, 0)
	return remaining, nil
}

// Restore gives quantity units back to a product and returns the new stock.
func (l *StockLedger) Restore(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	var restored int
	line := []domain.StockLine{{ProductID: productID, Quantity: quantity}}
	err := l.store.Update(ctx, l.Refs(line), func(ctx context.Context, tx docstore.Txn) error {
		if err := l.Release(ctx, tx, line); err != nil {
			return err
		}
		p, err := l.products.GetTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		restored = p.Quantity
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("restore %s: %w", productID, err)
	}

	metrics.RecordStockAdjustment(metrics.DirectionRestore, quantity)
	return restored, nil
}

// Check fails with ErrProductNotFound or an InsufficientStockError for the
// first product whose stock cannot cover the summed demand of lines.
func (l *StockLedger) Check(ctx context.Context, tx docstore.Txn, lines []domain.StockLine) error {
	_, _, err := l.load(ctx, tx, lines)
	return err
}

// Reserve checks every line and only then deducts all of them.
func (l *StockLedger) Reserve(ctx context.Context, tx docstore.Txn, lines []domain.StockLine) error {
	demand, products, err := l.load(ctx, tx, lines)
	if err != nil {
		return err
	}
	for i, p := range products {
		p.Quantity -= demand[i].Quantity
		if err := l.products.SaveTx(tx, p); err != nil {
			return err
		}
	}
	return nil
}

// Release gives the quantities of lines back to stock.
func (l *StockLedger) Release(ctx context.Context, tx docstore.Txn, lines []domain.StockLine) error {
	for _, line := range domain.Aggregate(lines) {
		p, err := l.products.GetTx(ctx, tx, line.ProductID)
		if err != nil {
			return err
		}
		p.Quantity += line.Quantity
		if err := l.products.SaveTx(tx, p); err != nil {
			return err
		}
	}
	return nil
}

// Rededuct takes the quantities of lines out of stock again without an
// availability check. Stock is clamped at zero; the units that could not be
// covered are returned so the caller can report them.
func (l *StockLedger) Rededuct(ctx context.Context, tx docstore.Txn, lines []domain.StockLine) ([]domain.StockLine, error) {
	var shortfalls []domain.StockLine
	for _, line := range domain.Aggregate(lines) {
		p, err := l.products.GetTx(ctx, tx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Quantity < line.Quantity {
			shortfalls = append(shortfalls, domain.StockLine{
				ProductID: p.ID,
				Quantity:  line.Quantity - p.Quantity,
			})
		}
		p.Quantity = max(0, p.Quantity-line.Quantity)
		if err := l.products.SaveTx(tx, p); err != nil {
			return nil, err
		}
	}
	return shortfalls, nil
}

func (l *StockLedger) load(ctx context.Context, tx docstore.Txn, lines []domain.StockLine) ([]domain.StockLine, []*domain.Product, error) {
	if err := validateLines(lines); err != nil {
		return nil, nil, err
	}

	demand := domain.Aggregate(lines)
	products := make([]*domain.Product, 0, len(demand))
	for _, d := range demand {
		p, err := l.products.GetTx(ctx, tx, d.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if p.Quantity < d.Quantity {
			return nil, nil, &domain.InsufficientStockError{
				ProductID: p.ID,
				Available: p.Quantity,
				Requested: d.Quantity,
			}
		}
		products = append(products, p)
	}
	return demand, products, nil
}

// LogShortfalls reports units a re-deduction could not take from stock.
func LogShortfalls(shortfalls []domain.StockLine, orderID int64) {
	for _, s := range shortfalls {
		logger.Named("ledger").Warn("Stock clamped at zero",
			zap.Int64("order_id", orderID),
			zap.String("product_id", s.ProductID),
			zap.Int("missing_units", s.Quantity),
		)
	}
}

func validateLines(lines []domain.StockLine) error {
	for _, l := range lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: product %s", domain.ErrInvalidQuantity, l.ProductID)
		}
	}
	return nil
}
