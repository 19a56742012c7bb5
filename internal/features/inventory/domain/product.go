package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound is returned when a referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is matched by every InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidProduct is returned when a product record fails validation.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInvalidQuantity is returned for stock adjustments of zero or fewer units.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Product is a sellable item with a single stock counter.
type Product struct {
	// ID is the catalogue identifier.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Price is the current selling price per unit.
	Price decimal.Decimal `json:"price"`
	// Quantity is the number of units in stock. Never negative.
	Quantity int `json:"quantity"`
	// Cost is the purchase cost per unit.
	Cost decimal.Decimal `json:"cost"`
	// ShelfLocation tells staff where to pick the product.
	ShelfLocation string `json:"shelfLocation,omitempty"`
}

// Validate checks the invariants every stored product must satisfy.
func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	case strings.ContainsAny(p.ID, "/*?[]"):
		return fmt.Errorf("%w: id %q contains reserved characters", ErrInvalidProduct, p.ID)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidProduct)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case p.Cost.IsNegative():
		return fmt.Errorf("%w: cost must not be negative", ErrInvalidProduct)
	}
	return nil
}

// InsufficientStockError names the product that cannot cover a request.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StockLine is a quantity of one product that an order reserves or gives back.
type StockLine struct {
	ProductID string
	Quantity  int
}

// Aggregate merges lines of the same product, keeping first-seen order.
// An order that lists a product twice must be checked against the summed demand.
func Aggregate(lines []StockLine) []StockLine {
	index := make(map[string]int, len(lines))
	out := make([]StockLine, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// ProductIDs returns the distinct product ids of lines, sorted.
func ProductIDs(lines []StockLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Strings(ids)
	return ids
}
