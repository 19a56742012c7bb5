package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ComputeTotals checks every line total against unit price times quantity and
// returns the sum of the line totals.
func ComputeTotals(items []OrderItem) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i, it := range items {
		want := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if !it.TotalPrice.Equal(want) {
			return decimal.Zero, invalid(
				fmt.Sprintf("items[%d].totalPrice", i),
				fmt.Sprintf("got %s, want %s (%s x %d)", it.TotalPrice, want, it.UnitPrice, it.Quantity),
			)
		}
		sum = sum.Add(it.TotalPrice)
	}
	return sum, nil
}

// Validate rejects drafts that must not be persisted.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.CustomerID) == "" {
		return invalid("customerId", "is required")
	}
	if strings.TrimSpace(o.PaymentMethod) == "" {
		return invalid("paymentMethod", "is required")
	}
	if strings.TrimSpace(o.ShippingAddress) == "" {
		return invalid("shippingAddress", "is required")
	}
	if !o.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", o.Status), sentinel: ErrInvalidStatus}
	}
	if len(o.Items) == 0 {
		return invalid("items", "at least one item is required")
	}

	for i, it := range o.Items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case strings.TrimSpace(it.ProductID) == "":
			return invalid(field+".productId", "is required")
		case it.Quantity <= 0:
			return invalid(field+".quantity", "must be positive")
		case it.UnitPrice.IsNegative():
			return invalid(field+".unitPrice", "must not be negative")
		}
	}

	total, err := ComputeTotals(o.Items)
	if err != nil {
		return err
	}
	if !o.TotalAmount.Equal(total) {
		return invalid("totalAmount", fmt.Sprintf("got %s, items sum to %s", o.TotalAmount, total))
	}
	return nil
}
