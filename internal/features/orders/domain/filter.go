package domain

import (
	"sort"
	"time"
)

// Filter narrows order listings. Zero fields do not filter.
type Filter struct {
	CustomerID string
	Status     OrderStatus
	// Since and Until bound OrderDate, both inclusive.
	Since time.Time
	Until time.Time
	// Limit caps the result after sorting; 0 means no cap.
	Limit int
}

// Matches reports whether o passes every set criterion.
func (f Filter) Matches(o *Order) bool {
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && o.OrderDate < f.Since.UnixMilli() {
		return false
	}
	if !f.Until.IsZero() && o.OrderDate > f.Until.UnixMilli() {
		return false
	}
	return true
}

// Apply filters orders, sorts them newest first and applies the limit.
func (f Filter) Apply(orders []Order) []Order {
	out := make([]Order, 0, len(orders))
	for i := range orders {
		if f.Matches(&orders[i]) {
			out = append(out, orders[i])
		}
	}
	SortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// SortNewestFirst orders by OrderDate descending, newer ids first on ties.
func SortNewestFirst(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].OrderDate != orders[j].OrderDate {
			return orders[i].OrderDate > orders[j].OrderDate
		}
		return orders[i].ID > orders[j].ID
	})
}
