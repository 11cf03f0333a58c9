// Package cart holds the in-memory bag state a checkout attempt operates on.
package cart

import (
	"github.com/shopspring/decimal"
)

// Item identifies one purchasable line in the bag. Each line is backed by
// its own draft order on the storefront, so DraftOrderID doubles as the
// deletion key once the line has been ordered.
type Item struct {
	VariantID    string
	DraftOrderID string
	Title        string
	Quantity     int
	UnitPrice    decimal.Decimal
}

// LineTotal returns unit price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Snapshot is the immutable bag contents captured for the lifetime of one
// checkout attempt. An empty snapshot is valid and produces an order with
// no line items.
type Snapshot struct {
	Items []Item
}

// Subtotal returns the sum of all line totals.
func (s Snapshot) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range s.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Empty reports whether the snapshot holds no lines.
func (s Snapshot) Empty() bool { return len(s.Items) == 0 }
