package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLineTotal(t *testing.T) {
	it := Item{VariantID: "v1", Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")}
	assert.True(t, decimal.RequireFromString("59.97").Equal(it.LineTotal()))
}

func TestSubtotal(t *testing.T) {
	snap := Snapshot{Items: []Item{
		{VariantID: "v1", Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
		{VariantID: "v2", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
	}}
	assert.True(t, decimal.RequireFromString("44.98").Equal(snap.Subtotal()))
}

func TestEmptySnapshot(t *testing.T) {
	var snap Snapshot
	assert.True(t, snap.Empty())
	assert.True(t, snap.Subtotal().IsZero())
}
