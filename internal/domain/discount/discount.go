// Package discount models promo discounts and their validation against the
// locally cached rule set.
package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownDiscount is returned when a discount title is not present in
// the rule cache.
var ErrUnknownDiscount = errors.New("unknown discount")

// Discount is a selectable promo with a display title and a numeric value.
// A nil *Discount means "no discount selected" and is a legal state, not an
// error.
type Discount struct {
	Title string
	Value decimal.Decimal
}

// Rule is a cached discount definition as loaded by discount-ingest.
type Rule struct {
	Title       string
	Value       decimal.Decimal
	ValueType   string
	Description string
}

// Repository provides lookup and listing of cached discount rules.
type Repository interface {
	FindByTitle(ctx context.Context, title string) (*Rule, error)
	List(ctx context.Context) ([]Rule, error)
}
