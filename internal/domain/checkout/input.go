package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/retailhub/checkout-service/internal/domain/cart"
	"github.com/retailhub/checkout-service/internal/domain/customer"
	"github.com/retailhub/checkout-service/internal/domain/discount"
)

// MissingFieldError is the fail-fast fault raised when a chosen address
// source lacks a required field. Callers pre-validate or accept the
// failure; normalization never substitutes defaults.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("address field %q is required", e.Field)
}

// ErrNoAddressSource is returned when neither an entered address nor a
// default address was provided. The caller contract is exactly one source.
var ErrNoAddressSource = &MissingFieldError{Field: "address"}

// CustomerInput is the customer reference slot of a draft order payload.
// FirstName carries the shipping display name taken from the address
// source, not a strict legal first name.
type CustomerInput struct {
	ID        string
	Email     string
	FirstName string
	Phone     string
}

// AddressInput is the canonical shipping address slot of a draft order
// payload.
type AddressInput struct {
	Address1 string
	Address2 string
	City     string
	Country  string
	Phone    string
}

// DiscountInput is the optional discount application sub-request. Its
// absence (a nil pointer) means no discount, never a zero value.
type DiscountInput struct {
	Value     decimal.Decimal
	ValueType string
}

// LineItemInput is one draft order line derived from a bag item.
type LineItemInput struct {
	VariantID string
	Quantity  int
}

// DraftOrderInput is the assembled order-creation payload. It is built
// fresh per checkout attempt, never mutated after submission, and
// submitted exactly once.
type DraftOrderInput struct {
	Customer        CustomerInput
	Email           string
	LineItems       []LineItemInput
	ShippingAddress AddressInput
	AppliedDiscount *DiscountInput
}

// NormalizeAddress builds the canonical address from exactly one of the
// two possible sources and copies the contact fields into the customer
// input. The caller guarantees at most one source is non-nil; entered wins
// when both are set anyway. Address1, City and Country must be present on
// the chosen source or normalization fails immediately.
func NormalizeAddress(entered *customer.Address, def *customer.DefaultAddress, ident *CustomerInput) (AddressInput, error) {
	var src *customer.Address
	switch {
	case entered != nil:
		src = entered
	case def != nil:
		src = &def.Address
	default:
		return AddressInput{}, ErrNoAddressSource
	}

	switch {
	case src.Address1 == "":
		return AddressInput{}, &MissingFieldError{Field: "address1"}
	case src.City == "":
		return AddressInput{}, &MissingFieldError{Field: "city"}
	case src.Country == "":
		return AddressInput{}, &MissingFieldError{Field: "country"}
	}

	ident.FirstName = src.Name
	ident.Phone = src.Phone

	return AddressInput{
		Address1: src.Address1,
		Address2: src.Address2,
		City:     src.City,
		Country:  src.Country,
		Phone:    src.Phone,
	}, nil
}

// DiscountInputFrom maps an optional discount selection to its payload
// sub-request: value from the discount, value type tagged with the title.
// No selection maps to no sub-request.
func DiscountInputFrom(d *discount.Discount) *DiscountInput {
	if d == nil {
		return nil
	}
	return &DiscountInput{
		Value:     d.Value,
		ValueType: d.Title,
	}
}

// BuildDraftOrderInput assembles the order-creation payload from the bag
// snapshot, the normalized address and the session identity. An empty bag
// yields a payload with no line items, not an error. Customer id and email
// always come from the session identity captured earlier in the flow.
func BuildDraftOrderInput(items []cart.Item, addr AddressInput, ident CustomerInput, selected *discount.Discount) DraftOrderInput {
	lines := make([]LineItemInput, len(items))
	for i, it := range items {
		lines[i] = LineItemInput{
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		}
	}

	return DraftOrderInput{
		Customer:        ident,
		Email:           ident.Email,
		LineItems:       lines,
		ShippingAddress: addr,
		AppliedDiscount: DiscountInputFrom(selected),
	}
}
