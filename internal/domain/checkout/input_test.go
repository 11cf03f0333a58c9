package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhub/checkout-service/internal/domain/cart"
	"github.com/retailhub/checkout-service/internal/domain/customer"
	"github.com/retailhub/checkout-service/internal/domain/discount"
)

func enteredAddress() *customer.Address {
	return &customer.Address{
		Name:     "ahmed",
		Phone:    "123871231",
		Address1: "addr1",
		Address2: "addr2",
		City:     "Alexandria",
		Country:  "EG",
	}
}

func TestNormalizeAddress_EnteredSource(t *testing.T) {
	ident := CustomerInput{ID: "123", Email: "john@example.com"}

	addr, err := NormalizeAddress(enteredAddress(), nil, &ident)
	require.NoError(t, err)

	assert.Equal(t, "addr1", addr.Address1)
	assert.Equal(t, "Alexandria", addr.City)
	assert.Equal(t, "EG", addr.Country)
	assert.Equal(t, "ahmed", ident.FirstName)
	assert.Equal(t, "123871231", ident.Phone)
}

func TestNormalizeAddress_DefaultSource(t *testing.T) {
	def := &customer.DefaultAddress{ID: "addr-9", Address: *enteredAddress()}
	ident := CustomerInput{ID: "123", Email: "ahmed@gmail.com"}

	addr, err := NormalizeAddress(nil, def, &ident)
	require.NoError(t, err)

	assert.Equal(t, "addr1", addr.Address1)
	assert.Equal(t, "Alexandria", addr.City)
	assert.Equal(t, "ahmed", ident.FirstName)
	assert.Equal(t, "123871231", ident.Phone)
}

func TestNormalizeAddress_MissingRequiredField(t *testing.T) {
	for _, tc := range []struct {
		field string
		mut   func(*customer.Address)
	}{
		{"address1", func(a *customer.Address) { a.Address1 = "" }},
		{"city", func(a *customer.Address) { a.City = "" }},
		{"country", func(a *customer.Address) { a.Country = "" }},
	} {
		t.Run(tc.field, func(t *testing.T) {
			src := enteredAddress()
			tc.mut(src)
			ident := CustomerInput{ID: "123"}

			_, err := NormalizeAddress(src, nil, &ident)

			var mfe *MissingFieldError
			require.ErrorAs(t, err, &mfe)
			assert.Equal(t, tc.field, mfe.Field)
		})
	}
}

func TestNormalizeAddress_NoSource(t *testing.T) {
	ident := CustomerInput{ID: "123"}
	_, err := NormalizeAddress(nil, nil, &ident)
	require.ErrorIs(t, err, ErrNoAddressSource)
}

func TestDiscountInputFrom_Selected(t *testing.T) {
	d := &discount.Discount{Title: "SAVE10", Value: decimal.NewFromInt(10)}

	in := DiscountInputFrom(d)
	require.NotNil(t, in)
	assert.True(t, decimal.NewFromInt(10).Equal(in.Value))
	assert.Equal(t, "SAVE10", in.ValueType)
}

func TestDiscountInputFrom_NoneSelected(t *testing.T) {
	assert.Nil(t, DiscountInputFrom(nil))
}

func TestBuildDraftOrderInput_LineItemsMatchBag(t *testing.T) {
	items := []cart.Item{
		{VariantID: "v1", DraftOrderID: "d1", Quantity: 4},
		{VariantID: "v2", DraftOrderID: "d2", Quantity: 1},
	}
	ident := CustomerInput{ID: "123", Email: "ahmed@gmail.com"}

	in := BuildDraftOrderInput(items, AddressInput{Address1: "addr1"}, ident, nil)

	require.Len(t, in.LineItems, 2)
	assert.Equal(t, LineItemInput{VariantID: "v1", Quantity: 4}, in.LineItems[0])
	assert.Equal(t, LineItemInput{VariantID: "v2", Quantity: 1}, in.LineItems[1])
	assert.Equal(t, "123", in.Customer.ID)
	assert.Equal(t, "ahmed@gmail.com", in.Email)
	assert.Nil(t, in.AppliedDiscount)
}

func TestBuildDraftOrderInput_EmptyBagIsLegal(t *testing.T) {
	ident := CustomerInput{ID: "123", Email: "a@b.c"}

	in := BuildDraftOrderInput(nil, AddressInput{}, ident, nil)

	assert.Empty(t, in.LineItems)
	assert.Equal(t, "123", in.Customer.ID)
	assert.Equal(t, "a@b.c", in.Email)
}

func TestBuildDraftOrderInput_CarriesDiscount(t *testing.T) {
	d := &discount.Discount{Title: "SAVE10", Value: decimal.RequireFromString("10.0")}
	ident := CustomerInput{ID: "123", Email: "a@b.c"}

	in := BuildDraftOrderInput(nil, AddressInput{}, ident, d)

	require.NotNil(t, in.AppliedDiscount)
	assert.Equal(t, "SAVE10", in.AppliedDiscount.ValueType)
	assert.True(t, decimal.RequireFromString("10.0").Equal(in.AppliedDiscount.Value))
}
