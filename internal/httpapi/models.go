package httpapi

import (
	"time"

	"github.com/retailhub/checkout-service/internal/domain/cart"
	"github.com/retailhub/checkout-service/internal/domain/checkout"
	"github.com/retailhub/checkout-service/internal/domain/customer"
	"github.com/retailhub/checkout-service/internal/domain/discount"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BeginCheckoutRequest opens an attempt for the identified customer.
type BeginCheckoutRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
}

// BeginCheckoutResponse returns the attempt handle and the prefetched
// customer context.
type BeginCheckoutResponse struct {
	AttemptID      string    `json:"attempt_id"`
	Customer       Profile   `json:"customer"`
	DefaultAddress Address   `json:"default_address"`
	Bag            []BagItem `json:"bag"`
	Subtotal       string    `json:"subtotal"`
}

// Profile mirrors customer.Profile on the wire.
type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// Address mirrors customer.Address / DefaultAddress on the wire. Address1,
// City and Country are the fields checkout refuses to default.
type Address struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

// BagItem is one bag line.
type BagItem struct {
	DraftOrderID string `json:"draft_order_id"`
	VariantID    string `json:"variant_id"`
	Title        string `json:"title,omitempty"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	LineTotal    string `json:"line_total"`
}

// UpdateBagItemRequest changes the quantity of one bag line.
type UpdateBagItemRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// SelectDiscountRequest applies a promo title to an attempt. An empty
// title clears the selection.
type SelectDiscountRequest struct {
	Title string `json:"title"`
}

// SubmitCheckoutRequest finishes an attempt.
type SubmitCheckoutRequest struct {
	PaymentMethod string   `json:"payment_method" validate:"required,oneof=card cash_on_delivery"`
	Address       *Address `json:"address,omitempty"`
}

// CheckoutStatusResponse reports an attempt's current stage.
type CheckoutStatusResponse struct {
	AttemptID string `json:"attempt_id"`
	Stage     string `json:"stage"`
	Error     string `json:"error,omitempty"`
}

// OutcomeResponse is the terminal result of a submitted attempt.
type OutcomeResponse struct {
	OrderID        string         `json:"order_id"`
	Paid           bool           `json:"paid"`
	InvoiceSent    bool           `json:"invoice_sent"`
	DiscountTagged bool           `json:"discount_tagged"`
	CleanedUp      bool           `json:"cleaned_up"`
	Deletes        []DeleteStatus `json:"deletes,omitempty"`
}

// DeleteStatus is the per-line cleanup result.
type DeleteStatus struct {
	DraftOrderID string `json:"draft_order_id"`
	Error        string `json:"error,omitempty"`
}

// DiscountRule is a cached promo definition.
type DiscountRule struct {
	Title       string `json:"title"`
	Value       string `json:"value"`
	ValueType   string `json:"value_type"`
	Description string `json:"description,omitempty"`
}

// PreferencesRequest stores per-customer settings.
type PreferencesRequest struct {
	Email        string `json:"email" validate:"omitempty,email"`
	CurrencyCode string `json:"currency_code" validate:"required,len=3,uppercase"`
}

// PreferencesResponse returns stored per-customer settings.
type PreferencesResponse struct {
	CustomerID   string    `json:"customer_id"`
	Email        string    `json:"email,omitempty"`
	CurrencyCode string    `json:"currency_code"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConvertResponse is a single currency conversion.
type ConvertResponse struct {
	Amount    string `json:"amount"`
	Code      string `json:"code"`
	Converted string `json:"converted"`
}

func profileToJSON(p customer.Profile) Profile {
	return Profile{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
	}
}

func defaultAddressToJSON(a customer.DefaultAddress) Address {
	addr := addressToJSON(a.Address)
	addr.ID = a.ID
	return addr
}

func addressToJSON(a customer.Address) Address {
	return Address{
		Name:     a.Name,
		Phone:    a.Phone,
		Address1: a.Address1,
		Address2: a.Address2,
		City:     a.City,
		Country:  a.Country,
	}
}

func addressJSONToEntity(a Address) customer.Address {
	return customer.Address{
		Name:     a.Name,
		Phone:    a.Phone,
		Address1: a.Address1,
		Address2: a.Address2,
		City:     a.City,
		Country:  a.Country,
	}
}

func bagItemToJSON(it cart.Item) BagItem {
	return BagItem{
		DraftOrderID: it.DraftOrderID,
		VariantID:    it.VariantID,
		Title:        it.Title,
		Quantity:     it.Quantity,
		UnitPrice:    it.UnitPrice.StringFixed(2),
		LineTotal:    it.LineTotal().StringFixed(2),
	}
}

func bagToJSON(items []cart.Item) []BagItem {
	out := make([]BagItem, 0, len(items))
	for _, it := range items {
		out = append(out, bagItemToJSON(it))
	}
	return out
}

func outcomeToJSON(o checkout.Outcome) OutcomeResponse {
	deletes := make([]DeleteStatus, 0, len(o.Deletes))
	for _, d := range o.Deletes {
		status := DeleteStatus{DraftOrderID: d.DraftOrderID}
		if d.Err != nil {
			status.Error = d.Err.Error()
		}
		deletes = append(deletes, status)
	}
	return OutcomeResponse{
		OrderID:        o.OrderID,
		Paid:           o.Paid,
		InvoiceSent:    o.InvoiceSent,
		DiscountTagged: o.DiscountTagged,
		CleanedUp:      o.CleanedUp(),
		Deletes:        deletes,
	}
}

func ruleToJSON(r discount.Rule) DiscountRule {
	return DiscountRule{
		Title:       r.Title,
		Value:       r.Value.String(),
		ValueType:   r.ValueType,
		Description: r.Description,
	}
}
