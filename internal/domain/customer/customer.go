// Package customer defines the customer identity and address shapes shared
// by the checkout pipeline and the storefront gateway.
package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNoPreferences is returned when a customer has no stored preferences.
var ErrNoPreferences = errors.New("no stored preferences")

// PreferenceStore persists Preferences keyed by customer id.
type PreferenceStore interface {
	Get(ctx context.Context, customerID string) (*Preferences, error)
	Save(ctx context.Context, prefs Preferences) error
}

// Identity is the session-scoped customer reference captured before
// checkout begins. It is never re-derived from address data.
type Identity struct {
	ID    string
	Email string
}

// Profile is the customer record as returned by the storefront.
type Profile struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Address is the canonical shipping address shape. Both one-off entered
// addresses and stored default addresses normalize into it; Address1, City
// and Country are required at normalization time.
type Address struct {
	Name     string
	Phone    string
	Address1 string
	Address2 string
	City     string
	Country  string
}

// DefaultAddress is a customer's previously designated primary shipping
// address as stored on the storefront. It carries the storefront address
// id on top of the plain address fields.
type DefaultAddress struct {
	ID string
	Address
}

// Preferences are the locally persisted per-customer settings. They live
// in the service's own database, not on the storefront, so a lost row
// only falls back to defaults.
type Preferences struct {
	CustomerID   string
	Email        string
	CurrencyCode string
	UpdatedAt    time.Time
}
