package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailhub/checkout-service/internal/domain/customer"
)

const (
	getPreferencesSQL = `SELECT customer_id, email, currency_code, updated_at
		FROM profiles WHERE customer_id = $1`

	savePreferencesSQL = `INSERT INTO profiles (customer_id, email, currency_code, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (customer_id) DO UPDATE SET
			email = EXCLUDED.email,
			currency_code = EXCLUDED.currency_code,
			updated_at = now()`
)

var _ customer.PreferenceStore = (*PreferenceRepository)(nil)

// PreferenceRepository implements customer.PreferenceStore backed by
// PostgreSQL.
type PreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPreferenceRepository returns a PreferenceRepository that uses the given pool.
func NewPreferenceRepository(pool *pgxpool.Pool) *PreferenceRepository {
	return &PreferenceRepository{pool: pool}
}

// Get returns the stored preferences for a customer. Returns
// customer.ErrNoPreferences when the customer has never saved any.
func (r *PreferenceRepository) Get(ctx context.Context, customerID string) (*customer.Preferences, error) {
	rows, err := r.pool.Query(ctx, getPreferencesSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting preferences for %q: %w", customerID, err)
	}

	prefs, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (customer.Preferences, error) {
		var p customer.Preferences
		err := row.Scan(&p.CustomerID, &p.Email, &p.CurrencyCode, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNoPreferences
		}
		return nil, fmt.Errorf("getting preferences for %q: %w", customerID, err)
	}
	return &prefs, nil
}

// Save upserts the preferences row for prefs.CustomerID.
func (r *PreferenceRepository) Save(ctx context.Context, prefs customer.Preferences) error {
	_, err := r.pool.Exec(ctx, savePreferencesSQL,
		prefs.CustomerID, prefs.Email, prefs.CurrencyCode,
	)
	if err != nil {
		return fmt.Errorf("saving preferences for %q: %w", prefs.CustomerID, err)
	}
	return nil
}
