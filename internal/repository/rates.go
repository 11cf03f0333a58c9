package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/retailhub/checkout-service/internal/currency"
)

const (
	listRatesSQL = `SELECT code, rate, refreshed_at FROM currency_rates`

	deleteRatesSQL = `DELETE FROM currency_rates`

	insertRateSQL = `INSERT INTO currency_rates (code, rate, refreshed_at)
		VALUES ($1, $2, now())`
)

var _ currency.Store = (*RateRepository)(nil)

// RateRepository implements currency.Store backed by PostgreSQL.
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository returns a RateRepository that uses the given pool.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// Rates returns all stored conversion rates keyed by currency code, along
// with the time of the last refresh. An empty store returns a zero time.
func (r *RateRepository) Rates(ctx context.Context) (map[string]decimal.Decimal, time.Time, error) {
	rows, err := r.pool.Query(ctx, listRatesSQL)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("listing currency rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]decimal.Decimal)
	var refreshed time.Time
	for rows.Next() {
		var (
			code string
			rate decimal.Decimal
			at   time.Time
		)
		if err := rows.Scan(&code, &rate, &at); err != nil {
			return nil, time.Time{}, fmt.Errorf("scanning currency rate: %w", err)
		}
		rates[code] = rate
		if at.After(refreshed) {
			refreshed = at
		}
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("listing currency rates: %w", err)
	}
	return rates, refreshed, nil
}

// ReplaceRates swaps the whole rate table for the given set in one
// transaction, stamping every row with the current time.
func (r *RateRepository) ReplaceRates(ctx context.Context, rates map[string]decimal.Decimal) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteRatesSQL); err != nil {
			return err
		}
		for code, rate := range rates {
			if _, err := tx.Exec(ctx, insertRateSQL, code, rate); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing currency rates: %w", err)
	}
	return nil
}
