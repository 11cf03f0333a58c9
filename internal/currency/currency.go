// Package currency converts storefront amounts into the customer's
// preferred display currency using a locally cached rate table.
package currency

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUnknownCurrency is returned when no rate is stored for a code.
var ErrUnknownCurrency = errors.New("unknown currency code")

// Store persists conversion rates between refreshes.
type Store interface {
	Rates(ctx context.Context) (map[string]decimal.Decimal, time.Time, error)
	ReplaceRates(ctx context.Context, rates map[string]decimal.Decimal) error
}

// Fetcher retrieves a fresh rate table from an external provider. Rates
// are multipliers from the base currency to the keyed code.
type Fetcher interface {
	FetchRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Service serves conversions from the store, refreshing the table when it
// goes stale.
type Service struct {
	store   Store
	fetcher Fetcher
	lg      *zap.Logger
	now     func() time.Time
}

// NewService builds a Service over store and fetcher.
func NewService(store Store, fetcher Fetcher, lg *zap.Logger) *Service {
	return &Service{
		store:   store,
		fetcher: fetcher,
		lg:      lg.Named("currency"),
		now:     time.Now,
	}
}

// ShouldRefresh reports whether the rate table needs refetching. Rates are
// refreshed at most once per calendar day: the stored refresh day acts as
// the marker, so the first request of a new day triggers the fetch.
func ShouldRefresh(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	y1, d1 := last.Year(), last.YearDay()
	y2, d2 := now.Year(), now.YearDay()
	return y1 != y2 || d1 != d2
}

// RefreshIfStale fetches and stores a fresh rate table when the stored one
// is from a previous day. A fetch failure with usable stored rates is
// logged and swallowed so conversions keep working on stale data.
func (s *Service) RefreshIfStale(ctx context.Context) error {
	_, refreshed, err := s.store.Rates(ctx)
	if err != nil {
		return errors.Wrap(err, "load stored rates")
	}
	if !ShouldRefresh(refreshed, s.now()) {
		return nil
	}

	rates, err := s.fetcher.FetchRates(ctx)
	if err != nil {
		if refreshed.IsZero() {
			return errors.Wrap(err, "fetch rates")
		}
		s.lg.Warn("rate refresh failed, serving stale rates",
			zap.Time("refreshed_at", refreshed),
			zap.Error(err),
		)
		return nil
	}

	if err := s.store.ReplaceRates(ctx, rates); err != nil {
		return errors.Wrap(err, "store rates")
	}
	s.lg.Info("rates refreshed", zap.Int("count", len(rates)))
	return nil
}

// Convert converts a base-currency amount into code. The base currency
// itself always converts with rate 1.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, error) {
	if err := s.RefreshIfStale(ctx); err != nil {
		return decimal.Decimal{}, err
	}

	rates, _, err := s.store.Rates(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "load stored rates")
	}

	rate, ok := rates[code]
	if !ok {
		return decimal.Decimal{}, errors.Wrapf(ErrUnknownCurrency, "%q", code)
	}
	return amount.Mul(rate).Round(2), nil
}

// Codes lists the currency codes conversions are available for.
func (s *Service) Codes(ctx context.Context) ([]string, error) {
	rates, _, err := s.store.Rates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load stored rates")
	}
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	return codes, nil
}
