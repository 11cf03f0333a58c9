// seed-db populates the local store with development data: a couple of
// discount rules, a demo customer preference row and a static currency
// rate table.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/retailhub/checkout-service/internal/domain/customer"
	"github.com/retailhub/checkout-service/internal/domain/discount"
	"github.com/retailhub/checkout-service/internal/repository"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedDiscounts(ctx, repository.NewDiscountRepository(pool)); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	if err := seedPreferences(ctx, repository.NewPreferenceRepository(pool)); err != nil {
		return errors.Wrap(err, "seed preferences")
	}

	if err := seedRates(ctx, repository.NewRateRepository(pool)); err != nil {
		return errors.Wrap(err, "seed currency rates")
	}

	return nil
}

func seedDiscounts(ctx context.Context, repo *repository.DiscountRepository) error {
	slog.Info("seeding discounts")

	rules := []discount.Rule{
		{
			Title:       "SAVE10",
			Value:       decimal.NewFromInt(10),
			ValueType:   "SAVE10",
			Description: "10% off entire order",
		},
		{
			Title:       "HAPPYHRS",
			Value:       decimal.NewFromInt(18),
			ValueType:   "HAPPYHRS",
			Description: "Happy Hours: 18% off",
		},
	}

	for _, rule := range rules {
		if err := repo.Upsert(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert discount %s", rule.Title)
		}
		slog.Info("upserted discount", slog.String("title", rule.Title))
	}

	return nil
}

func seedPreferences(ctx context.Context, repo *repository.PreferenceRepository) error {
	slog.Info("seeding demo customer preferences")

	prefs := customer.Preferences{
		CustomerID:   "demo",
		Email:        "demo@example.com",
		CurrencyCode: "USD",
	}
	if err := repo.Save(ctx, prefs); err != nil {
		return errors.Wrapf(err, "save preferences for %s", prefs.CustomerID)
	}

	slog.Info("upserted preferences", slog.String("customer_id", prefs.CustomerID))
	return nil
}

func seedRates(ctx context.Context, repo *repository.RateRepository) error {
	slog.Info("seeding currency rates")

	rates := map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("0.91"),
		"GBP": decimal.RequireFromString("0.78"),
		"EGP": decimal.RequireFromString("48.5"),
	}
	if err := repo.ReplaceRates(ctx, rates); err != nil {
		return errors.Wrap(err, "replace rates")
	}

	slog.Info("upserted currency rates", slog.Int("count", len(rates)))
	return nil
}
