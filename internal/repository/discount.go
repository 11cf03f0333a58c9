package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailhub/checkout-service/internal/domain/discount"
)

const (
	getDiscountByTitleSQL = `SELECT title, value, value_type, description
		FROM discounts WHERE UPPER(title) = UPPER($1) AND active = TRUE`

	listDiscountsSQL = `SELECT title, value, value_type, description
		FROM discounts WHERE active = TRUE ORDER BY title`

	listDiscountTitlesSQL = `SELECT title FROM discounts WHERE active = TRUE`

	upsertDiscountSQL = `INSERT INTO discounts (title, value, value_type, description, active, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, now())
		ON CONFLICT (title) DO UPDATE SET
			value = EXCLUDED.value,
			value_type = EXCLUDED.value_type,
			description = EXCLUDED.description,
			active = TRUE,
			updated_at = now()`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByTitle looks up an active discount rule by its title
// (case-insensitive). Returns discount.ErrUnknownDiscount when no matching
// active rule exists.
func (r *DiscountRepository) FindByTitle(ctx context.Context, title string) (*discount.Rule, error) {
	rows, err := r.pool.Query(ctx, getDiscountByTitleSQL, title)
	if err != nil {
		return nil, fmt.Errorf("finding discount by title %q: %w", title, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanDiscountRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrUnknownDiscount
		}
		return nil, fmt.Errorf("finding discount by title %q: %w", title, err)
	}
	return &rule, nil
}

// List returns all active discount rules ordered by title.
func (r *DiscountRepository) List(ctx context.Context) ([]discount.Rule, error) {
	rows, err := r.pool.Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing discounts: %w", err)
	}
	return pgx.CollectRows(rows, scanDiscountRule)
}

// Titles returns the titles of all active rules, used to size and seed the
// bloom prefilter at startup.
func (r *DiscountRepository) Titles(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listDiscountTitlesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing discount titles: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var title string
		err := row.Scan(&title)
		return title, err
	})
}

// Upsert inserts or refreshes a discount rule, reactivating it if it was
// previously deactivated.
func (r *DiscountRepository) Upsert(ctx context.Context, rule discount.Rule) error {
	_, err := r.pool.Exec(ctx, upsertDiscountSQL,
		rule.Title, rule.Value, rule.ValueType, rule.Description,
	)
	if err != nil {
		return fmt.Errorf("upserting discount %q: %w", rule.Title, err)
	}
	return nil
}

func scanDiscountRule(row pgx.CollectableRow) (discount.Rule, error) {
	var rule discount.Rule
	err := row.Scan(&rule.Title, &rule.Value, &rule.ValueType, &rule.Description)
	return rule, err
}
