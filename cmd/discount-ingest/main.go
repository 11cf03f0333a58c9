// discount-ingest loads promo titles into the local discount cache. It
// accepts two sources: the storefront's published code discounts, and bulk
// campaign exports (gzipped, one title per line). Bulk exports are noisy,
// so a title only counts when it appears in at least two of the export
// files.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/retailhub/checkout-service/internal/domain/discount"
	"github.com/retailhub/checkout-service/internal/repository"
	"github.com/retailhub/checkout-service/internal/storefront"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minTitleLen   = 4
	maxTitleLen   = 24
)

// titleRule describes the discount rule to apply for a known promo title.
type titleRule struct {
	value       string
	description string
}

var titleRules = map[string]titleRule{
	"SAVE10":   {value: "10", description: "10% off entire order"},
	"SAVE20":   {value: "20", description: "20% off entire order"},
	"FIFTYOFF": {value: "50", description: "50% off entire order"},
	"HAPPYHRS": {value: "18", description: "Happy Hours: 18% off"},
	"BIRTHDAY": {value: "25", description: "Birthday treat: 25% off"},
}

var defaultRule = titleRule{
	value:       "10",
	description: "Valid promo: 10% off",
}

// fileResult holds candidate titles found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir            string
		databaseURL        string
		storefrontEndpoint string
		storefrontToken    string
	)

	flag.StringVar(&dataDir, "data-dir", "", "directory containing promobaseN.gz export files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storefrontEndpoint, "storefront-endpoint", "", "storefront GraphQL endpoint to pull published discounts from")
	flag.StringVar(&storefrontToken, "storefront-token", "", "storefront access token (or RETAILHUB_STOREFRONT_ACCESS_TOKEN env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if storefrontToken == "" {
		storefrontToken = os.Getenv("RETAILHUB_STOREFRONT_ACCESS_TOKEN")
	}
	if dataDir == "" && storefrontEndpoint == "" {
		slog.Error("nothing to ingest: set --data-dir and/or --storefront-endpoint")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, storefrontEndpoint, storefrontToken); err != nil {
		slog.Error("discount ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, sfEndpoint, sfToken string) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewDiscountRepository(pool)

	if sfEndpoint != "" {
		if err := ingestStorefront(ctx, repo, sfEndpoint, sfToken); err != nil {
			return errors.Wrap(err, "ingest storefront discounts")
		}
	}

	if dataDir != "" {
		if err := ingestExports(ctx, repo, dataDir); err != nil {
			return errors.Wrap(err, "ingest export files")
		}
	}

	return nil
}

// ingestStorefront pulls the published code discounts and upserts them
// with the values the storefront reports.
func ingestStorefront(ctx context.Context, repo *repository.DiscountRepository, endpoint, token string) error {
	slog.Info("pulling published discounts", slog.String("endpoint", endpoint))

	client := storefront.NewClient(storefront.ClientConfig{
		Endpoint:    endpoint,
		AccessToken: token,
	}, zap.NewNop())

	rules, err := client.ListDiscounts(ctx)
	if err != nil {
		return errors.Wrap(err, "list discounts")
	}

	for _, rule := range rules {
		if err := repo.Upsert(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert discount %s", rule.Title)
		}
	}

	slog.Info("storefront discounts ingested", slog.Int("count", len(rules)))
	return nil
}

// ingestExports runs the two-pass scan over the bulk export files and
// upserts every title found in 2+ files.
func ingestExports(ctx context.Context, repo *repository.DiscountRepository, dataDir string) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("promobase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Find candidate titles appearing in 2+ files.
	slog.Info("pass 2: finding candidate titles")

	validTitles, err := findValidTitles(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid titles")
	}

	slog.Info("valid titles found", slog.Int("count", len(validTitles)))

	if len(validTitles) == 0 {
		slog.Info("no valid titles to insert")
		return nil
	}

	return writeDiscounts(ctx, repo, validTitles)
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(title string) {
			if len(title) >= minTitleLen && len(title) <= maxTitleLen {
				filter.AddString(title)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("titles", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_titles", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidTitles re-streams each file and checks titles against OTHER
// files' bloom filters. A title is valid if it appears in 2 or more files.
func findValidTitles(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files.
	merged := make(map[string]uint)
	for _, r := range results {
		for title, mask := range r.candidates {
			merged[title] |= mask
		}
	}

	// Keep titles appearing in 2+ files.
	var valid []string
	for title, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, title)
		}
	}

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(title string) {
			if len(title) < minTitleLen || len(title) > maxTitleLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("titles", count),
				)
			}

			// Check if this title appears in any OTHER file's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(title) {
					candidates[title] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_titles", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(title string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeDiscounts upserts all valid titles into the rule cache.
func writeDiscounts(ctx context.Context, repo *repository.DiscountRepository, titles []string) error {
	slog.Info("writing discounts to database", slog.Int("count", len(titles)))

	for i, title := range titles {
		rule, ok := titleRules[title]
		if !ok {
			rule = defaultRule
		}

		value, err := decimal.NewFromString(rule.value)
		if err != nil {
			return errors.Wrapf(err, "parse decimal value for title %s", title)
		}

		if err := repo.Upsert(ctx, discount.Rule{
			Title:       title,
			Value:       value,
			ValueType:   title,
			Description: rule.description,
		}); err != nil {
			return errors.Wrapf(err, "upsert discount %s", title)
		}

		if (i+1)%100 == 0 || i+1 == len(titles) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(titles)))
		}
	}

	return nil
}
