package discount

import (
	"context"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// Validator resolves a discount title to a selectable Discount, or reports
// ErrUnknownDiscount.
type Validator interface {
	Validate(ctx context.Context, title string) (*Discount, error)
}

// RepoValidator implements Validator against the rule cache, with an
// optional bloom prefilter in front of it. Titles rejected by the filter
// are known-absent and skip the repository entirely; filter hits may still
// be false positives and fall through to the lookup.
type RepoValidator struct {
	repo   Repository
	filter *bloom.BloomFilter
}

// NewRepoValidator creates a RepoValidator without a prefilter.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo}
}

// WithFilter attaches a bloom prefilter built over all known titles.
func (v *RepoValidator) WithFilter(filter *bloom.BloomFilter) *RepoValidator {
	v.filter = filter
	return v
}

// Validate looks up the rule for title and converts it to a Discount.
// Titles match case-insensitively, so the filter is consulted with the
// same uppercase form it was seeded with.
func (v *RepoValidator) Validate(ctx context.Context, title string) (*Discount, error) {
	if v.filter != nil && !v.filter.TestString(strings.ToUpper(title)) {
		return nil, ErrUnknownDiscount
	}

	rule, err := v.repo.FindByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, ErrUnknownDiscount) {
			return nil, ErrUnknownDiscount
		}
		return nil, errors.Wrap(err, "lookup discount")
	}

	return &Discount{Title: rule.Title, Value: rule.Value}, nil
}

// BuildFilter constructs a bloom prefilter sized for the given titles at a
// 0.1% false positive rate. Titles are folded to uppercase so the filter
// never rejects a case variant the repository would match.
func BuildFilter(titles []string) *bloom.BloomFilter {
	n := uint(len(titles))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, 0.001)
	for _, t := range titles {
		filter.AddString(strings.ToUpper(t))
	}
	return filter
}
