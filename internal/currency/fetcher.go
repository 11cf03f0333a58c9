package currency

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const fetchTimeout = 10 * time.Second

// HTTPFetcher pulls a rate table from an exchange-rates endpoint that
// responds with {"base": "...", "rates": {"EUR": 0.91, ...}}.
type HTTPFetcher struct {
	endpoint string
	http     *http.Client
}

// NewHTTPFetcher builds an HTTPFetcher for the given endpoint.
func NewHTTPFetcher(endpoint string) *HTTPFetcher {
	return &HTTPFetcher{
		endpoint: endpoint,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   fetchTimeout,
		},
	}
}

// FetchRates requests and decodes the rate document.
func (f *HTTPFetcher) FetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch rates")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("rates endpoint: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	rates := make(map[string]decimal.Decimal)
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key != "rates" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, code string) error {
			raw, err := d.Num()
			if err != nil {
				return err
			}
			rate, err := decimal.NewFromString(raw.String())
			if err != nil {
				return errors.Wrapf(err, "parse rate for %s", code)
			}
			rates[code] = rate
			return nil
		})
	}); err != nil {
		return nil, errors.Wrap(err, "decode rates")
	}

	if len(rates) == 0 {
		return nil, errors.New("rates endpoint: empty rate table")
	}
	return rates, nil
}
