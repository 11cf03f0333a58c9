// Package storefront implements the remote API gateway: a hand-written
// GraphQL client for the storefront admin API plus the typed operations
// the checkout pipeline and the bag endpoints consume.
package storefront

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// APIError is a failure reported by the storefront itself, either as a
// top-level GraphQL error or as a mutation userError.
type APIError struct {
	Operation string
	Messages  []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront %s: %s", e.Operation, strings.Join(e.Messages, "; "))
}

// ClientConfig configures the storefront client. Timeout bounds every
// request; retry and idempotency stay out of scope here.
type ClientConfig struct {
	Endpoint    string
	AccessToken string
	Timeout     time.Duration
}

// Client executes named GraphQL operations against the storefront
// endpoint. The transport is OTel-instrumented; responses are decoded
// with jx.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	lg       *zap.Logger
}

// NewClient builds a Client from cfg. A zero timeout defaults to 15s.
func NewClient(cfg ClientConfig, lg *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		token:    cfg.AccessToken,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		lg: lg,
	}
}

// encodeVars writes the variables object; a nil callback produces an
// empty object.
type encodeVars func(e *jx.Encoder)

// execute posts one GraphQL operation and returns the raw "data" subtree.
// Top-level GraphQL errors become an *APIError.
func (c *Client) execute(ctx context.Context, operation, query string, vars encodeVars) (jx.Raw, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("query")
	e.Str(query)
	e.FieldStart("variables")
	e.ObjStart()
	if vars != nil {
		vars(&e)
	}
	e.ObjEnd()
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Storefront-Access-Token", c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "execute %s", operation)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s response", operation)
	}
	c.lg.Debug("storefront call",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("storefront %s: unexpected status %d", operation, resp.StatusCode)
	}

	var (
		data    jx.Raw
		apiErrs []string
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "data":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			data = raw
			return nil
		case "errors":
			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "message" {
						return d.Skip()
					}
					msg, err := d.Str()
					if err != nil {
						return err
					}
					apiErrs = append(apiErrs, msg)
					return nil
				})
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", operation)
	}

	if len(apiErrs) > 0 {
		return nil, &APIError{Operation: operation, Messages: apiErrs}
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, errors.Errorf("storefront %s: empty data", operation)
	}
	return data, nil
}

// decodeUserErrors consumes a userErrors array and appends its messages.
func decodeUserErrors(d *jx.Decoder, msgs *[]string) error {
	return d.Arr(func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "message" {
				return d.Skip()
			}
			msg, err := d.Str()
			if err != nil {
				return err
			}
			*msgs = append(*msgs, msg)
			return nil
		})
	})
}
