package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/retailhub/checkout-service/internal/currency"
	"github.com/retailhub/checkout-service/internal/domain/cart"
	"github.com/retailhub/checkout-service/internal/domain/checkout"
	"github.com/retailhub/checkout-service/internal/domain/customer"
	"github.com/retailhub/checkout-service/internal/domain/discount"
	"github.com/retailhub/checkout-service/internal/storefront"
)

type mockGateway struct {
	items       []cart.Item
	profile     customer.Profile
	defAddr     customer.DefaultAddress
	orderID     string
	customerErr error
	deleteErr   error
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		items: []cart.Item{
			{VariantID: "v1", DraftOrderID: "d1", Title: "Shirt", Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
		},
		profile: customer.Profile{ID: "123", FirstName: "ahmed", Email: "test@gmail.com"},
		defAddr: customer.DefaultAddress{
			ID:      "addr-1",
			Address: customer.Address{Name: "ahmed", Address1: "Addr1", City: "Cairo", Country: "EG"},
		},
		orderID: "order-1",
	}
}

func (m *mockGateway) GetCustomerByID(context.Context, string) (*customer.Profile, error) {
	if m.customerErr != nil {
		return nil, m.customerErr
	}
	p := m.profile
	return &p, nil
}

func (m *mockGateway) GetDefaultAddress(context.Context, string) (*customer.DefaultAddress, error) {
	a := m.defAddr
	return &a, nil
}

func (m *mockGateway) CreateDraftOrder(context.Context, checkout.DraftOrderInput) (string, error) {
	return m.orderID, nil
}

func (m *mockGateway) SendDraftOrderInvoice(context.Context, string) error { return nil }
func (m *mockGateway) MarkOrderAsPaid(context.Context, string) error       { return nil }

func (m *mockGateway) TagCustomerWithUsedDiscount(context.Context, string, string) error {
	return nil
}

func (m *mockGateway) DeleteCartItem(context.Context, string) error { return m.deleteErr }

func (m *mockGateway) CartItemsByCustomer(context.Context, string) ([]cart.Item, error) {
	return m.items, nil
}

func (m *mockGateway) UpdateCartItem(context.Context, cart.Item) error { return nil }

type mockDiscountRepo struct {
	rules map[string]discount.Rule
}

func (m *mockDiscountRepo) FindByTitle(_ context.Context, title string) (*discount.Rule, error) {
	rule, ok := m.rules[title]
	if !ok {
		return nil, discount.ErrUnknownDiscount
	}
	return &rule, nil
}

func (m *mockDiscountRepo) List(context.Context) ([]discount.Rule, error) {
	out := make([]discount.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	return out, nil
}

type mockPrefs struct {
	stored map[string]customer.Preferences
}

func (m *mockPrefs) Get(_ context.Context, id string) (*customer.Preferences, error) {
	p, ok := m.stored[id]
	if !ok {
		return nil, customer.ErrNoPreferences
	}
	return &p, nil
}

func (m *mockPrefs) Save(_ context.Context, p customer.Preferences) error {
	m.stored[p.CustomerID] = p
	return nil
}

type staticRates struct {
	rates map[string]decimal.Decimal
}

func (s *staticRates) Rates(context.Context) (map[string]decimal.Decimal, time.Time, error) {
	return s.rates, time.Now(), nil
}

func (s *staticRates) ReplaceRates(context.Context, map[string]decimal.Decimal) error { return nil }

type noFetch struct{}

func (noFetch) FetchRates(context.Context) (map[string]decimal.Decimal, error) {
	return nil, errors.New("not used")
}

func newTestHandler(t *testing.T, gw *mockGateway) (*Handler, chi.Router) {
	t.Helper()

	svc, err := checkout.NewService(gw, zap.NewNop(),
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	repo := &mockDiscountRepo{rules: map[string]discount.Rule{
		"SAVE10": {Title: "SAVE10", Value: decimal.NewFromInt(10), ValueType: "SAVE10"},
	}}
	cur := currency.NewService(
		&staticRates{rates: map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.9")}},
		noFetch{}, zap.NewNop())

	h := NewHandler(zap.NewNop(), svc, gw, repo,
		discount.NewRepoValidator(repo),
		&mockPrefs{stored: make(map[string]customer.Preferences)}, cur)

	r := chi.NewRouter()
	h.Routes(r)
	return h, r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func beginAttempt(t *testing.T, r chi.Router) BeginCheckoutResponse {
	t.Helper()

	rec := doJSON(t, r, http.MethodPost, "/api/checkout", BeginCheckoutRequest{
		CustomerID: "123", Email: "test@gmail.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp BeginCheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestBeginCheckout(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	resp := beginAttempt(t, r)
	assert.NotEmpty(t, resp.AttemptID)
	assert.Equal(t, "ahmed", resp.Customer.FirstName)
	assert.Equal(t, "Cairo", resp.DefaultAddress.City)
	require.Len(t, resp.Bag, 1)
	assert.Equal(t, "39.98", resp.Subtotal)
}

func TestBeginCheckout_InvalidBody(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	rec := doJSON(t, r, http.MethodPost, "/api/checkout", BeginCheckoutRequest{CustomerID: "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBeginCheckout_PrefetchFailure(t *testing.T) {
	gw := newMockGateway()
	gw.customerErr = errors.New("storefront timeout")
	_, r := newTestHandler(t, gw)

	rec := doJSON(t, r, http.MethodPost, "/api/checkout", BeginCheckoutRequest{
		CustomerID: "123", Email: "test@gmail.com",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront timeout")
}

func TestGetCheckout_Unknown(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	rec := doJSON(t, r, http.MethodGet, "/api/checkout/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectDiscount_Unknown(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())
	attempt := beginAttempt(t, r)

	rec := doJSON(t, r, http.MethodPut, "/api/checkout/"+attempt.AttemptID+"/discount",
		SelectDiscountRequest{Title: "NOPE"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitCheckout_JSON(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())
	attempt := beginAttempt(t, r)

	rec := doJSON(t, r, http.MethodPut, "/api/checkout/"+attempt.AttemptID+"/discount",
		SelectDiscountRequest{Title: "SAVE10"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/checkout/"+attempt.AttemptID+"/submit",
		SubmitCheckoutRequest{PaymentMethod: "card"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var outcome OutcomeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, "order-1", outcome.OrderID)
	assert.True(t, outcome.Paid)
	assert.True(t, outcome.DiscountTagged)
	assert.True(t, outcome.CleanedUp)

	// The attempt is gone once submitted.
	rec = doJSON(t, r, http.MethodGet, "/api/checkout/"+attempt.AttemptID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitCheckout_MissingAddressField(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())
	attempt := beginAttempt(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/checkout/"+attempt.AttemptID+"/submit",
		SubmitCheckoutRequest{
			PaymentMethod: "card",
			Address:       &Address{Address1: "somewhere", Country: "EG"},
		})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "city")

	// The submission was consumed, so the attempt must not linger.
	rec = doJSON(t, r, http.MethodGet, "/api/checkout/"+attempt.AttemptID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttemptEviction(t *testing.T) {
	h, r := newTestHandler(t, newMockGateway())
	attempt := beginAttempt(t, r)

	// A sweep before the TTL elapses keeps the attempt.
	h.evictStaleAttempts(time.Now())
	rec := doJSON(t, r, http.MethodGet, "/api/checkout/"+attempt.AttemptID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Once the TTL has passed the attempt is evicted.
	h.evictStaleAttempts(time.Now().Add(attemptTTL))
	rec = doJSON(t, r, http.MethodGet, "/api/checkout/"+attempt.AttemptID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitCheckout_InvalidPaymentMethod(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())
	attempt := beginAttempt(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/checkout/"+attempt.AttemptID+"/submit",
		SubmitCheckoutRequest{PaymentMethod: "iou"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitCheckout_NDJSON(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())
	attempt := beginAttempt(t, r)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(SubmitCheckoutRequest{PaymentMethod: "card"}))
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/"+attempt.AttemptID+"/submit", &buf)
	req.Header.Set("Accept", "application/x-ndjson")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var states []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var line struct {
			State string `json:"state"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		states = append(states, line.State)
	}
	require.Equal(t, []string{"loading", "success"}, states)
}

func TestListBag(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	rec := doJSON(t, r, http.MethodGet, "/api/bag?customer_id=123", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subtotal":"39.98"`)
}

func TestListBag_MissingCustomer(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	rec := doJSON(t, r, http.MethodGet, "/api/bag", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteBagItem_NotFound(t *testing.T) {
	gw := newMockGateway()
	gw.deleteErr = storefront.ErrNotFound
	_, r := newTestHandler(t, gw)

	rec := doJSON(t, r, http.MethodDelete, "/api/bag/gone", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateBagItem(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	rec := doJSON(t, r, http.MethodPut, "/api/bag/d1", UpdateBagItemRequest{VariantID: "v1", Quantity: 3})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/api/bag/d1", UpdateBagItemRequest{VariantID: "v1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "zero quantity is rejected")
}

func TestListDiscounts(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	rec := doJSON(t, r, http.MethodGet, "/api/discounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SAVE10")
}

func TestPreferencesRoundTrip(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	rec := doJSON(t, r, http.MethodGet, "/api/profile/123", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/api/profile/123", PreferencesRequest{CurrencyCode: "EUR"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/profile/123", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var prefs PreferencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	assert.Equal(t, "EUR", prefs.CurrencyCode)
}

func TestConvertCurrency(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	rec := doJSON(t, r, http.MethodGet, "/api/currency/convert?amount=19.99&code=EUR", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"converted":"17.99"`)

	rec = doJSON(t, r, http.MethodGet, "/api/currency/convert?amount=10&code=XXX", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/currency/convert?amount=abc&code=EUR", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitCheckout_UnknownAttempt(t *testing.T) {
	_, r := newTestHandler(t, newMockGateway())

	rec := doJSON(t, r, http.MethodPost, "/api/checkout/ghost/submit",
		SubmitCheckoutRequest{PaymentMethod: "card"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
