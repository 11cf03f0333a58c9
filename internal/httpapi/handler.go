// Package httpapi exposes the checkout pipeline, bag and preference
// operations over HTTP, projecting the pipeline's tri-state streams onto
// JSON and NDJSON responses.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/retailhub/checkout-service/internal/currency"
	"github.com/retailhub/checkout-service/internal/domain/cart"
	"github.com/retailhub/checkout-service/internal/domain/checkout"
	"github.com/retailhub/checkout-service/internal/domain/customer"
	"github.com/retailhub/checkout-service/internal/domain/discount"
	"github.com/retailhub/checkout-service/internal/storefront"
)

// BagGateway covers the bag operations the API serves outside a checkout
// attempt.
type BagGateway interface {
	CartItemsByCustomer(ctx context.Context, customerID string) ([]cart.Item, error)
	UpdateCartItem(ctx context.Context, item cart.Item) error
	DeleteCartItem(ctx context.Context, draftOrderID string) error
}

// attemptTTL bounds how long an abandoned checkout attempt stays
// resident. Attempts the client never submits are evicted after this
// long, counted from BeginCheckout.
const attemptTTL = 30 * time.Minute

type attemptEntry struct {
	att     *checkout.Checkout
	created time.Time
}

// Handler wires the HTTP surface to the checkout service and its
// supporting stores.
type Handler struct {
	lg        *zap.Logger
	validate  *validator.Validate
	checkouts *checkout.Service
	bag       BagGateway
	discounts discount.Repository
	validator discount.Validator
	prefs     customer.PreferenceStore
	currency  *currency.Service
	now       func() time.Time

	mu       sync.Mutex
	attempts map[string]attemptEntry
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	lg *zap.Logger,
	checkouts *checkout.Service,
	bag BagGateway,
	discounts discount.Repository,
	disc discount.Validator,
	prefs customer.PreferenceStore,
	cur *currency.Service,
) *Handler {
	return &Handler{
		lg:        lg.Named("httpapi"),
		validate:  validator.New(),
		checkouts: checkouts,
		bag:       bag,
		discounts: discounts,
		validator: disc,
		prefs:     prefs,
		currency:  cur,
		now:       time.Now,
		attempts:  make(map[string]attemptEntry),
	}
}

// StartAttemptEviction launches a background sweep that removes checkout
// attempts older than attemptTTL. It stops when ctx is cancelled.
func (h *Handler) StartAttemptEviction(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(attemptTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				h.evictStaleAttempts(now)
			}
		}
	}()
}

func (h *Handler) evictStaleAttempts(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, e := range h.attempts {
		if now.Sub(e.created) >= attemptTTL {
			delete(h.attempts, id)
		}
	}
}

// Routes mounts all API routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.BeginCheckout)
			r.Get("/{attempt_id}", h.GetCheckout)
			r.Put("/{attempt_id}/discount", h.SelectDiscount)
			r.Post("/{attempt_id}/submit", h.SubmitCheckout)
		})
		r.Route("/bag", func(r chi.Router) {
			r.Get("/", h.ListBag)
			r.Put("/{draft_order_id}", h.UpdateBagItem)
			r.Delete("/{draft_order_id}", h.DeleteBagItem)
		})
		r.Get("/discounts", h.ListDiscounts)
		r.Route("/profile/{customer_id}", func(r chi.Router) {
			r.Get("/", h.GetPreferences)
			r.Put("/", h.SavePreferences)
		})
		r.Get("/currency/convert", h.ConvertCurrency)
	})
}

func (h *Handler) attempt(id string) (*checkout.Checkout, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.attempts[id]
	if !ok {
		return nil, false
	}
	return e.att, true
}

func (h *Handler) storeAttempt(att *checkout.Checkout) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[att.AttemptID()] = attemptEntry{att: att, created: h.now()}
}

func (h *Handler) dropAttempt(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.attempts, id)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, errorResponse{Code: status, Message: message}, status)
}

// writeDomainError maps pipeline and storefront failures onto statuses.
// Upstream causes keep their message: the surface reports faults, it does
// not translate them.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var missing *checkout.MissingFieldError
	if errors.As(err, &missing) {
		writeError(w, missing.Error(), http.StatusUnprocessableEntity)
		return
	}
	if errors.Is(err, discount.ErrUnknownDiscount) {
		writeError(w, "unknown discount", http.StatusUnprocessableEntity)
		return
	}
	if errors.Is(err, storefront.ErrNotFound) {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	if errors.Is(err, customer.ErrNoPreferences) {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	if errors.Is(err, currency.ErrUnknownCurrency) {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	var apiErr *storefront.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Error(), http.StatusBadGateway)
		return
	}
	writeError(w, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
