package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailhub/checkout-service/internal/domain/customer"
)

// ListDiscounts returns the active rules from the local cache.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	rules, err := h.discounts.List(r.Context())
	if err != nil {
		h.lg.Error("list discounts failed", zap.Error(err))
		h.writeDomainError(w, err)
		return
	}

	out := make([]DiscountRule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleToJSON(rule))
	}
	writeJSON(w, out, http.StatusOK)
}

// GetPreferences returns the stored settings for a customer.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customer_id")

	prefs, err := h.prefs.Get(r.Context(), customerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, PreferencesResponse{
		CustomerID:   prefs.CustomerID,
		Email:        prefs.Email,
		CurrencyCode: prefs.CurrencyCode,
		UpdatedAt:    prefs.UpdatedAt,
	}, http.StatusOK)
}

// SavePreferences upserts the settings for a customer.
func (h *Handler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customer_id")

	var req PreferencesRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	err := h.prefs.Save(r.Context(), customer.Preferences{
		CustomerID:   customerID,
		Email:        req.Email,
		CurrencyCode: req.CurrencyCode,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConvertCurrency converts an amount into the requested currency using the
// cached rate table.
func (h *Handler) ConvertCurrency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rawAmount := r.URL.Query().Get("amount")
	code := r.URL.Query().Get("code")
	if err := h.validate.Var(code, "required,len=3,uppercase"); err != nil {
		writeError(w, "code must be a three-letter currency code", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		writeError(w, "amount must be a decimal number", http.StatusBadRequest)
		return
	}

	converted, err := h.currency.Convert(ctx, amount, code)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, ConvertResponse{
		Amount:    amount.StringFixed(2),
		Code:      code,
		Converted: converted.StringFixed(2),
	}, http.StatusOK)
}
