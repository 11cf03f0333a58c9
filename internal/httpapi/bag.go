package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/retailhub/checkout-service/internal/domain/cart"
)

// ListBag returns the customer's current bag lines.
func (h *Handler) ListBag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	customerID := r.URL.Query().Get("customer_id")
	if err := h.validate.Var(customerID, "required"); err != nil {
		writeError(w, "customer_id is required", http.StatusBadRequest)
		return
	}

	items, err := h.bag.CartItemsByCustomer(ctx, customerID)
	if err != nil {
		h.lg.Error("list bag failed", zap.String("customer_id", customerID), zap.Error(err))
		h.writeDomainError(w, err)
		return
	}

	snap := cart.Snapshot{Items: items}
	writeJSON(w, struct {
		Items    []BagItem `json:"items"`
		Subtotal string    `json:"subtotal"`
	}{
		Items:    bagToJSON(items),
		Subtotal: snap.Subtotal().StringFixed(2),
	}, http.StatusOK)
}

// UpdateBagItem changes the quantity of one bag line.
func (h *Handler) UpdateBagItem(w http.ResponseWriter, r *http.Request) {
	draftOrderID := chi.URLParam(r, "draft_order_id")

	var req UpdateBagItemRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	err := h.bag.UpdateCartItem(r.Context(), cart.Item{
		DraftOrderID: draftOrderID,
		VariantID:    req.VariantID,
		Quantity:     req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBagItem removes one bag line.
func (h *Handler) DeleteBagItem(w http.ResponseWriter, r *http.Request) {
	draftOrderID := chi.URLParam(r, "draft_order_id")

	if err := h.bag.DeleteCartItem(r.Context(), draftOrderID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
