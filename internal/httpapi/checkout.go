package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/retailhub/checkout-service/internal/apistate"
	"github.com/retailhub/checkout-service/internal/domain/cart"
	"github.com/retailhub/checkout-service/internal/domain/checkout"
	"github.com/retailhub/checkout-service/internal/domain/customer"
)

const ndjsonContentType = "application/x-ndjson"

// BeginCheckout opens an attempt: it snapshots the customer's bag, runs
// the customer and default-address prefetches and returns the attempt
// handle. A prefetch failure aborts the attempt.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BeginCheckoutRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	items, err := h.bag.CartItemsByCustomer(ctx, req.CustomerID)
	if err != nil {
		h.lg.Error("load bag failed", zap.String("customer_id", req.CustomerID), zap.Error(err))
		h.writeDomainError(w, err)
		return
	}
	snap := cart.Snapshot{Items: items}

	att := h.checkouts.Begin(customer.Identity{ID: req.CustomerID, Email: req.Email}, snap)
	if err := att.Prepare(ctx); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.storeAttempt(att)

	profile := att.CustomerState().Current().MustValue()
	defAddr := att.AddressState().Current().MustValue()

	writeJSON(w, BeginCheckoutResponse{
		AttemptID:      att.AttemptID(),
		Customer:       profileToJSON(profile),
		DefaultAddress: defaultAddressToJSON(defAddr),
		Bag:            bagToJSON(items),
		Subtotal:       snap.Subtotal().StringFixed(2),
	}, http.StatusCreated)
}

// GetCheckout reports the current stage of an attempt.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	att, ok := h.attempt(chi.URLParam(r, "attempt_id"))
	if !ok {
		writeError(w, "unknown checkout attempt", http.StatusNotFound)
		return
	}

	stage, cause := att.Stage()
	resp := CheckoutStatusResponse{AttemptID: att.AttemptID(), Stage: stage.String()}
	if cause != nil {
		resp.Error = cause.Error()
	}
	writeJSON(w, resp, http.StatusOK)
}

// SelectDiscount validates a promo title against the rule cache and
// applies it to the attempt. An empty title clears the selection.
func (h *Handler) SelectDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	att, ok := h.attempt(chi.URLParam(r, "attempt_id"))
	if !ok {
		writeError(w, "unknown checkout attempt", http.StatusNotFound)
		return
	}

	var req SelectDiscountRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	if req.Title == "" {
		att.SelectDiscount(nil)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	d, err := h.validator.Validate(ctx, req.Title)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	att.SelectDiscount(d)
	w.WriteHeader(http.StatusNoContent)
}

// SubmitCheckout finishes an attempt. The default response is the final
// outcome as one JSON document; clients that accept application/x-ndjson
// instead receive each checkout state as its own line as the submission
// progresses.
func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	att, ok := h.attempt(chi.URLParam(r, "attempt_id"))
	if !ok {
		writeError(w, "unknown checkout attempt", http.StatusNotFound)
		return
	}

	var req SubmitCheckoutRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	submitReq := checkout.SubmitRequest{Payment: checkout.PaymentMethod(req.PaymentMethod)}
	if req.Address != nil {
		addr := addressJSONToEntity(*req.Address)
		submitReq.EnteredAddress = &addr
	}

	if r.Header.Get("Accept") == ndjsonContentType {
		h.submitStreaming(w, r, att, submitReq)
		return
	}

	outcome, err := att.Submit(r.Context(), submitReq)
	// Submit consumes the attempt whether it succeeds or not, so the
	// handle has no further use either way.
	h.dropAttempt(att.AttemptID())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, outcomeToJSON(*outcome), http.StatusOK)
}

type submitResult struct {
	outcome *checkout.Outcome
	err     error
}

// submitStreaming runs the submission in the background and relays the
// checkout stream as NDJSON lines, flushing after each one. Validation
// faults never reach the stream, so those surface as a synthetic error
// line after the submission returns.
func (h *Handler) submitStreaming(w http.ResponseWriter, r *http.Request, att *checkout.Checkout, req checkout.SubmitRequest) {
	w.Header().Set("Content-Type", ndjsonContentType)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	states := att.CheckoutState().States()
	done := make(chan submitResult, 1)
	go func() {
		outcome, err := att.Submit(r.Context(), req)
		done <- submitResult{outcome: outcome, err: err}
	}()

	var result *submitResult
	for states != nil || result == nil {
		select {
		case st, open := <-states:
			if !open {
				states = nil
				continue
			}
			h.writeStateLine(w, flusher, st)
		case res := <-done:
			result = &res
			if !att.CheckoutState().Current().IsTerminal() {
				// The stream never resolved: a validation fault aborted
				// the submission before any emission besides our own view.
				states = nil
			}
		}
	}

	if result.err != nil && !att.CheckoutState().Current().IsTerminal() {
		h.writeErrorLine(w, flusher, result.err)
	}
	h.dropAttempt(att.AttemptID())
}

func (h *Handler) writeStateLine(w http.ResponseWriter, flusher http.Flusher, st apistate.State[checkout.Outcome]) {
	var e jx.Encoder
	e.ObjStart()
	switch {
	case st.IsLoading():
		e.FieldStart("state")
		e.Str("loading")
	case st.Err() != nil:
		e.FieldStart("state")
		e.Str("error")
		e.FieldStart("error")
		e.Str(st.Err().Error())
	default:
		e.FieldStart("state")
		e.Str("success")
		e.FieldStart("outcome")
		encodeOutcome(&e, st.MustValue())
	}
	e.ObjEnd()
	h.flushLine(w, flusher, e.Bytes())
}

func (h *Handler) writeErrorLine(w http.ResponseWriter, flusher http.Flusher, err error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("state")
	e.Str("error")
	e.FieldStart("error")
	e.Str(err.Error())
	e.ObjEnd()
	h.flushLine(w, flusher, e.Bytes())
}

func (h *Handler) flushLine(w http.ResponseWriter, flusher http.Flusher, line []byte) {
	if _, err := w.Write(append(line, '\n')); err != nil {
		h.lg.Debug("stream write failed", zap.Error(err))
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
}

func encodeOutcome(e *jx.Encoder, o checkout.Outcome) {
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(o.OrderID)
	e.FieldStart("paid")
	e.Bool(o.Paid)
	e.FieldStart("invoice_sent")
	e.Bool(o.InvoiceSent)
	e.FieldStart("discount_tagged")
	e.Bool(o.DiscountTagged)
	e.FieldStart("cleaned_up")
	e.Bool(o.CleanedUp())
	e.FieldStart("deletes")
	e.ArrStart()
	for _, d := range o.Deletes {
		e.ObjStart()
		e.FieldStart("draft_order_id")
		e.Str(d.DraftOrderID)
		if d.Err != nil {
			e.FieldStart("error")
			e.Str(d.Err.Error())
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
