//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestPreferences_RoundTrip(t *testing.T) {
	resp := doGet(t, "/api/profile/it-customer")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before save, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPut, "/api/profile/it-customer", preferencesRequest{
		Email:        "it@example.com",
		CurrencyCode: "EUR",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on save, got %d", resp.StatusCode)
	}

	resp = doGet(t, "/api/profile/it-customer")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after save, got %d", resp.StatusCode)
	}

	prefs := decodeJSON[preferencesResponse](t, resp)
	if prefs.CurrencyCode != "EUR" {
		t.Errorf("currency_code: got %q, want %q", prefs.CurrencyCode, "EUR")
	}
	if prefs.Email != "it@example.com" {
		t.Errorf("email: got %q, want %q", prefs.Email, "it@example.com")
	}
}

func TestPreferences_InvalidCurrencyCode(t *testing.T) {
	resp := doJSON(t, http.MethodPut, "/api/profile/it-customer", preferencesRequest{
		CurrencyCode: "euros",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConvertCurrency_Seeded(t *testing.T) {
	resp := doGet(t, "/api/currency/convert?amount=100&code=EUR")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	conv := decodeJSON[convertResponse](t, resp)
	if conv.Converted != "91.00" {
		t.Errorf("converted: got %q, want %q", conv.Converted, "91.00")
	}
}

func TestConvertCurrency_UnknownCode(t *testing.T) {
	resp := doGet(t, "/api/currency/convert?amount=10&code=ZZZ")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message == "" {
		t.Error("expected an error message")
	}
}
