package horizon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

var xlm = domain.NewNativeCurrency("XLM", 7)

func TestGetBalanceNative(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/GABC123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "GABC123",
			"balances": [
				{"asset_type": "credit_alphanum4", "asset_code": "USDC", "asset_issuer": "GISSUER", "balance": "100.0000000"},
				{"asset_type": "native", "balance": "1000.5000000"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 1, 10*time.Millisecond)
	bal, err := client.GetBalance(context.Background(), backend.ChainAccountRef{Currency: xlm, Address: "GABC123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bal.Amount().Equal(decimal.RequireFromString("1000.5")) || bal.Currency().Code != "XLM" {
		t.Errorf("balance = %s, want 1000.5 XLM", bal)
	}
}

func TestGetBalanceUnfundedAccountIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status": 404, "title": "Resource Missing"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 1, 10*time.Millisecond)
	bal, err := client.GetBalance(context.Background(), backend.ChainAccountRef{Currency: xlm, Address: "GNEW"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bal.IsZero() {
		t.Errorf("balance = %s, want zero", bal)
	}
}

func TestGetBalanceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, 1, 10*time.Millisecond)
	if _, err := client.GetBalance(context.Background(), backend.ChainAccountRef{Currency: xlm, Address: "GABC"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
