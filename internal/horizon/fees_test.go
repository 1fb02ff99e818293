package horizon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mtlprog/coincore/internal/domain"
)

func TestFeeOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fee_stats" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"last_ledger": "123",
			"last_ledger_base_fee": "100",
			"fee_charged": {"min": "100", "mode": "100", "p50": "50", "p90": "2500"}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 1, 10*time.Millisecond)
	opts, err := client.FeeOptions(context.Background(), xlm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Regular.String() != "0.00001 XLM" {
		t.Errorf("regular = %s, want base fee 0.00001 XLM", opts.Regular)
	}
	if opts.Priority.String() != "0.00025 XLM" {
		t.Errorf("priority = %s, want 0.00025 XLM", opts.Priority)
	}
}

func TestFeeOptionsRejectsSubTokens(t *testing.T) {
	client := NewClient("http://unused.invalid", 0, time.Millisecond)
	_, err := client.FeeOptions(context.Background(), domain.NewSubToken("USDC", 7, "XLM"))
	if err == nil {
		t.Fatal("expected error for sub-token")
	}
}
