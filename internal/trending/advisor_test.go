package trending

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/balance"
	"github.com/mtlprog/coincore/internal/coincore"
	"github.com/mtlprog/coincore/internal/domain"
)

var (
	btc  = domain.NewNativeCurrency("BTC", 8)
	eth  = domain.NewNativeCurrency("ETH", 18)
	xlm  = domain.NewNativeCurrency("XLM", 7)
	usdc = domain.NewSubToken("USDC", 6, "ETH")
)

type mockAccount struct {
	coincore.Account
	id       string
	currency domain.Currency
	total    string
	err      error
}

func (m *mockAccount) ID() string                { return m.id }
func (m *mockAccount) Currency() domain.Currency { return m.currency }
func (m *mockAccount) IsFunded() bool            { return false }

func (m *mockAccount) LedgerBalance(context.Context) (balance.Ledger, error) {
	if m.err != nil {
		return balance.Ledger{}, m.err
	}
	return balance.Single(domain.NewMoney(decimal.RequireFromString(m.total), m.currency)), nil
}

type mockResolver struct {
	accounts map[string]*mockAccount
}

func (m *mockResolver) DefaultAccount(_ context.Context, code string, _ bool) (coincore.Account, error) {
	acc, ok := m.accounts[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", coincore.ErrAccountNotFound, code)
	}
	return acc, nil
}

type fixedFee string

func (f fixedFee) FeeOptions(context.Context, domain.Currency) (backend.FeeOptions, error) {
	fee := domain.NewMoney(decimal.RequireFromString(string(f)), eth)
	return backend.FeeOptions{Regular: fee, Priority: fee}, nil
}

func resolver(accounts ...*mockAccount) *mockResolver {
	m := &mockResolver{accounts: make(map[string]*mockAccount)}
	for _, a := range accounts {
		m.accounts[a.currency.Code] = a
	}
	return m
}

func TestSourceFundingIgnoresDestination(t *testing.T) {
	r := resolver(
		&mockAccount{id: "btc-1", currency: btc, total: "0.5"},
		&mockAccount{id: "eth-1", currency: eth, total: "0"},
	)
	a := NewAdvisor(r, nil, []Candidate{{Source: "BTC", Target: "ETH"}}, false, 0)

	pairs := a.Pairs(context.Background())
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
	p := pairs[0]
	if !p.IsSourceFunded || !p.Enabled {
		t.Errorf("pair funded=%v enabled=%v, want both true", p.IsSourceFunded, p.Enabled)
	}
	if p.Source.ID() != "btc-1" || p.Destination.ID() != "eth-1" {
		t.Errorf("pair resolved to %s -> %s", p.Source.ID(), p.Destination.ID())
	}
}

func TestUnresolvablePairsAreDropped(t *testing.T) {
	r := resolver(&mockAccount{id: "btc-1", currency: btc, total: "1"})
	a := NewAdvisor(r, nil, []Candidate{{"BTC", "DOGE"}, {"DOGE", "BTC"}}, false, 0)

	if pairs := a.Pairs(context.Background()); len(pairs) != 0 {
		t.Errorf("got %d pairs, want none", len(pairs))
	}
}

func TestSubTokenNeedsParentGas(t *testing.T) {
	tests := []struct {
		name    string
		eth     string
		fees    backend.FeeService
		enabled bool
	}{
		{"parent empty", "0", nil, false},
		{"parent funded, no fee source", "0.001", nil, true},
		{"parent below fee", "0.001", fixedFee("0.002"), false},
		{"parent covers fee", "0.002", fixedFee("0.002"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolver(
				&mockAccount{id: "usdc-1", currency: usdc, total: "100"},
				&mockAccount{id: "eth-1", currency: eth, total: tt.eth},
				&mockAccount{id: "btc-1", currency: btc, total: "0"},
			)
			a := NewAdvisor(r, tt.fees, []Candidate{{"USDC", "BTC"}}, false, 0)
			pairs := a.Pairs(context.Background())
			if len(pairs) != 1 {
				t.Fatalf("got %d pairs", len(pairs))
			}
			if !pairs[0].IsSourceFunded {
				t.Error("USDC source should be funded")
			}
			if pairs[0].Enabled != tt.enabled {
				t.Errorf("Enabled = %v, want %v", pairs[0].Enabled, tt.enabled)
			}
		})
	}
}

func TestCustodialModeSkipsParentGas(t *testing.T) {
	r := resolver(
		&mockAccount{id: "custodial:USDC", currency: usdc, total: "100"},
		&mockAccount{id: "custodial:ETH", currency: eth, total: "0"},
	)
	a := NewAdvisor(r, nil, []Candidate{{"USDC", "ETH"}}, true, 0)
	pairs := a.Pairs(context.Background())
	if len(pairs) != 1 || !pairs[0].Enabled {
		t.Errorf("custodial USDC pair should be enabled: %+v", pairs)
	}
}

func TestRankingEnabledFirstThenConfiguredOrder(t *testing.T) {
	r := resolver(
		&mockAccount{id: "btc-1", currency: btc, total: "0"},
		&mockAccount{id: "eth-1", currency: eth, total: "1"},
		&mockAccount{id: "xlm-1", currency: xlm, total: "10"},
	)
	candidates := []Candidate{{"BTC", "ETH"}, {"ETH", "BTC"}, {"BTC", "XLM"}, {"XLM", "BTC"}}

	pairs := NewAdvisor(r, nil, candidates, false, 3).Pairs(context.Background())

	want := []string{"eth-1", "xlm-1", "btc-1"}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(pairs), len(want))
	}
	for i, id := range want {
		if pairs[i].Source.ID() != id {
			t.Errorf("position %d: source %s, want %s", i, pairs[i].Source.ID(), id)
		}
	}
	if pairs[2].Destination.ID() != "eth-1" {
		t.Errorf("first disabled pair should keep configured order, got destination %s", pairs[2].Destination.ID())
	}
}

func TestBalanceFailureFallsBackToLastObservation(t *testing.T) {
	r := resolver(
		&mockAccount{id: "btc-1", currency: btc, err: errors.New("node down")},
		&mockAccount{id: "eth-1", currency: eth, total: "0"},
	)
	pairs := NewAdvisor(r, nil, []Candidate{{"BTC", "ETH"}}, false, 0).Pairs(context.Background())
	if len(pairs) != 1 || pairs[0].IsSourceFunded {
		t.Errorf("pairs = %+v, want one unfunded pair", pairs)
	}
}

func TestParseCandidates(t *testing.T) {
	got, err := ParseCandidates(" btc-eth, ETH-USDC ,,")
	if err != nil {
		t.Fatalf("ParseCandidates: %v", err)
	}
	want := []Candidate{{"BTC", "ETH"}, {"ETH", "USDC"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}

	for _, bad := range []string{"BTC", "BTC-", "-ETH", "BTC-BTC"} {
		if _, err := ParseCandidates(bad); err == nil {
			t.Errorf("ParseCandidates(%q) should fail", bad)
		}
	}
}
