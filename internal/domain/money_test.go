package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

var (
	btc = NewNativeCurrency("BTC", 8)
	eth = NewNativeCurrency("ETH", 18)
	usd = NewFiatCurrency("USD", 2)
)

func mustMoney(t *testing.T, amount string, c Currency) Money {
	t.Helper()
	m, err := MoneyFromString(amount, c)
	if err != nil {
		t.Fatalf("MoneyFromString(%q): %v", amount, err)
	}
	return m
}

func TestMoneySameCurrencyArithmetic(t *testing.T) {
	a := mustMoney(t, "1.5", btc)
	b := mustMoney(t, "0.25", btc)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: unexpected error: %v", err)
	}
	if !sum.Amount().Equal(decimal.RequireFromString("1.75")) {
		t.Errorf("Add = %s, want 1.75", sum.Amount())
	}

	diff, err := b.Sub(a)
	if err != nil {
		t.Fatalf("Sub: unexpected error: %v", err)
	}
	if !diff.IsNegative() {
		t.Errorf("Sub = %s, want negative", diff.Amount())
	}

	cmp, err := a.Cmp(b)
	if err != nil {
		t.Fatalf("Cmp: unexpected error: %v", err)
	}
	if cmp != 1 {
		t.Errorf("Cmp = %d, want 1", cmp)
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	a := mustMoney(t, "1", btc)
	b := mustMoney(t, "1", eth)

	ops := map[string]func() error{
		"add": func() error { _, err := a.Add(b); return err },
		"sub": func() error { _, err := a.Sub(b); return err },
		"cmp": func() error { _, err := a.Cmp(b); return err },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			if !errors.Is(err, ErrCurrencyMismatch) {
				t.Fatalf("error = %v, want ErrCurrencyMismatch", err)
			}
			var mismatch *CurrencyMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("error %T is not *CurrencyMismatchError", err)
			}
			if mismatch.Left != "BTC" || mismatch.Right != "ETH" {
				t.Errorf("mismatch = %s/%s, want BTC/ETH", mismatch.Left, mismatch.Right)
			}
		})
	}
}

func TestMoneyEqualAcrossCurrencies(t *testing.T) {
	if mustMoney(t, "1", btc).Equal(mustMoney(t, "1", eth)) {
		t.Error("Equal() = true for different currencies")
	}
	if !mustMoney(t, "1.0", btc).Equal(mustMoney(t, "1", btc)) {
		t.Error("Equal() = false for same amount and currency")
	}
}

func TestMoneyFromMinor(t *testing.T) {
	m := MoneyFromMinor(150_000_000, btc)
	if !m.Amount().Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("MoneyFromMinor = %s, want 1.5", m.Amount())
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		name  string
		money Money
		want  string
	}{
		{"crypto strips zeros", NewMoney(decimal.RequireFromString("0.10000000"), btc), "0.1 BTC"},
		{"fiat keeps minor units", NewMoney(decimal.RequireFromString("12.5"), usd), "12.50 USD"},
		{"fiat rounds half even", NewMoney(decimal.RequireFromString("0.125"), usd), "0.12 USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMoneyMarshalJSON(t *testing.T) {
	data, err := json.Marshal(NewMoney(decimal.RequireFromString("2.50"), usd))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"amount":"2.5","currency":"USD"}` {
		t.Errorf("json = %s", data)
	}
}

func TestSumMoney(t *testing.T) {
	total, err := SumMoney(usd, mustMoney(t, "1.10", usd), mustMoney(t, "2.20", usd))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !total.Amount().Equal(decimal.RequireFromString("3.3")) {
		t.Errorf("SumMoney = %s, want 3.3", total.Amount())
	}

	if _, err := SumMoney(usd, mustMoney(t, "1", btc)); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("SumMoney with BTC error = %v, want ErrCurrencyMismatch", err)
	}
}
