package balance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/coincore/internal/domain"
)

var (
	btc = domain.NewNativeCurrency("BTC", 8)
	usd = domain.NewFiatCurrency("USD", 2)
)

// chanRates hands out a caller-controlled rate channel.
type chanRates struct {
	ch chan domain.ExchangeRate
}

func (r *chanRates) ExchangeRate(ctx context.Context, _, _ domain.Currency) <-chan domain.ExchangeRate {
	out := make(chan domain.ExchangeRate)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-r.ch:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *chanRates) PriceWith24hDelta(ctx context.Context, _, _ domain.Currency) <-chan domain.PriceDelta {
	out := make(chan domain.PriceDelta)
	close(out)
	return out
}

func money(s string, c domain.Currency) domain.Money {
	return domain.NewMoney(decimal.RequireFromString(s), c)
}

func rate(s string) domain.ExchangeRate {
	return domain.ExchangeRate{From: btc, To: usd, Rate: decimal.RequireFromString(s)}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestCombineLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	as := make(chan int)
	bs := make(chan string)
	out := CombineLatest(ctx, as, bs, func(a int, b string) (string, bool) {
		return b + string(rune('0'+a)), true
	})

	as <- 1
	as <- 2
	bs <- "x"
	if got := recv(t, out); got != "x2" {
		t.Errorf("first emission = %q, want x2", got)
	}

	bs <- "y"
	if got := recv(t, out); got != "y2" {
		t.Errorf("after b change = %q, want y2", got)
	}

	as <- 3
	if got := recv(t, out); got != "y3" {
		t.Errorf("after a change = %q, want y3", got)
	}

	close(as)
	close(bs)
	if _, ok := <-out; ok {
		t.Error("output should close once both inputs close")
	}
}

func TestCombineLatestAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := make(chan int)
	b := make(chan int)
	out := CombineLatestAll(ctx, []<-chan int{a, b})

	a <- 1
	b <- 10
	snap := recv(t, out)
	if snap[0] != 1 || snap[1] != 10 {
		t.Errorf("snapshot = %v, want [1 10]", snap)
	}

	a <- 2
	snap = recv(t, out)
	if snap[0] != 2 || snap[1] != 10 {
		t.Errorf("snapshot = %v, want [2 10]", snap)
	}

	empty := CombineLatestAll[int](ctx, nil)
	if got := recv(t, empty); len(got) != 0 {
		t.Errorf("empty snapshot = %v", got)
	}
}

func TestPollSkipsUnchangedAndErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	values := []int{1, 1, -1, 2}
	out := Poll(ctx, time.Millisecond, func(context.Context) (int, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(values) {
			return 2, nil
		}
		if values[n] < 0 {
			return 0, errors.New("backend down")
		}
		return values[n], nil
	}, func(prev, next int) bool { return prev == next })

	if got := recv(t, out); got != 1 {
		t.Errorf("first = %d, want 1", got)
	}
	if got := recv(t, out); got != 2 {
		t.Errorf("second = %d, want 2 (duplicate and error skipped)", got)
	}
}

func TestFetcherStreamJoinsLedgerAndRate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rates := &chanRates{ch: make(chan domain.ExchangeRate)}
	f := NewFetcher(rates, usd, time.Hour)

	var funded atomic.Bool
	stream := f.Stream(ctx, btc, func(context.Context) (Ledger, error) {
		return Single(money("0.0625", btc)), nil
	}, func(l Ledger) { funded.Store(l.Total.IsPositive()) })

	rates.ch <- rate("2")
	b := recv(t, stream)
	if !b.FiatTotal.Amount().Equal(decimal.RequireFromString("0.12")) {
		t.Errorf("fiat total = %s, want 0.12 (half-even)", b.FiatTotal.Amount())
	}
	if !funded.Load() {
		t.Error("onLedger was not called with the ledger")
	}

	rates.ch <- rate("4")
	b = recv(t, stream)
	if !b.FiatTotal.Amount().Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("fiat total after rate change = %s, want 0.25", b.FiatTotal.Amount())
	}
	if !b.Rate.Rate.Equal(decimal.NewFromInt(4)) {
		t.Errorf("rate = %s, want 4", b.Rate.Rate)
	}
}

func TestFetcherStreamFiatUsesIdentityRate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFetcher(&chanRates{ch: make(chan domain.ExchangeRate)}, usd, time.Hour)
	stream := f.Stream(ctx, usd, func(context.Context) (Ledger, error) {
		return Single(money("10.50", usd)), nil
	}, nil)

	b := recv(t, stream)
	if !b.FiatTotal.Equal(money("10.5", usd)) {
		t.Errorf("fiat total = %s, want 10.50 USD", b.FiatTotal)
	}
}

func TestFetcherGroupSumsChildren(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFetcher(&chanRates{ch: make(chan domain.ExchangeRate)}, usd, time.Hour)
	a := make(chan AccountBalance)
	b := make(chan AccountBalance)
	group := f.Group(ctx, []<-chan AccountBalance{a, b})

	a <- AccountBalance{FiatTotal: money("1.25", usd)}
	b <- AccountBalance{FiatTotal: money("2.50", usd)}
	if got := recv(t, group); !got.Total.Equal(money("3.75", usd)) {
		t.Errorf("group total = %s, want 3.75 USD", got.Total)
	}

	a <- AccountBalance{FiatTotal: money("0", usd)}
	if got := recv(t, group); !got.FiatTotal.Equal(money("2.5", usd)) {
		t.Errorf("group total = %s, want 2.50 USD", got.FiatTotal)
	}
}

func TestCombineRejectsWrongRate(t *testing.T) {
	eth := domain.NewNativeCurrency("ETH", 18)
	if _, err := Combine(Single(money("1", eth)), rate("2")); !errors.Is(err, domain.ErrCurrencyMismatch) {
		t.Errorf("error = %v, want ErrCurrencyMismatch", err)
	}
}

func TestFallbackAfter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan int)
	out := FallbackAfter(ctx, in, -1, 10*time.Millisecond)
	if got := recv(t, out); got != -1 {
		t.Errorf("first = %d, want fallback -1", got)
	}
	in <- 7
	if got := recv(t, out); got != 7 {
		t.Errorf("second = %d, want 7", got)
	}

	early := make(chan int)
	out = FallbackAfter(ctx, early, -1, time.Hour)
	go func() { early <- 3 }()
	if got := recv(t, out); got != 3 {
		t.Errorf("value before grace = %d, want 3", got)
	}

	closed := make(chan int)
	close(closed)
	out = FallbackAfter(ctx, closed, -1, time.Hour)
	if got := recv(t, out); got != -1 {
		t.Errorf("closed input = %d, want fallback -1", got)
	}
}

func TestFetcherGroupCountsFailingChildAsZero(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFetcher(&chanRates{ch: make(chan domain.ExchangeRate)}, usd, 20*time.Millisecond)
	f.grace = 50 * time.Millisecond

	healthy := f.Stream(ctx, usd, func(context.Context) (Ledger, error) {
		return Single(money("5", usd)), nil
	}, nil)
	failing := f.Stream(ctx, usd, func(context.Context) (Ledger, error) {
		return Ledger{}, errors.New("custodian unreachable")
	}, nil)
	// no rate ever arrives for BTC
	unquoted := f.Stream(ctx, btc, func(context.Context) (Ledger, error) {
		return Single(money("1", btc)), nil
	}, nil)

	group := f.Group(ctx, []<-chan AccountBalance{healthy, failing, unquoted})
	got := recv(t, group)
	if !got.FiatTotal.Equal(money("5", usd)) {
		t.Errorf("group total = %s, want 5 USD from the healthy child", got.FiatTotal)
	}
	if !got.Total.Currency().SameAs(usd) {
		t.Errorf("group currency = %s, want USD", got.Total.Currency().Code)
	}
}
