// Package balance joins raw ledger balances with live exchange rates into
// fiat-denominated account balances.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

// Ledger is an account balance in its own currency.
type Ledger struct {
	Total        domain.Money
	Withdrawable domain.Money
	Pending      domain.Money
}

// FromCustodial converts a custodial backend balance.
func FromCustodial(b backend.CustodialBalance) Ledger {
	return Ledger{Total: b.Total, Withdrawable: b.Withdrawable, Pending: b.Pending}
}

// Single returns a ledger where the whole amount is withdrawable.
func Single(total domain.Money) Ledger {
	return Ledger{Total: total, Withdrawable: total, Pending: domain.ZeroMoney(total.Currency())}
}

func (l Ledger) Equal(other Ledger) bool {
	return l.Total.Equal(other.Total) && l.Withdrawable.Equal(other.Withdrawable) && l.Pending.Equal(other.Pending)
}

// AccountBalance is a ledger balance together with its fiat value and the rate used.
type AccountBalance struct {
	Total        domain.Money        `json:"total"`
	Withdrawable domain.Money        `json:"withdrawable"`
	Pending      domain.Money        `json:"pending"`
	FiatTotal    domain.Money        `json:"fiatTotal"`
	Rate         domain.ExchangeRate `json:"rate"`
}

// Combine values a ledger at the given rate.
func Combine(l Ledger, rate domain.ExchangeRate) (AccountBalance, error) {
	fiat, err := rate.Convert(l.Total)
	if err != nil {
		return AccountBalance{}, fmt.Errorf("valuing %s balance: %w", l.Total.Currency().Code, err)
	}
	return AccountBalance{
		Total:        l.Total,
		Withdrawable: l.Withdrawable,
		Pending:      l.Pending,
		FiatTotal:    fiat,
		Rate:         rate,
	}, nil
}

// DefaultGroupGrace is how long a group waits for a child's first balance
// before counting the child as zero.
const DefaultGroupGrace = 3 * time.Second

// LedgerFunc reads the current ledger balance of one account.
type LedgerFunc func(ctx context.Context) (Ledger, error)

// Fetcher produces balance streams for accounts.
type Fetcher struct {
	rates    backend.RateService
	fiat     domain.Currency
	interval time.Duration
	grace    time.Duration
}

// NewFetcher creates a Fetcher valuing balances in fiat, polling ledgers every interval.
func NewFetcher(rates backend.RateService, fiat domain.Currency, interval time.Duration) *Fetcher {
	if rates == nil {
		panic("balance: rates must not be nil")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Fetcher{rates: rates, fiat: fiat, interval: interval, grace: DefaultGroupGrace}
}

// Fiat returns the currency balances are valued in.
func (f *Fetcher) Fiat() domain.Currency { return f.fiat }

// Stream emits a fresh AccountBalance whenever the ledger balance or the
// exchange rate changes. onLedger is called after every successful ledger read.
func (f *Fetcher) Stream(ctx context.Context, currency domain.Currency, ledger LedgerFunc, onLedger func(Ledger)) <-chan AccountBalance {
	ledgers := Poll(ctx, f.interval, func(ctx context.Context) (Ledger, error) {
		l, err := ledger(ctx)
		if err != nil {
			return Ledger{}, err
		}
		if onLedger != nil {
			onLedger(l)
		}
		return l, nil
	}, Ledger.Equal)

	return CombineLatest(ctx, ledgers, f.rateStream(ctx, currency), func(l Ledger, r domain.ExchangeRate) (AccountBalance, bool) {
		b, err := Combine(l, r)
		if err != nil {
			slog.Warn("dropping balance update", "currency", currency.Code, "error", err)
			return AccountBalance{}, false
		}
		return b, true
	})
}

func (f *Fetcher) rateStream(ctx context.Context, currency domain.Currency) <-chan domain.ExchangeRate {
	if currency.SameAs(f.fiat) {
		return Just(ctx, domain.IdentityRate(f.fiat))
	}
	return f.rates.ExchangeRate(ctx, currency, f.fiat)
}

// Group sums the fiat value of every child stream. Each emission is a balance
// denominated in fiat whose rate is the identity. A child that has produced
// nothing within the grace period, because its ledger or its rate is
// unavailable, counts as zero until it does.
func (f *Fetcher) Group(ctx context.Context, children []<-chan AccountBalance) <-chan AccountBalance {
	out := make(chan AccountBalance)
	zero := f.zero()
	guarded := make([]<-chan AccountBalance, len(children))
	for i, child := range children {
		guarded[i] = FallbackAfter(ctx, child, zero, f.grace)
	}
	snapshots := CombineLatestAll(ctx, guarded)
	go func() {
		defer close(out)
		for snap := range snapshots {
			total, err := SumFiat(f.fiat, snap)
			if err != nil {
				slog.Warn("dropping group balance update", "error", err)
				continue
			}
			b := AccountBalance{
				Total:        total,
				Withdrawable: total,
				Pending:      domain.ZeroMoney(f.fiat),
				FiatTotal:    total,
				Rate:         domain.IdentityRate(f.fiat),
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// zero is the balance substituted for a child that cannot be valued.
func (f *Fetcher) zero() AccountBalance {
	z := domain.ZeroMoney(f.fiat)
	return AccountBalance{
		Total:        z,
		Withdrawable: z,
		Pending:      z,
		FiatTotal:    z,
		Rate:         domain.IdentityRate(f.fiat),
	}
}

// SumFiat adds the fiat values of the given balances.
func SumFiat(fiat domain.Currency, balances []AccountBalance) (domain.Money, error) {
	values := make([]domain.Money, len(balances))
	for i, b := range balances {
		values[i] = b.FiatTotal
	}
	return domain.SumMoney(fiat, values...)
}
