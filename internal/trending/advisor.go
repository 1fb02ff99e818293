// Package trending suggests swap pairs the user can act on right now.
package trending

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/coincore"
	"github.com/mtlprog/coincore/internal/domain"
)

// DefaultLimit caps the number of suggested pairs.
const DefaultLimit = 6

// Candidate is a configured (source, target) currency pair.
type Candidate struct {
	Source string
	Target string
}

func (c Candidate) String() string { return c.Source + "-" + c.Target }

// ParseCandidates reads a comma separated list such as "BTC-ETH,ETH-USDC".
func ParseCandidates(s string) ([]Candidate, error) {
	var out []Candidate
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		src, dst, ok := strings.Cut(part, "-")
		src, dst = strings.ToUpper(strings.TrimSpace(src)), strings.ToUpper(strings.TrimSpace(dst))
		if !ok || src == "" || dst == "" {
			return nil, fmt.Errorf("invalid trending pair %q", part)
		}
		if src == dst {
			return nil, fmt.Errorf("trending pair %q swaps a currency into itself", part)
		}
		out = append(out, Candidate{Source: src, Target: dst})
	}
	return out, nil
}

// Pair is a resolved suggestion.
type Pair struct {
	Source         coincore.Account
	Destination    coincore.Account
	IsSourceFunded bool
	// Enabled is set when the source can actually be spent: it is funded and,
	// for a sub-token held outside custody, its parent chain covers the fee.
	Enabled bool
}

// AccountResolver finds the account used for a currency in a given mode.
type AccountResolver interface {
	DefaultAccount(ctx context.Context, code string, custodial bool) (coincore.Account, error)
}

// Advisor ranks the configured candidates against the loaded accounts.
type Advisor struct {
	accounts   AccountResolver
	fees       backend.FeeService
	candidates []Candidate
	custodial  bool
	limit      int
}

// NewAdvisor creates an Advisor. fees may be nil, in which case a positive
// parent balance is enough to cover sub-token fees.
func NewAdvisor(accounts AccountResolver, fees backend.FeeService, candidates []Candidate, custodial bool, limit int) *Advisor {
	if accounts == nil {
		panic("trending: account resolver must not be nil")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Advisor{
		accounts:   accounts,
		fees:       fees,
		candidates: slices.Clone(candidates),
		custodial:  custodial,
		limit:      limit,
	}
}

// Pairs resolves every candidate concurrently and returns the usable ones,
// enabled pairs first and otherwise in configured order. Candidates whose
// accounts cannot be resolved are dropped.
func (a *Advisor) Pairs(ctx context.Context) []Pair {
	resolved := make([]*Pair, len(a.candidates))

	var wg sync.WaitGroup
	for i, c := range a.candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resolved[i] = a.resolve(ctx, c)
		}()
	}
	wg.Wait()

	pairs := lo.FilterMap(resolved, func(p *Pair, _ int) (Pair, bool) {
		if p == nil {
			return Pair{}, false
		}
		return *p, true
	})
	slices.SortStableFunc(pairs, func(x, y Pair) int {
		switch {
		case x.Enabled == y.Enabled:
			return 0
		case x.Enabled:
			return -1
		default:
			return 1
		}
	})
	if len(pairs) > a.limit {
		pairs = pairs[:a.limit]
	}
	return pairs
}

func (a *Advisor) resolve(ctx context.Context, c Candidate) *Pair {
	src, err := a.accounts.DefaultAccount(ctx, c.Source, a.custodial)
	if err != nil {
		slog.Debug("dropping trending pair", "pair", c.String(), "error", err)
		return nil
	}
	dst, err := a.accounts.DefaultAccount(ctx, c.Target, a.custodial)
	if err != nil {
		slog.Debug("dropping trending pair", "pair", c.String(), "error", err)
		return nil
	}

	funded := isFunded(ctx, src)
	return &Pair{
		Source:         src,
		Destination:    dst,
		IsSourceFunded: funded,
		Enabled:        funded && a.coversFees(ctx, src.Currency()),
	}
}

func (a *Advisor) coversFees(ctx context.Context, currency domain.Currency) bool {
	if a.custodial || !currency.IsSubToken() {
		return true
	}
	parent, err := a.accounts.DefaultAccount(ctx, currency.Parent, false)
	if err != nil {
		return false
	}
	l, err := parent.LedgerBalance(ctx)
	if err != nil {
		return parent.IsFunded()
	}
	if !l.Total.IsPositive() {
		return false
	}
	if a.fees == nil {
		return true
	}
	opts, err := a.fees.FeeOptions(ctx, currency)
	if err != nil {
		slog.Warn("failed to read network fee", "currency", currency.Code, "error", err)
		return true
	}
	cmp, err := l.Total.Cmp(opts.Regular)
	return err == nil && cmp >= 0
}

func isFunded(ctx context.Context, acc coincore.Account) bool {
	l, err := acc.LedgerBalance(ctx)
	if err != nil {
		return acc.IsFunded()
	}
	return l.Total.IsPositive()
}
