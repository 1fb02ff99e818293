// Package coincore models wallet accounts of every kind behind one contract
// and loads them from the asset registry and the wallet store.
package coincore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mtlprog/coincore/internal/asset"
	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/balance"
	"github.com/mtlprog/coincore/internal/domain"
)

// AccountKind tells which kind of funds an account holds.
type AccountKind string

const (
	AccountNonCustodial AccountKind = "NON_CUSTODIAL"
	AccountCustodial    AccountKind = "CUSTODIAL"
	AccountInterest     AccountKind = "INTEREST"
	AccountFiat         AccountKind = "FIAT"
	AccountGroup        AccountKind = "GROUP"
)

// Account is the contract shared by every account kind.
type Account interface {
	ID() string
	Label() string
	Currency() domain.Currency
	Kind() AccountKind
	IsDefault() bool
	IsArchived() bool
	// IsFunded reflects the last observed balance.
	IsFunded() bool
	// HasTransactions is set once a non-empty activity list has been observed.
	HasTransactions() bool

	// LedgerBalance reads the current balance once and records whether the
	// account is funded.
	LedgerBalance(ctx context.Context) (balance.Ledger, error)
	// Balance streams the balance valued in fiat until ctx is done.
	Balance(ctx context.Context) <-chan balance.AccountBalance
	// Activity returns the normalized history. Backend failures degrade to
	// an empty contribution.
	Activity(ctx context.Context) []ActivityItem
	ReceiveAddress(ctx context.Context) (backend.ReceiveAddress, error)
	AvailableActions(ctx context.Context) (domain.ActionSet, error)
}

// Services are the collaborators accounts use. Registry, Balances and Wallets
// are required; an account kind whose backend is nil is not created.
type Services struct {
	Registry  *asset.Registry
	Balances  *balance.Fetcher
	Wallets   backend.WalletStore
	Identity  backend.IdentityService
	Trading   backend.TradingService
	Transfers backend.TransferService
	Interest  backend.InterestService
	Fiat      backend.FiatService
	Swaps     backend.SwapService
}

func (s *Services) tier(ctx context.Context) domain.KycTier {
	if s.Identity == nil {
		return domain.KycTierNone
	}
	tier, err := s.Identity.HighestApprovedTier(ctx)
	if err != nil {
		slog.Warn("failed to read KYC tier, assuming none", "error", err)
		return domain.KycTierNone
	}
	return tier
}

func (s *Services) interestEligible(ctx context.Context, info asset.Info) bool {
	if s.Interest == nil || !info.Has(asset.CapInterest) {
		return false
	}
	ok, err := s.Interest.IsEligible(ctx, info.Currency)
	if err != nil {
		slog.Warn("failed to check interest eligibility", "currency", info.Currency.Code, "error", err)
		return false
	}
	return ok
}

// accountState is the mutable part of an account.
type accountState struct {
	mu         sync.RWMutex
	label      string
	archived   bool
	funded     bool
	hasTx      bool
	lastLedger *balance.Ledger
}

// baseAccount carries identity and state shared by every concrete account.
type baseAccount struct {
	id        string
	info      asset.Info
	kind      AccountKind
	isDefault bool
	svc       *Services

	state *accountState
}

func newBase(id string, info asset.Info, kind AccountKind, label string, isDefault bool, svc *Services) baseAccount {
	return baseAccount{
		id:        id,
		info:      info,
		kind:      kind,
		isDefault: isDefault,
		svc:       svc,
		state:     &accountState{label: label},
	}
}

func (a *baseAccount) ID() string                { return a.id }
func (a *baseAccount) Currency() domain.Currency { return a.info.Currency }
func (a *baseAccount) Kind() AccountKind         { return a.kind }
func (a *baseAccount) IsDefault() bool           { return a.isDefault }

func (a *baseAccount) Label() string {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return a.state.label
}

func (a *baseAccount) IsArchived() bool {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return a.state.archived
}

func (a *baseAccount) IsFunded() bool {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return a.state.funded
}

func (a *baseAccount) HasTransactions() bool {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return a.state.hasTx
}

func (a *baseAccount) observeLedger(l balance.Ledger) {
	a.state.mu.Lock()
	defer a.state.mu.Unlock()
	a.state.funded = l.Total.IsPositive()
	a.state.lastLedger = &l
}

// lastLedger returns the last observed ledger, or false if none was seen yet.
func (a *baseAccount) lastLedger() (balance.Ledger, bool) {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	if a.state.lastLedger == nil {
		return balance.Ledger{}, false
	}
	return *a.state.lastLedger, true
}

func (a *baseAccount) observeActivity(items []ActivityItem) []ActivityItem {
	if len(items) > 0 {
		a.state.mu.Lock()
		a.state.hasTx = true
		a.state.mu.Unlock()
	}
	return items
}

// ledgerOrLast refreshes the ledger, falling back to the last observed value.
func (a *baseAccount) ledgerOrLast(ctx context.Context, read balance.LedgerFunc) (balance.Ledger, bool) {
	l, err := read(ctx)
	if err == nil {
		a.observeLedger(l)
		return l, true
	}
	slog.Warn("failed to refresh balance", "account", a.id, "error", err)
	return a.lastLedger()
}

func (a *baseAccount) stream(ctx context.Context, read balance.LedgerFunc) <-chan balance.AccountBalance {
	return a.svc.Balances.Stream(ctx, a.info.Currency, read, a.observeLedger)
}

// viewActivity is offered once the account has funds or history.
func (a *baseAccount) viewActivity(actions domain.ActionSet) {
	if a.IsFunded() || a.HasTransactions() {
		actions.Add(domain.ActionViewActivity)
	}
}

// degrade logs a failed backend read and substitutes an empty result.
func degrade[T any](accountID, source string, items []T, err error) []T {
	if err != nil {
		slog.Warn("activity source failed, using empty result",
			"account", accountID, "source", source, "error", err)
		return nil
	}
	return items
}
