package coincore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/mtlprog/coincore/internal/asset"
	"github.com/mtlprog/coincore/internal/backend"
)

// Coincore loads every account of the session and hands out accounts and groups.
type Coincore struct {
	svc *Services

	mu       sync.Mutex
	loaded   bool
	accounts []Account
	byID     map[string]Account
}

// New creates a Coincore. Registry, Balances and Wallets are required.
func New(svc Services) *Coincore {
	if svc.Registry == nil {
		panic("coincore: registry must not be nil")
	}
	if svc.Balances == nil {
		panic("coincore: balance fetcher must not be nil")
	}
	if svc.Wallets == nil {
		panic("coincore: wallet store must not be nil")
	}
	return &Coincore{svc: &svc}
}

// Reset drops every loaded account; the next call reloads from the store.
func (c *Coincore) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.accounts = nil
	c.byID = nil
}

// Accounts returns every loaded account, archived ones included.
func (c *Coincore) Accounts(ctx context.Context) ([]Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	return append([]Account(nil), c.accounts...), nil
}

// AllWallets returns the group of every non-archived account.
func (c *Coincore) AllWallets(ctx context.Context) (*Group, error) {
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	active := lo.Reject(accounts, func(a Account, _ int) bool { return a.IsArchived() })
	fiat := c.svc.Balances.Fiat()
	return newGroup(AllWalletsID, GroupAllWallets, "All Wallets", fiat, active, c.svc), nil
}

// AllActivity returns the activity of every non-archived account. It fails
// only when the accounts themselves cannot be loaded.
func (c *Coincore) AllActivity(ctx context.Context) ([]ActivityItem, error) {
	group, err := c.AllWallets(ctx)
	if err != nil {
		return nil, err
	}
	return group.Activity(ctx), nil
}

// AssetGroup returns the group of every non-archived account holding code.
func (c *Coincore) AssetGroup(ctx context.Context, code string) (*Group, error) {
	info, err := c.svc.Registry.Lookup(code)
	if err != nil {
		return nil, err
	}
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	members := lo.Filter(accounts, func(a Account, _ int) bool {
		return !a.IsArchived() && a.Currency().Code == code
	})
	return newGroup(AssetGroupID(code), GroupAsset, info.Name, info.Currency, members, c.svc), nil
}

// Account resolves an id, including the ids of groups.
func (c *Coincore) Account(ctx context.Context, id string) (Account, error) {
	if id == AllWalletsID {
		return c.AllWallets(ctx)
	}
	if code, ok := strings.CutPrefix(id, "asset:"); ok {
		g, err := c.AssetGroup(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		return g, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	acc, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return acc, nil
}

// DefaultAccount returns the account used for code in the given mode: the
// custodial trading account, or the default non-custodial account.
func (c *Coincore) DefaultAccount(ctx context.Context, code string, custodial bool) (Account, error) {
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	if custodial {
		acc, ok := lo.Find(accounts, func(a Account) bool {
			return a.Kind() == AccountCustodial && a.Currency().Code == code
		})
		if !ok {
			return nil, fmt.Errorf("%w: custodial %s", ErrAccountNotFound, code)
		}
		return acc, nil
	}

	candidates := lo.Filter(accounts, func(a Account, _ int) bool {
		return a.Kind() == AccountNonCustodial && a.Currency().Code == code && !a.IsArchived()
	})
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: non-custodial %s", ErrAccountNotFound, code)
	}
	if acc, ok := lo.Find(candidates, func(a Account) bool { return a.IsDefault() }); ok {
		return acc, nil
	}
	return candidates[0], nil
}

// NonCustodial returns the non-custodial account with the given id.
func (c *Coincore) NonCustodial(ctx context.Context, id string) (*NonCustodialAccount, error) {
	acc, err := c.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	nc, ok := acc.(*NonCustodialAccount)
	if !ok {
		return nil, unsupported("wallet management", id)
	}
	return nc, nil
}

func (c *Coincore) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	records, err := c.svc.Wallets.ListWallets(ctx)
	if err != nil {
		return fmt.Errorf("loading wallets: %w", err)
	}

	var accounts []Account
	for _, rec := range records {
		acc, ok := c.nonCustodial(rec)
		if ok {
			accounts = append(accounts, acc)
		}
	}
	accounts = append(accounts, c.custodialAccounts()...)

	c.accounts = accounts
	c.byID = lo.SliceToMap(accounts, func(a Account) (string, Account) { return a.ID(), a })
	c.loaded = true

	slog.Info("accounts loaded", "count", len(accounts), "wallets", len(records))
	return nil
}

func (c *Coincore) nonCustodial(rec backend.WalletRecord) (*NonCustodialAccount, bool) {
	info, err := c.svc.Registry.Lookup(rec.Currency)
	if err != nil {
		slog.Warn("skipping wallet with unknown currency", "wallet", rec.ID, "currency", rec.Currency)
		return nil, false
	}
	if !info.Has(asset.CapNonCustodial) {
		slog.Warn("skipping wallet for custodial-only asset", "wallet", rec.ID, "currency", rec.Currency)
		return nil, false
	}
	eng, ok := engineFor(info.Engine)
	if !ok {
		slog.Warn("skipping wallet without chain engine", "wallet", rec.ID, "engine", info.Engine)
		return nil, false
	}
	chain, ok := c.svc.Registry.ChainService(rec.Currency)
	if !ok {
		slog.Warn("skipping wallet without chain service", "wallet", rec.ID, "currency", rec.Currency)
		return nil, false
	}

	label := rec.Label
	if label == "" {
		label = info.Name
	}
	acc := &NonCustodialAccount{
		baseAccount: newBase(rec.ID, info, AccountNonCustodial, label, rec.IsDefault, c.svc),
		ref: backend.ChainAccountRef{
			Currency: info.Currency,
			Address:  rec.Address,
			XPub:     rec.XPub,
		},
		chain:  chain,
		engine: eng,
	}
	acc.state.archived = rec.Archived
	return acc, true
}

func (c *Coincore) custodialAccounts() []Account {
	var accounts []Account
	for _, info := range c.svc.Registry.All() {
		code := info.Currency.Code
		if c.svc.Trading != nil && info.Has(asset.CapCustodial) {
			accounts = append(accounts, &CustodialAccount{
				baseAccount: newBase("custodial:"+code, info, AccountCustodial, info.Name+" Trading", false, c.svc),
			})
		}
		if c.svc.Interest != nil && info.Has(asset.CapInterest) {
			accounts = append(accounts, &InterestAccount{
				baseAccount: newBase("interest:"+code, info, AccountInterest, info.Name+" Rewards", false, c.svc),
			})
		}
		if c.svc.Fiat != nil && info.Has(asset.CapFiat) {
			accounts = append(accounts, &FiatAccount{
				baseAccount: newBase("fiat:"+code, info, AccountFiat, info.Name, false, c.svc),
			})
		}
	}
	return accounts
}
