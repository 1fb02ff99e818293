package coincore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/mtlprog/coincore/internal/asset"
	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/balance"
	"github.com/mtlprog/coincore/internal/domain"
)

// GroupKind tells what a group aggregates.
type GroupKind string

const (
	GroupAllWallets GroupKind = "ALL_WALLETS"
	GroupAsset      GroupKind = "ASSET"
)

// AllWalletsID is the account id of the all-wallets group.
const AllWalletsID = "all-wallets"

// AssetGroupID returns the account id of the group over every account of code.
func AssetGroupID(code string) string { return "asset:" + code }

// Group aggregates child accounts. Its balance is the fiat sum of the children.
type Group struct {
	baseAccount
	groupKind GroupKind
	children  []Account
	members   map[string]struct{}
}

func newGroup(id string, kind GroupKind, label string, currency domain.Currency, children []Account, svc *Services) *Group {
	return &Group{
		baseAccount: newBase(id, asset.Info{Currency: currency}, AccountGroup, label, false, svc),
		groupKind:   kind,
		children:    children,
		members: lo.SliceToMap(children, func(a Account) (string, struct{}) {
			return a.ID(), struct{}{}
		}),
	}
}

func (g *Group) GroupKind() GroupKind { return g.groupKind }

// Children returns the accounts in the group.
func (g *Group) Children() []Account { return slices.Clone(g.children) }

// Includes reports whether acc is one of the group's children.
func (g *Group) Includes(acc Account) bool {
	if acc == nil {
		return false
	}
	_, ok := g.members[acc.ID()]
	return ok
}

func (g *Group) IsFunded() bool {
	return lo.SomeBy(g.children, func(a Account) bool { return a.IsFunded() })
}

func (g *Group) HasTransactions() bool {
	return lo.SomeBy(g.children, func(a Account) bool { return a.HasTransactions() })
}

// LedgerBalance sums the fiat value of every child at the current rates.
func (g *Group) LedgerBalance(ctx context.Context) (balance.Ledger, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	select {
	case b, ok := <-g.Balance(ctx):
		if !ok {
			return balance.Ledger{}, fmt.Errorf("balance of group %s unavailable: %w", g.id, ctx.Err())
		}
		return balance.Single(b.Total), nil
	case <-ctx.Done():
		return balance.Ledger{}, ctx.Err()
	}
}

func (g *Group) Balance(ctx context.Context) <-chan balance.AccountBalance {
	streams := lo.Map(g.children, func(a Account, _ int) <-chan balance.AccountBalance {
		return a.Balance(ctx)
	})
	return g.svc.Balances.Group(ctx, streams)
}

// Activity reads every child concurrently and concatenates the results in
// child order.
func (g *Group) Activity(ctx context.Context) []ActivityItem {
	results := make([][]ActivityItem, len(g.children))

	var wg sync.WaitGroup
	for i, child := range g.children {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = child.Activity(ctx)
		}()
	}
	wg.Wait()

	return slices.Concat(results...)
}

func (g *Group) ReceiveAddress(context.Context) (backend.ReceiveAddress, error) {
	return backend.ReceiveAddress{}, unsupported("receive address", g.id)
}

func (g *Group) AvailableActions(context.Context) (domain.ActionSet, error) {
	actions := domain.NewActionSet()
	if g.IsFunded() || g.HasTransactions() {
		actions.Add(domain.ActionViewActivity)
	}
	return actions, nil
}
