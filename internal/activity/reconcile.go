package activity

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/coincore"
)

// includer is implemented by account groups.
type includer interface {
	Includes(coincore.Account) bool
}

// Filter keeps the items owned by scope, or by one of its children when scope
// is a group.
func Filter(items []coincore.ActivityItem, scope coincore.Account) []coincore.ActivityItem {
	group, isGroup := scope.(includer)
	return lo.Filter(items, func(item coincore.ActivityItem, _ int) bool {
		owner := coincore.Summary(item).Account
		if owner == nil {
			return false
		}
		return owner.ID() == scope.ID() || (isGroup && group.Includes(owner))
	})
}

// Reconcile collapses records of the same movement reported by two backends.
// It first drops fiat deposits that funded a custodial buy, then drops
// custodial transfers that an interest account reports as well. The fiat
// deposits removed by the first pass are returned so they can be evicted from
// the cache. Matching is by identifier only.
func Reconcile(items []coincore.ActivityItem) ([]coincore.ActivityItem, []coincore.ActivityKey) {
	items, fundingLegs := collapseBuyDeposits(slices.Clone(items))
	items = collapseInterestTransfers(items)
	return Sort(items), fundingLegs
}

func collapseBuyDeposits(items []coincore.ActivityItem) ([]coincore.ActivityItem, []coincore.ActivityKey) {
	funding := make(map[string]struct{})
	for _, item := range items {
		if trade, ok := item.(coincore.CustodialTradingActivity); ok && trade.DepositPaymentID != "" {
			funding[trade.DepositPaymentID] = struct{}{}
		}
	}
	if len(funding) == 0 {
		return items, nil
	}

	var removed []coincore.ActivityKey
	kept := slices.DeleteFunc(items, func(item coincore.ActivityItem) bool {
		deposit, ok := item.(coincore.FiatActivity)
		if !ok || deposit.Type != backend.TxTypeDeposit {
			return false
		}
		if _, linked := funding[deposit.TxID]; !linked {
			return false
		}
		removed = append(removed, coincore.KeyOf(item))
		slog.Debug("collapsed buy funding deposit", "item", describe(item))
		return true
	})
	return Sort(kept), removed
}

func collapseInterestTransfers(items []coincore.ActivityItem) []coincore.ActivityItem {
	interest := make(map[string]struct{})
	for _, item := range items {
		in, ok := item.(coincore.CustodialInterestActivity)
		if !ok || in.Account == nil || in.Account.Kind() != coincore.AccountInterest {
			continue
		}
		interest[in.TxID] = struct{}{}
	}
	if len(interest) == 0 {
		return items
	}

	kept := slices.DeleteFunc(items, func(item coincore.ActivityItem) bool {
		transfer, ok := item.(coincore.CustodialTransferActivity)
		if !ok {
			return false
		}
		if transfer.Type != backend.TxTypeDeposit && transfer.Type != backend.TxTypeWithdrawal {
			return false
		}
		if _, linked := interest[transfer.TxID]; !linked {
			return false
		}
		slog.Debug("collapsed interest transfer", "item", describe(item))
		return true
	})
	return Sort(kept)
}

// Sort orders items newest first. Ties are broken by kind and then by id so
// the same input always yields the same order.
func Sort(items []coincore.ActivityItem) []coincore.ActivityItem {
	slices.SortStableFunc(items, func(a, b coincore.ActivityItem) int {
		sa, sb := coincore.Summary(a), coincore.Summary(b)
		if c := sb.Timestamp.Compare(sa.Timestamp); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
			return c
		}
		return cmp.Compare(sa.TxID, sb.TxID)
	})
	return items
}

// Dedup drops repeated items with the same kind and id, keeping the first.
func Dedup(items []coincore.ActivityItem) []coincore.ActivityItem {
	seen := make(map[coincore.ActivityKey]struct{}, len(items))
	out := make([]coincore.ActivityItem, 0, len(items))
	for _, item := range items {
		key := coincore.KeyOf(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// describe renders an item for logs.
func describe(item coincore.ActivityItem) string {
	e := Flatten(item)
	return fmt.Sprintf("%s %s %s", e.Detail, e.TxID, e.Value)
}
