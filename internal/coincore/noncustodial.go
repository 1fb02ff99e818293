package coincore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/balance"
	"github.com/mtlprog/coincore/internal/domain"
)

// activityPageSize is how many chain transactions one activity read requests.
const activityPageSize = 50

// NonCustodialAccount is a user-controlled account on one chain.
type NonCustodialAccount struct {
	baseAccount
	ref    backend.ChainAccountRef
	chain  backend.ChainService
	engine chainEngine
}

func (a *NonCustodialAccount) readLedger(ctx context.Context) (balance.Ledger, error) {
	total, err := a.chain.GetBalance(ctx, a.ref)
	if err != nil {
		return balance.Ledger{}, fmt.Errorf("fetching %s balance for %s: %w", a.info.Currency.Code, a.id, err)
	}
	return balance.Single(total), nil
}

func (a *NonCustodialAccount) LedgerBalance(ctx context.Context) (balance.Ledger, error) {
	l, err := a.readLedger(ctx)
	if err != nil {
		return balance.Ledger{}, err
	}
	a.observeLedger(l)
	return l, nil
}

func (a *NonCustodialAccount) Balance(ctx context.Context) <-chan balance.AccountBalance {
	return a.stream(ctx, a.readLedger)
}

// Activity merges chain transactions with swaps settled on this account.
// A chain transaction that is the on-chain leg of a swap is dropped in favour
// of the swap.
func (a *NonCustodialAccount) Activity(ctx context.Context) []ActivityItem {
	var (
		wg    sync.WaitGroup
		txs   []backend.RawTx
		swaps []backend.SwapItem
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		raw, err := a.chain.GetTransactions(ctx, a.ref, activityPageSize, 0)
		txs = degrade(a.id, "chain", raw, err)
	}()

	if a.svc.Swaps != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := a.svc.Swaps.GetSwapActivity(ctx, a.info.Currency,
				[]backend.SwapDirection{backend.SwapOnChain, backend.SwapToUserKey})
			swaps = degrade(a.id, "swaps", raw, err)
		}()
	}
	wg.Wait()

	swapHashes := make(map[string]struct{}, len(swaps))
	items := make([]ActivityItem, 0, len(txs)+len(swaps))
	for _, s := range swaps {
		if s.TxHash != "" {
			swapHashes[strings.ToLower(s.TxHash)] = struct{}{}
		}
		items = append(items, tradeActivity(a, s))
	}
	for _, tx := range txs {
		if _, isSwap := swapHashes[strings.ToLower(tx.Hash)]; isSwap {
			continue
		}
		items = append(items, toActivity(a.engine, a, tx))
	}
	return a.observeActivity(items)
}

func (a *NonCustodialAccount) ReceiveAddress(context.Context) (backend.ReceiveAddress, error) {
	if a.IsArchived() {
		return backend.ReceiveAddress{}, unsupported("receive address on archived account", a.id)
	}
	if a.ref.Address == "" {
		return backend.ReceiveAddress{}, fmt.Errorf("account %s has no receive address", a.id)
	}
	return backend.ReceiveAddress{Address: a.ref.Address, Label: a.Label()}, nil
}

func (a *NonCustodialAccount) AvailableActions(ctx context.Context) (domain.ActionSet, error) {
	actions := domain.NewActionSet()
	if a.IsArchived() {
		return actions, nil
	}

	l, ok := a.ledgerOrLast(ctx, a.readLedger)
	funded := ok && l.Total.IsPositive()

	a.viewActivity(actions)
	actions.Add(domain.ActionReceive)
	if !funded {
		return actions, nil
	}

	actions.Add(domain.ActionSend)
	if a.svc.Swaps != nil {
		actions.Add(domain.ActionSwap)
	}
	if a.svc.Trading != nil && a.svc.tier(ctx) == domain.KycTierGold {
		actions.Add(domain.ActionSell)
	}
	if a.svc.interestEligible(ctx, a.info) {
		actions.Add(domain.ActionInterestDeposit)
	}
	return actions, nil
}

// ChainRef returns the chain reference of the account.
func (a *NonCustodialAccount) ChainRef() backend.ChainAccountRef { return a.ref }

// SetLabel renames the account. The new label is persisted first and only
// applied once the store accepts it.
func (a *NonCustodialAccount) SetLabel(ctx context.Context, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return errors.New("label must not be empty")
	}
	if err := a.svc.Wallets.UpdateLabel(ctx, a.id, label); err != nil {
		return fmt.Errorf("updating label of %s: %w", a.id, err)
	}
	a.state.mu.Lock()
	a.state.label = label
	a.state.mu.Unlock()
	return nil
}

// Archive hides the account. Default accounts cannot be archived.
func (a *NonCustodialAccount) Archive(ctx context.Context) error {
	if a.isDefault {
		return fmt.Errorf("archiving %s: %w", a.id, ErrDefaultAccountArchive)
	}
	return a.setArchived(ctx, true)
}

// Unarchive makes an archived account active again.
func (a *NonCustodialAccount) Unarchive(ctx context.Context) error {
	return a.setArchived(ctx, false)
}

// setArchived flips the local flag, syncs it to the store and rolls the flag
// back if the store rejects the change.
func (a *NonCustodialAccount) setArchived(ctx context.Context, archived bool) error {
	a.state.mu.Lock()
	prev := a.state.archived
	if prev == archived {
		a.state.mu.Unlock()
		return nil
	}
	a.state.archived = archived
	a.state.mu.Unlock()

	if err := a.svc.Wallets.SetArchived(ctx, a.id, archived); err != nil {
		a.state.mu.Lock()
		a.state.archived = prev
		a.state.mu.Unlock()
		slog.Warn("rolled back archive state", "account", a.id, "archived", archived, "error", err)
		return fmt.Errorf("syncing archive state of %s: %w", a.id, err)
	}
	return nil
}
