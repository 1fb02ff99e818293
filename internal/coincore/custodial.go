package coincore

import (
	"context"
	"fmt"
	"sync"

	"github.com/mtlprog/coincore/internal/asset"
	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/balance"
	"github.com/mtlprog/coincore/internal/domain"
)

// CustodialAccount is the trading ledger for one asset.
type CustodialAccount struct {
	baseAccount
}

func (a *CustodialAccount) readLedger(ctx context.Context) (balance.Ledger, error) {
	b, err := a.svc.Trading.GetBalanceForAsset(ctx, a.info.Currency)
	if err != nil {
		return balance.Ledger{}, fmt.Errorf("fetching custodial %s balance: %w", a.info.Currency.Code, err)
	}
	return balance.FromCustodial(b), nil
}

func (a *CustodialAccount) LedgerBalance(ctx context.Context) (balance.Ledger, error) {
	l, err := a.readLedger(ctx)
	if err != nil {
		return balance.Ledger{}, err
	}
	a.observeLedger(l)
	return l, nil
}

func (a *CustodialAccount) Balance(ctx context.Context) <-chan balance.AccountBalance {
	return a.stream(ctx, a.readLedger)
}

// Activity merges trades, transfers and internal swaps for the asset.
func (a *CustodialAccount) Activity(ctx context.Context) []ActivityItem {
	var (
		wg        sync.WaitGroup
		trades    []backend.TradeItem
		transfers []backend.TransferItem
		swaps     []backend.SwapItem
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		raw, err := a.svc.Trading.GetCustodialActivity(ctx, a.info.Currency)
		trades = degrade(a.id, "trading", raw, err)
	}()
	if a.svc.Transfers != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := a.svc.Transfers.GetTransfers(ctx, a.info.Currency)
			transfers = degrade(a.id, "transfers", raw, err)
		}()
	}
	if a.svc.Swaps != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := a.svc.Swaps.GetSwapActivity(ctx, a.info.Currency,
				[]backend.SwapDirection{backend.SwapInternal, backend.SwapFromUserKey})
			swaps = degrade(a.id, "swaps", raw, err)
		}()
	}
	wg.Wait()

	items := make([]ActivityItem, 0, len(trades)+len(transfers)+len(swaps))
	for _, t := range trades {
		items = append(items, CustodialTradingActivity{
			ActivitySummary: ActivitySummary{
				TxID:      t.ID,
				Timestamp: t.CreatedAt,
				Account:   a,
				Value:     t.Crypto,
			},
			Side:             t.Side,
			State:            t.State,
			Fiat:             t.Fiat,
			Fee:              t.Fee,
			DepositPaymentID: t.DepositPaymentID,
		})
	}
	for _, t := range transfers {
		items = append(items, CustodialTransferActivity{
			ActivitySummary: ActivitySummary{
				TxID:      t.ID,
				Timestamp: t.CreatedAt,
				Account:   a,
				Value:     t.Amount,
			},
			Type:   t.Type,
			State:  t.State,
			Fee:    t.Fee,
			TxHash: t.TxHash,
		})
	}
	for _, s := range swaps {
		items = append(items, tradeActivity(a, s))
	}
	return a.observeActivity(items)
}

// ReceiveAddress is only offered for assets that accept custodial deposits.
func (a *CustodialAccount) ReceiveAddress(ctx context.Context) (backend.ReceiveAddress, error) {
	if a.svc.Transfers == nil || !a.info.Has(asset.CapCustodialReceive) {
		return backend.ReceiveAddress{}, unsupported("receive address", a.id)
	}
	addr, err := a.svc.Transfers.DepositAddress(ctx, a.info.Currency)
	if err != nil {
		return backend.ReceiveAddress{}, fmt.Errorf("fetching deposit address for %s: %w", a.id, err)
	}
	if addr.Label == "" {
		addr.Label = a.Label()
	}
	return addr, nil
}

func (a *CustodialAccount) AvailableActions(ctx context.Context) (domain.ActionSet, error) {
	actions := domain.NewActionSet()
	tier := a.svc.tier(ctx)
	l, ok := a.ledgerOrLast(ctx, a.readLedger)

	a.viewActivity(actions)
	if tier == domain.KycTierGold {
		actions.Add(domain.ActionBuy)
	}
	if tier >= domain.KycTierSilver && a.svc.Transfers != nil && a.info.Has(asset.CapCustodialReceive) {
		actions.Add(domain.ActionReceive)
	}
	if !ok || !l.Total.IsPositive() || tier < domain.KycTierSilver {
		return actions, nil
	}

	actions.Add(domain.ActionSell)
	if a.svc.Swaps != nil {
		actions.Add(domain.ActionSwap)
	}
	if l.Withdrawable.IsPositive() {
		actions.Add(domain.ActionSend)
	}
	if a.svc.interestEligible(ctx, a.info) {
		actions.Add(domain.ActionInterestDeposit)
	}
	return actions, nil
}

// InterestAccount is the yield account for one asset.
type InterestAccount struct {
	baseAccount
}

func (a *InterestAccount) readLedger(ctx context.Context) (balance.Ledger, error) {
	b, err := a.svc.Interest.GetBalance(ctx, a.info.Currency)
	if err != nil {
		return balance.Ledger{}, fmt.Errorf("fetching interest %s balance: %w", a.info.Currency.Code, err)
	}
	return balance.FromCustodial(b), nil
}

func (a *InterestAccount) LedgerBalance(ctx context.Context) (balance.Ledger, error) {
	l, err := a.readLedger(ctx)
	if err != nil {
		return balance.Ledger{}, err
	}
	a.observeLedger(l)
	return l, nil
}

func (a *InterestAccount) Balance(ctx context.Context) <-chan balance.AccountBalance {
	return a.stream(ctx, a.readLedger)
}

func (a *InterestAccount) Activity(ctx context.Context) []ActivityItem {
	raw, err := a.svc.Interest.GetActivity(ctx, a.info.Currency)
	records := degrade(a.id, "interest", raw, err)

	items := make([]ActivityItem, 0, len(records))
	for _, r := range records {
		items = append(items, CustodialInterestActivity{
			ActivitySummary: ActivitySummary{
				TxID:      r.ID,
				Timestamp: r.CreatedAt,
				Account:   a,
				Value:     r.Amount,
			},
			Type:  r.Type,
			State: r.State,
		})
	}
	return a.observeActivity(items)
}

func (a *InterestAccount) ReceiveAddress(ctx context.Context) (backend.ReceiveAddress, error) {
	addr, err := a.svc.Interest.DepositAddress(ctx, a.info.Currency)
	if err != nil {
		return backend.ReceiveAddress{}, fmt.Errorf("fetching interest deposit address for %s: %w", a.id, err)
	}
	if addr.Label == "" {
		addr.Label = a.Label()
	}
	return addr, nil
}

// AvailableActions offers withdrawal only while part of the balance is withdrawable.
func (a *InterestAccount) AvailableActions(ctx context.Context) (domain.ActionSet, error) {
	actions := domain.NewActionSet()
	a.viewActivity(actions)
	if a.svc.interestEligible(ctx, a.info) {
		actions.Add(domain.ActionInterestDeposit)
	}
	if l, ok := a.ledgerOrLast(ctx, a.readLedger); ok && l.Withdrawable.IsPositive() {
		actions.Add(domain.ActionInterestWithdraw)
	}
	return actions, nil
}

// FiatAccount is a fiat wallet on the payments ledger.
type FiatAccount struct {
	baseAccount
}

func (a *FiatAccount) readLedger(ctx context.Context) (balance.Ledger, error) {
	b, err := a.svc.Fiat.GetBalance(ctx, a.info.Currency)
	if err != nil {
		return balance.Ledger{}, fmt.Errorf("fetching fiat %s balance: %w", a.info.Currency.Code, err)
	}
	return balance.FromCustodial(b), nil
}

func (a *FiatAccount) LedgerBalance(ctx context.Context) (balance.Ledger, error) {
	l, err := a.readLedger(ctx)
	if err != nil {
		return balance.Ledger{}, err
	}
	a.observeLedger(l)
	return l, nil
}

func (a *FiatAccount) Balance(ctx context.Context) <-chan balance.AccountBalance {
	return a.stream(ctx, a.readLedger)
}

func (a *FiatAccount) Activity(ctx context.Context) []ActivityItem {
	raw, err := a.svc.Fiat.GetActivity(ctx, a.info.Currency)
	records := degrade(a.id, "fiat", raw, err)

	items := make([]ActivityItem, 0, len(records))
	for _, r := range records {
		items = append(items, FiatActivity{
			ActivitySummary: ActivitySummary{
				TxID:      r.ID,
				Timestamp: r.CreatedAt,
				Account:   a,
				Value:     r.Amount,
			},
			Type:  r.Type,
			State: r.State,
		})
	}
	return a.observeActivity(items)
}

func (a *FiatAccount) ReceiveAddress(context.Context) (backend.ReceiveAddress, error) {
	return backend.ReceiveAddress{}, unsupported("receive address", a.id)
}

func (a *FiatAccount) AvailableActions(ctx context.Context) (domain.ActionSet, error) {
	actions := domain.NewActionSet()
	a.viewActivity(actions)
	if a.svc.tier(ctx) != domain.KycTierGold {
		return actions, nil
	}
	actions.Add(domain.ActionFiatDeposit)
	if l, ok := a.ledgerOrLast(ctx, a.readLedger); ok && l.Withdrawable.IsPositive() {
		actions.Add(domain.ActionWithdraw)
	}
	return actions, nil
}
