package coincore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

var (
	btcCur = domain.NewNativeCurrency("BTC", 8)
	xlmCur = domain.NewNativeCurrency("XLM", 7)
)

func TestNonCustodialActivityDropsSwapLegs(t *testing.T) {
	swaps := &mockSwaps{items: []backend.SwapItem{{
		ID:        "swap-1",
		State:     backend.StateFinished,
		Direction: backend.SwapOnChain,
		Sending:   amount("0.1", btcCur),
		TxHash:    "ABC",
		CreatedAt: time.Unix(200, 0),
	}}}
	f := newFixture(t, func(s *Services) { s.Swaps = swaps })
	f.chain.txs["bc1-default"] = []backend.RawTx{
		{Hash: "abc", Direction: backend.TxSent, Amount: amount("0.1", btcCur), Fee: amount("0.0001", btcCur), Timestamp: time.Unix(200, 0)},
		{Hash: "def", Direction: backend.TxReceived, Amount: amount("1", btcCur), Fee: amount("0", btcCur), Timestamp: time.Unix(100, 0), Confirmations: 2},
	}

	ctx := context.Background()
	acc, _ := f.core.Account(ctx, "btc-1")
	if acc.HasTransactions() {
		t.Fatal("HasTransactions set before any activity read")
	}

	items := acc.Activity(ctx)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	var sawSwap, sawDeposit bool
	for _, item := range items {
		switch v := item.(type) {
		case TradeActivity:
			sawSwap = v.TxID == "swap-1"
		case NonCustodialActivity:
			if v.TxID == "abc" {
				t.Error("on-chain leg of swap not dropped")
			}
			if v.TxID == "def" {
				sawDeposit = true
				if v.IsConfirmed() {
					t.Error("2 confirmations should not confirm a UTXO transaction")
				}
				if v.ConfirmationsRequired != 3 {
					t.Errorf("confirmations required = %d, want 3", v.ConfirmationsRequired)
				}
			}
		default:
			t.Errorf("unexpected item %T", item)
		}
	}
	if !sawSwap || !sawDeposit {
		t.Errorf("swap=%v deposit=%v, want both", sawSwap, sawDeposit)
	}
	if !acc.HasTransactions() {
		t.Error("HasTransactions not set after non-empty activity")
	}

	want := []backend.SwapDirection{backend.SwapOnChain, backend.SwapToUserKey}
	got := swaps.directions[0]
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("swap directions = %v, want %v", got, want)
	}
}

func TestNonCustodialActivityDegradesOnChainFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.chain.err = errors.New("node unreachable")

	acc, _ := f.core.Account(context.Background(), "btc-1")
	items := acc.Activity(context.Background())
	if len(items) != 0 {
		t.Errorf("got %d items, want empty on failure", len(items))
	}
	if acc.HasTransactions() {
		t.Error("HasTransactions set from failed read")
	}
}

func TestSentDebitIncludesFeeOnNativeChain(t *testing.T) {
	f := newFixture(t, nil)
	f.chain.txs["GXLM"] = []backend.RawTx{{
		Hash:          "x1",
		Direction:     backend.TxSent,
		Amount:        amount("10", xlmCur),
		Fee:           amount("0.00001", xlmCur),
		Memo:          "12345",
		Timestamp:     time.Unix(1, 0),
		Confirmations: 1,
	}}

	acc, _ := f.core.Account(context.Background(), "xlm-1")
	items := acc.Activity(context.Background())
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	tx := items[0].(NonCustodialActivity)
	if !tx.Debit.Equal(amount("10.00001", xlmCur)) {
		t.Errorf("debit = %s, want 10.00001 XLM", tx.Debit)
	}
	if tx.Memo != "12345" {
		t.Errorf("memo = %q, want kept for XLM", tx.Memo)
	}
	if !tx.IsConfirmed() {
		t.Error("XLM transaction with one confirmation should be confirmed")
	}
}

func TestCustodialReceiveAddressSellOnly(t *testing.T) {
	f := newFixture(t, func(s *Services) {
		s.Trading = &mockTrading{}
		s.Transfers = &mockTransfers{}
	})
	ctx := context.Background()

	btc, _ := f.core.Account(ctx, "custodial:BTC")
	addr, err := btc.ReceiveAddress(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr.Address != "deposit-BTC" {
		t.Errorf("address = %q", addr.Address)
	}

	eth, _ := f.core.Account(ctx, "custodial:ETH")
	_, err = eth.ReceiveAddress(ctx)
	var unsupportedErr *UnsupportedOperationError
	if !errors.As(err, &unsupportedErr) {
		t.Fatalf("error = %v, want *UnsupportedOperationError", err)
	}
	if unsupportedErr.AccountID != "custodial:ETH" || !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("unexpected error details: %+v", unsupportedErr)
	}
}

func TestGroupReceiveAddressUnsupported(t *testing.T) {
	f := newFixture(t, nil)
	group, _ := f.core.AllWallets(context.Background())
	if _, err := group.ReceiveAddress(context.Background()); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("error = %v, want ErrUnsupportedOperation", err)
	}
}

func TestInterestWithdrawNeedsWithdrawableBalance(t *testing.T) {
	interest := &mockInterest{eligible: true}
	f := newFixture(t, func(s *Services) { s.Interest = interest })
	ctx := context.Background()
	acc, _ := f.core.Account(ctx, "interest:BTC")

	interest.balance = backend.CustodialBalance{
		Total:        amount("1", btcCur),
		Withdrawable: amount("0", btcCur),
		Pending:      amount("1", btcCur),
	}
	actions, _ := acc.AvailableActions(ctx)
	if actions.Has(domain.ActionInterestWithdraw) {
		t.Error("withdraw offered with nothing withdrawable")
	}
	if !actions.Has(domain.ActionInterestDeposit) || !actions.Has(domain.ActionViewActivity) {
		t.Errorf("actions = %v", actions.Sorted())
	}

	interest.balance.Withdrawable = amount("0.5", btcCur)
	actions, _ = acc.AvailableActions(ctx)
	if !actions.Has(domain.ActionInterestWithdraw) {
		t.Errorf("actions = %v, want withdraw", actions.Sorted())
	}
}

func TestNonCustodialActionsFollowFunding(t *testing.T) {
	f := newFixture(t, func(s *Services) {
		s.Trading = &mockTrading{}
		s.Swaps = &mockSwaps{}
	})
	ctx := context.Background()
	acc, _ := f.core.Account(ctx, "btc-2")

	actions, _ := acc.AvailableActions(ctx)
	if actions.Has(domain.ActionSend) || actions.Has(domain.ActionViewActivity) {
		t.Errorf("unfunded actions = %v", actions.Sorted())
	}
	if !actions.Has(domain.ActionReceive) {
		t.Error("receive should always be offered")
	}

	f.chain.balances["bc1-second"] = "0.5"
	actions, _ = acc.AvailableActions(ctx)
	for _, want := range []domain.AssetAction{domain.ActionSend, domain.ActionSwap, domain.ActionSell, domain.ActionViewActivity} {
		if !actions.Has(want) {
			t.Errorf("funded actions %v missing %s", actions.Sorted(), want)
		}
	}
	if !acc.IsFunded() {
		t.Error("IsFunded not set after balance read")
	}
}

func TestCustodialActivityMergesSources(t *testing.T) {
	swaps := &mockSwaps{items: []backend.SwapItem{{ID: "s1", Sending: amount("1", btcCur), CreatedAt: time.Unix(3, 0)}}}
	f := newFixture(t, func(s *Services) {
		s.Trading = &mockTrading{trades: []backend.TradeItem{{ID: "t1", Side: backend.SideBuy, Crypto: amount("1", btcCur), DepositPaymentID: "d1", CreatedAt: time.Unix(1, 0)}}}
		s.Transfers = &mockTransfers{transfers: []backend.TransferItem{{ID: "x1", Type: backend.TxTypeDeposit, Amount: amount("1", btcCur), CreatedAt: time.Unix(2, 0)}}}
		s.Swaps = swaps
	})
	ctx := context.Background()
	acc, _ := f.core.Account(ctx, "custodial:BTC")

	items := acc.Activity(ctx)
	kinds := map[ActivityKind]int{}
	for _, item := range items {
		kinds[item.Kind()]++
		if Summary(item).Account != acc {
			t.Errorf("item %s owned by %v", Summary(item).TxID, Summary(item).Account)
		}
	}
	if kinds[KindCustodialTrading] != 1 || kinds[KindCustodialTransfer] != 1 || kinds[KindTrade] != 1 {
		t.Errorf("kinds = %v", kinds)
	}

	want := []backend.SwapDirection{backend.SwapInternal, backend.SwapFromUserKey}
	if got := swaps.directions[0]; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("swap directions = %v, want %v", got, want)
	}
}

func TestGroupBalanceSumsChildren(t *testing.T) {
	f := newFixture(t, nil)
	f.chain.balances["bc1-default"] = "0.5"
	f.chain.balances["bc1-second"] = "0.25"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	group, err := f.core.AssetGroup(ctx, "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l, err := group.LedgerBalance(ctx)
	if err != nil {
		t.Fatalf("LedgerBalance: %v", err)
	}
	// 0.75 BTC at 100 USD
	if !l.Total.Equal(amount("75", usd)) {
		t.Errorf("group total = %s, want 75.00 USD", l.Total)
	}
	if !group.IsFunded() {
		t.Error("group with funded children should be funded")
	}
}

func TestGroupActivityConcatenatesChildrenInOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.chain.txs["bc1-default"] = []backend.RawTx{
		{Hash: "first", Direction: backend.TxReceived, Amount: amount("1", btcCur), Fee: amount("0", btcCur), Timestamp: time.Unix(100, 0)},
	}
	f.chain.txs["bc1-second"] = []backend.RawTx{
		{Hash: "second", Direction: backend.TxReceived, Amount: amount("2", btcCur), Fee: amount("0", btcCur), Timestamp: time.Unix(200, 0)},
	}

	ctx := context.Background()
	group, err := f.core.AssetGroup(ctx, "BTC")
	if err != nil {
		t.Fatalf("AssetGroup: %v", err)
	}
	items := group.Activity(ctx)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if got := Summary(items[0]).TxID; got != "first" {
		t.Errorf("first item = %s, want the default wallet's transaction", got)
	}
	if got := Summary(items[1]).TxID; got != "second" {
		t.Errorf("second item = %s, want the second wallet's transaction", got)
	}
}
