// Package backend declares the external services the account engine consumes
// and the raw records they return. Implementations live in horizon, external,
// prime and store; tests supply their own fakes.
package backend

import (
	"context"

	"github.com/mtlprog/coincore/internal/domain"
)

// ChainService reads balances and history for one blockchain.
type ChainService interface {
	GetBalance(ctx context.Context, ref ChainAccountRef) (domain.Money, error)
	GetTransactions(ctx context.Context, ref ChainAccountRef, count, offset int) ([]RawTx, error)
}

// TradingService is the custodial trading ledger.
type TradingService interface {
	GetCustodialActivity(ctx context.Context, asset domain.Currency) ([]TradeItem, error)
	GetBalanceForAsset(ctx context.Context, asset domain.Currency) (CustodialBalance, error)
}

// TransferService lists custodial deposits and withdrawals.
type TransferService interface {
	GetTransfers(ctx context.Context, asset domain.Currency) ([]TransferItem, error)
	DepositAddress(ctx context.Context, asset domain.Currency) (ReceiveAddress, error)
}

// InterestService is the yield account backend.
type InterestService interface {
	IsEligible(ctx context.Context, asset domain.Currency) (bool, error)
	GetBalance(ctx context.Context, asset domain.Currency) (CustodialBalance, error)
	GetActivity(ctx context.Context, asset domain.Currency) ([]InterestItem, error)
	DepositAddress(ctx context.Context, asset domain.Currency) (ReceiveAddress, error)
}

// FiatService is the payments ledger for fiat wallets.
type FiatService interface {
	GetBalance(ctx context.Context, currency domain.Currency) (CustodialBalance, error)
	GetActivity(ctx context.Context, currency domain.Currency) ([]FiatItem, error)
}

// SwapService lists swaps touching an asset in the requested directions.
type SwapService interface {
	GetSwapActivity(ctx context.Context, asset domain.Currency, directions []SwapDirection) ([]SwapItem, error)
}

// RateService streams exchange rates. Returned channels are closed once ctx is done.
type RateService interface {
	ExchangeRate(ctx context.Context, from, to domain.Currency) <-chan domain.ExchangeRate
	PriceWith24hDelta(ctx context.Context, asset, fiat domain.Currency) <-chan domain.PriceDelta
}

// IdentityService reports the user's verification level.
type IdentityService interface {
	HighestApprovedTier(ctx context.Context) (domain.KycTier, error)
}

// FeeService quotes network fees for a currency.
type FeeService interface {
	FeeOptions(ctx context.Context, currency domain.Currency) (FeeOptions, error)
}

// WalletStore persists wallet records and their user-editable state.
type WalletStore interface {
	ListWallets(ctx context.Context) ([]WalletRecord, error)
	UpdateLabel(ctx context.Context, id, label string) error
	SetArchived(ctx context.Context, id string, archived bool) error
}
