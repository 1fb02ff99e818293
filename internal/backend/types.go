package backend

import (
	"time"

	"github.com/mtlprog/coincore/internal/domain"
)

// ChainAccountRef locates a non-custodial account on its chain.
type ChainAccountRef struct {
	Currency domain.Currency
	Address  string
	XPub     string
}

// TxDirection is the direction of a chain transaction relative to the account.
type TxDirection string

const (
	TxSent        TxDirection = "SENT"
	TxReceived    TxDirection = "RECEIVED"
	TxTransferred TxDirection = "TRANSFERRED"
)

// RawTx is one chain transaction as reported by a ChainService.
type RawTx struct {
	Hash          string
	Direction     TxDirection
	Amount        domain.Money
	Fee           domain.Money
	From          string
	To            string
	Timestamp     time.Time
	Confirmations int
	Memo          string
}

// OrderSide is the side of a custodial trade.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderState is the lifecycle state shared by custodial records.
type OrderState string

const (
	StatePending  OrderState = "PENDING"
	StateFinished OrderState = "FINISHED"
	StateFailed   OrderState = "FAILED"
	StateCanceled OrderState = "CANCELED"
)

// TradeItem is a custodial buy or sell. DepositPaymentID names the fiat
// deposit that funded a buy, when there was one.
type TradeItem struct {
	ID               string
	Side             OrderSide
	State            OrderState
	Crypto           domain.Money
	Fiat             domain.Money
	Fee              domain.Money
	DepositPaymentID string
	CreatedAt        time.Time
}

// CustodialBalance is a ledger balance split by availability.
type CustodialBalance struct {
	Total        domain.Money
	Withdrawable domain.Money
	Pending      domain.Money
}

// ZeroBalance returns an empty balance in the given currency.
func ZeroBalance(c domain.Currency) CustodialBalance {
	z := domain.ZeroMoney(c)
	return CustodialBalance{Total: z, Withdrawable: z, Pending: z}
}

// TransactionType classifies custodial ledger movements.
type TransactionType string

const (
	TxTypeDeposit        TransactionType = "DEPOSIT"
	TxTypeWithdrawal     TransactionType = "WITHDRAWAL"
	TxTypeInterestEarned TransactionType = "INTEREST_EARNED"
)

// TransferItem is a custodial deposit or withdrawal.
type TransferItem struct {
	ID        string
	Type      TransactionType
	State     OrderState
	Amount    domain.Money
	Fee       domain.Money
	TxHash    string
	CreatedAt time.Time
}

// InterestItem is a movement on an interest account.
type InterestItem struct {
	ID        string
	Type      TransactionType
	State     OrderState
	Amount    domain.Money
	CreatedAt time.Time
}

// FiatItem is a movement on a fiat wallet.
type FiatItem struct {
	ID        string
	Type      TransactionType
	State     OrderState
	Amount    domain.Money
	CreatedAt time.Time
}

// SwapDirection tells where the two legs of a swap settle.
type SwapDirection string

const (
	SwapOnChain     SwapDirection = "ON_CHAIN"
	SwapInternal    SwapDirection = "INTERNAL"
	SwapFromUserKey SwapDirection = "FROM_USERKEY"
	SwapToUserKey   SwapDirection = "TO_USERKEY"
)

// SwapItem is one swap. TxHash is the on-chain leg, if any.
type SwapItem struct {
	ID        string
	State     OrderState
	Direction SwapDirection
	Sending   domain.Money
	Receiving domain.Money
	Fee       domain.Money
	TxHash    string
	CreatedAt time.Time
}

// ReceiveAddress is where funds for an account should be sent.
// Memo is required by chains that share one address across users.
type ReceiveAddress struct {
	Address string `json:"address"`
	Memo    string `json:"memo,omitempty"`
	Label   string `json:"label"`
}

// FeeOptions quotes absolute network fees for a standard transfer.
type FeeOptions struct {
	Regular  domain.Money
	Priority domain.Money
}

// WalletRecord is a persisted non-custodial wallet.
type WalletRecord struct {
	ID        string
	Currency  string
	Label     string
	Address   string
	XPub      string
	IsDefault bool
	Archived  bool
	CreatedAt time.Time
}
