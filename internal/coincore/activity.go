package coincore

import (
	"fmt"
	"time"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

// ActivityKind discriminates the ActivityItem variants. The numeric order is
// the tie-break order used when sorting a feed.
type ActivityKind int

const (
	KindNonCustodial ActivityKind = iota
	KindCustodialTrading
	KindCustodialTransfer
	KindCustodialInterest
	KindFiat
	KindTrade
)

func (k ActivityKind) String() string {
	switch k {
	case KindNonCustodial:
		return "NON_CUSTODIAL"
	case KindCustodialTrading:
		return "CUSTODIAL_TRADING"
	case KindCustodialTransfer:
		return "CUSTODIAL_TRANSFER"
	case KindCustodialInterest:
		return "CUSTODIAL_INTEREST"
	case KindFiat:
		return "FIAT"
	case KindTrade:
		return "TRADE"
	default:
		panic(fmt.Sprintf("unknown activity kind %d", int(k)))
	}
}

// ActivitySummary holds the fields every activity item shares.
type ActivitySummary struct {
	TxID      string
	Timestamp time.Time
	Account   Account
	Value     domain.Money
}

func (s ActivitySummary) summary() ActivitySummary { return s }

// ActivityItem is one entry of an activity feed. The concrete types are
// NonCustodialActivity, CustodialTradingActivity, CustodialTransferActivity,
// CustodialInterestActivity, FiatActivity and TradeActivity.
type ActivityItem interface {
	Kind() ActivityKind
	summary() ActivitySummary
}

// Summary returns the common fields of item.
func Summary(item ActivityItem) ActivitySummary {
	return item.summary()
}

// ActivityKey identifies an item across source lists.
type ActivityKey struct {
	Kind ActivityKind
	TxID string
}

func KeyOf(item ActivityItem) ActivityKey {
	return ActivityKey{Kind: item.Kind(), TxID: item.summary().TxID}
}

// NonCustodialActivity is a transaction on a user-controlled chain account.
type NonCustodialActivity struct {
	ActivitySummary
	Direction             backend.TxDirection
	Fee                   domain.Money
	Debit                 domain.Money
	From                  string
	To                    string
	Confirmations         int
	ConfirmationsRequired int
	Memo                  string
}

func (NonCustodialActivity) Kind() ActivityKind { return KindNonCustodial }

func (a NonCustodialActivity) IsConfirmed() bool {
	return a.Confirmations >= a.ConfirmationsRequired
}

// CustodialTradingActivity is a custodial buy or sell.
type CustodialTradingActivity struct {
	ActivitySummary
	Side             backend.OrderSide
	State            backend.OrderState
	Fiat             domain.Money
	Fee              domain.Money
	DepositPaymentID string
}

func (CustodialTradingActivity) Kind() ActivityKind { return KindCustodialTrading }

// CustodialTransferActivity is a custodial deposit or withdrawal.
type CustodialTransferActivity struct {
	ActivitySummary
	Type   backend.TransactionType
	State  backend.OrderState
	Fee    domain.Money
	TxHash string
}

func (CustodialTransferActivity) Kind() ActivityKind { return KindCustodialTransfer }

// CustodialInterestActivity is a movement on an interest account.
type CustodialInterestActivity struct {
	ActivitySummary
	Type  backend.TransactionType
	State backend.OrderState
}

func (CustodialInterestActivity) Kind() ActivityKind { return KindCustodialInterest }

// FiatActivity is a movement on a fiat wallet.
type FiatActivity struct {
	ActivitySummary
	Type  backend.TransactionType
	State backend.OrderState
}

func (FiatActivity) Kind() ActivityKind { return KindFiat }

// TradeActivity is a swap.
type TradeActivity struct {
	ActivitySummary
	State     backend.OrderState
	Direction backend.SwapDirection
	Sending   domain.Money
	Receiving domain.Money
	Fee       domain.Money
	TxHash    string
}

func (TradeActivity) Kind() ActivityKind { return KindTrade }

func tradeActivity(acc Account, s backend.SwapItem) TradeActivity {
	return TradeActivity{
		ActivitySummary: ActivitySummary{
			TxID:      s.ID,
			Timestamp: s.CreatedAt,
			Account:   acc,
			Value:     s.Sending,
		},
		State:     s.State,
		Direction: s.Direction,
		Sending:   s.Sending,
		Receiving: s.Receiving,
		Fee:       s.Fee,
		TxHash:    s.TxHash,
	}
}
