package activity

import (
	"fmt"
	"time"

	"github.com/mtlprog/coincore/internal/coincore"
	"github.com/mtlprog/coincore/internal/domain"
)

// Entry is the flat, serializable view of an activity item shared by the
// HTTP surface and the exporters.
type Entry struct {
	Kind      string        `json:"kind"`
	TxID      string        `json:"txId"`
	Timestamp time.Time     `json:"timestamp"`
	AccountID string        `json:"accountId"`
	Account   string        `json:"account"`
	Value     domain.Money  `json:"value"`
	Fee       *domain.Money `json:"fee,omitempty"`
	Detail    string        `json:"detail"`
	State     string        `json:"state"`
	From      string        `json:"from,omitempty"`
	To        string        `json:"to,omitempty"`
	Hash      string        `json:"hash,omitempty"`
	Memo      string        `json:"memo,omitempty"`
}

// Flatten converts item into an Entry. Every activity kind must be handled.
func Flatten(item coincore.ActivityItem) Entry {
	s := coincore.Summary(item)
	e := Entry{
		Kind:      item.Kind().String(),
		TxID:      s.TxID,
		Timestamp: s.Timestamp.UTC(),
		Value:     s.Value,
	}
	if s.Account != nil {
		e.AccountID = s.Account.ID()
		e.Account = s.Account.Label()
	}

	switch v := item.(type) {
	case coincore.NonCustodialActivity:
		e.Detail = string(v.Direction)
		e.State = "PENDING"
		if v.IsConfirmed() {
			e.State = "CONFIRMED"
		}
		e.Fee = feeOf(v.Fee)
		e.From, e.To, e.Hash, e.Memo = v.From, v.To, v.TxID, v.Memo
	case coincore.CustodialTradingActivity:
		e.Detail = string(v.Side)
		e.State = string(v.State)
		e.Fee = feeOf(v.Fee)
		e.To = v.Fiat.String()
	case coincore.CustodialTransferActivity:
		e.Detail = string(v.Type)
		e.State = string(v.State)
		e.Fee = feeOf(v.Fee)
		e.Hash = v.TxHash
	case coincore.CustodialInterestActivity:
		e.Detail = string(v.Type)
		e.State = string(v.State)
	case coincore.FiatActivity:
		e.Detail = string(v.Type)
		e.State = string(v.State)
	case coincore.TradeActivity:
		e.Detail = "SWAP_" + string(v.Direction)
		e.State = string(v.State)
		e.Fee = feeOf(v.Fee)
		e.From, e.To, e.Hash = v.Sending.String(), v.Receiving.String(), v.TxHash
	default:
		panic(fmt.Sprintf("unhandled activity item %T", item))
	}
	return e
}

// Entries flattens a feed, keeping its order.
func Entries(items []coincore.ActivityItem) []Entry {
	out := make([]Entry, len(items))
	for i, item := range items {
		out[i] = Flatten(item)
	}
	return out
}

func feeOf(m domain.Money) *domain.Money {
	if m.Currency().Code == "" || m.IsZero() {
		return nil
	}
	return &m
}
