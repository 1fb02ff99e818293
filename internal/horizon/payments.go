package horizon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

const pageLimit = 200

// stroopDecimals shifts stroops, the fee unit, into XLM.
const stroopDecimals = 7

// GetTransactions returns native payments touching ref.Address, newest first,
// skipping the first offset records. Operations in other assets are ignored.
func (c *Client) GetTransactions(ctx context.Context, ref backend.ChainAccountRef, count, offset int) ([]backend.RawTx, error) {
	if count <= 0 {
		return nil, nil
	}

	var out []backend.RawTx
	skipped := 0
	path := fmt.Sprintf("/accounts/%s/payments?join=transactions&order=desc&limit=%d", ref.Address, pageLimit)

	for path != "" && len(out) < count {
		var page paymentsPage
		if err := c.getJSON(ctx, path, &page); err != nil {
			if errors.Is(err, ErrNotFound) {
				return out, nil
			}
			return nil, fmt.Errorf("fetching payments for %s: %w", ref.Address, err)
		}

		for _, rec := range page.Embedded.Records {
			tx, ok := toRawTx(rec, ref)
			if !ok {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, tx)
			if len(out) == count {
				break
			}
		}

		if len(page.Embedded.Records) < pageLimit || page.Links.Next.Href == "" {
			break
		}
		next, err := relative(page.Links.Next.Href)
		if err != nil {
			slog.Warn("failed to parse Horizon pagination link, results may be incomplete",
				"href", page.Links.Next.Href, "error", err)
			break
		}
		path = next
	}
	return out, nil
}

func toRawTx(rec paymentRecord, ref backend.ChainAccountRef) (backend.RawTx, bool) {
	from, to, amountStr := rec.From, rec.To, rec.Amount
	switch rec.Type {
	case "payment", "path_payment_strict_send", "path_payment_strict_receive":
		if rec.AssetType != "native" {
			return backend.RawTx{}, false
		}
	case "create_account":
		from, to, amountStr = rec.Funder, rec.Account, rec.StartingBalance
	default:
		return backend.RawTx{}, false
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		slog.Warn("skipping payment with unparsable amount", "id", rec.ID, "amount", amountStr)
		return backend.RawTx{}, false
	}
	ts, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		slog.Warn("skipping payment with unparsable time", "id", rec.ID, "created_at", rec.CreatedAt)
		return backend.RawTx{}, false
	}

	var direction backend.TxDirection
	switch {
	case from == ref.Address && to == ref.Address:
		direction = backend.TxTransferred
	case from == ref.Address:
		direction = backend.TxSent
	default:
		direction = backend.TxReceived
	}

	fee := domain.ZeroMoney(ref.Currency)
	var memo string
	if rec.Transaction != nil {
		if rec.Transaction.MemoType == "text" || rec.Transaction.MemoType == "id" {
			memo = rec.Transaction.Memo
		}
		if rec.Transaction.FeeAccount == ref.Address {
			fee = stroops(rec.Transaction.FeeCharged, ref.Currency)
		}
	}

	// Horizon only serves operations from closed ledgers.
	return backend.RawTx{
		Hash:          rec.TransactionHash,
		Direction:     direction,
		Amount:        domain.NewMoney(amount, ref.Currency),
		Fee:           fee,
		From:          from,
		To:            to,
		Timestamp:     ts,
		Confirmations: 1,
		Memo:          memo,
	}, true
}

func stroops(s string, currency domain.Currency) domain.Money {
	return domain.NewMoney(domain.SafeParse(s).Shift(-stroopDecimals), currency)
}
