package coincore

import (
	"github.com/mtlprog/coincore/internal/asset"
	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

// chainEngine holds the per-chain rules of a non-custodial account.
type chainEngine interface {
	confirmationsRequired() int
	// carriesMemo reports whether transactions keep a memo that identifies the recipient.
	carriesMemo() bool
	// feeIncluded reports whether fees are paid in the account's own currency
	// and therefore add to the amount debited.
	feeIncluded() bool
}

type utxoEngine struct{}

func (utxoEngine) confirmationsRequired() int { return 3 }
func (utxoEngine) carriesMemo() bool          { return false }
func (utxoEngine) feeIncluded() bool          { return true }

type ethEngine struct{}

func (ethEngine) confirmationsRequired() int { return 12 }
func (ethEngine) carriesMemo() bool          { return false }
func (ethEngine) feeIncluded() bool          { return true }

// erc20Engine pays fees in the parent chain's currency.
type erc20Engine struct{}

func (erc20Engine) confirmationsRequired() int { return 12 }
func (erc20Engine) carriesMemo() bool          { return false }
func (erc20Engine) feeIncluded() bool          { return false }

type xlmEngine struct{}

func (xlmEngine) confirmationsRequired() int { return 1 }
func (xlmEngine) carriesMemo() bool          { return true }
func (xlmEngine) feeIncluded() bool          { return true }

func engineFor(e asset.Engine) (chainEngine, bool) {
	switch e {
	case asset.EngineUTXO:
		return utxoEngine{}, true
	case asset.EngineETH:
		return ethEngine{}, true
	case asset.EngineERC20:
		return erc20Engine{}, true
	case asset.EngineXLM:
		return xlmEngine{}, true
	default:
		return nil, false
	}
}

// toActivity normalizes a raw chain transaction for the owning account.
func toActivity(eng chainEngine, acc Account, tx backend.RawTx) NonCustodialActivity {
	debit := tx.Amount
	if tx.Direction == backend.TxSent && eng.feeIncluded() {
		if total, err := tx.Amount.Add(tx.Fee); err == nil {
			debit = total
		}
	}
	if tx.Direction == backend.TxReceived {
		debit = domain.ZeroMoney(tx.Amount.Currency())
	}

	memo := ""
	if eng.carriesMemo() {
		memo = tx.Memo
	}

	return NonCustodialActivity{
		ActivitySummary: ActivitySummary{
			TxID:      tx.Hash,
			Timestamp: tx.Timestamp,
			Account:   acc,
			Value:     tx.Amount,
		},
		Direction:             tx.Direction,
		Fee:                   tx.Fee,
		Debit:                 debit,
		From:                  tx.From,
		To:                    tx.To,
		Confirmations:         tx.Confirmations,
		ConfirmationsRequired: eng.confirmationsRequired(),
		Memo:                  memo,
	}
}
