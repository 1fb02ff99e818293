package horizon

import (
	"context"
	"fmt"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

// FeeOptions implements backend.FeeService from the fee_stats endpoint: the
// median charged fee is the regular option and the 90th percentile the
// priority one. Neither goes below the last ledger's base fee.
func (c *Client) FeeOptions(ctx context.Context, currency domain.Currency) (backend.FeeOptions, error) {
	if currency.IsSubToken() {
		return backend.FeeOptions{}, fmt.Errorf("horizon fees are paid in the native asset, not %s", currency.Code)
	}

	var stats feeStats
	if err := c.getJSON(ctx, "/fee_stats", &stats); err != nil {
		return backend.FeeOptions{}, fmt.Errorf("fetching fee stats: %w", err)
	}

	base := stroops(stats.LastLedgerBaseFee, currency)
	return backend.FeeOptions{
		Regular:  atLeast(stroops(stats.FeeCharged.P50, currency), base),
		Priority: atLeast(stroops(stats.FeeCharged.P90, currency), base),
	}, nil
}

func atLeast(v, floor domain.Money) domain.Money {
	if cmp, err := v.Cmp(floor); err == nil && cmp < 0 {
		return floor
	}
	return v
}
