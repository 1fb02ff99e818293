package horizon

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

// GetBalance returns the native XLM balance of ref.Address. An account that
// does not exist on the network yet holds zero.
func (c *Client) GetBalance(ctx context.Context, ref backend.ChainAccountRef) (domain.Money, error) {
	var account accountRecord
	err := c.getJSON(ctx, "/accounts/"+ref.Address, &account)
	if errors.Is(err, ErrNotFound) {
		return domain.ZeroMoney(ref.Currency), nil
	}
	if err != nil {
		return domain.Money{}, fmt.Errorf("fetching account %s: %w", ref.Address, err)
	}

	for _, b := range account.Balances {
		if b.AssetType != "native" {
			continue
		}
		amt, err := decimal.NewFromString(b.Balance)
		if err != nil {
			return domain.Money{}, fmt.Errorf("parsing balance of %s: %w", ref.Address, err)
		}
		return domain.NewMoney(amt, ref.Currency), nil
	}
	return domain.ZeroMoney(ref.Currency), nil
}
