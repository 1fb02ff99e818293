package backend

import (
	"context"
	"fmt"

	"github.com/mtlprog/coincore/internal/domain"
)

// FixedTier is an IdentityService that always reports the same tier.
type FixedTier domain.KycTier

func (t FixedTier) HighestApprovedTier(context.Context) (domain.KycTier, error) {
	return domain.KycTier(t), nil
}

// FeeRouter sends fee quotes to a per-currency service when one is bound,
// and to Default otherwise.
type FeeRouter struct {
	Default    FeeService
	ByCurrency map[string]FeeService
}

func (r FeeRouter) FeeOptions(ctx context.Context, currency domain.Currency) (FeeOptions, error) {
	if svc, ok := r.ByCurrency[currency.Code]; ok {
		return svc.FeeOptions(ctx, currency)
	}
	if r.Default == nil {
		return FeeOptions{}, fmt.Errorf("no fee source for %s", currency.Code)
	}
	return r.Default.FeeOptions(ctx, currency)
}
