package domain

import (
	"slices"

	"github.com/samber/lo"
)

// AssetAction is a user-facing operation an account may offer.
type AssetAction string

const (
	ActionViewActivity     AssetAction = "VIEW_ACTIVITY"
	ActionSend             AssetAction = "SEND"
	ActionReceive          AssetAction = "RECEIVE"
	ActionSwap             AssetAction = "SWAP"
	ActionBuy              AssetAction = "BUY"
	ActionSell             AssetAction = "SELL"
	ActionInterestDeposit  AssetAction = "INTEREST_DEPOSIT"
	ActionInterestWithdraw AssetAction = "INTEREST_WITHDRAW"
	ActionFiatDeposit      AssetAction = "FIAT_DEPOSIT"
	ActionWithdraw         AssetAction = "WITHDRAW"
)

// ActionSet is an unordered set of actions.
type ActionSet map[AssetAction]struct{}

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...AssetAction) ActionSet {
	s := make(ActionSet, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

func (s ActionSet) Add(a AssetAction) { s[a] = struct{}{} }

func (s ActionSet) Has(a AssetAction) bool {
	_, ok := s[a]
	return ok
}

// Sorted returns the actions in a stable order.
func (s ActionSet) Sorted() []AssetAction {
	out := lo.Keys(s)
	slices.Sort(out)
	return out
}

// KycTier is the highest identity verification level approved for the user.
type KycTier int

const (
	KycTierNone KycTier = iota
	KycTierSilver
	KycTierGold
)

func (t KycTier) String() string {
	switch t {
	case KycTierSilver:
		return "SILVER"
	case KycTierGold:
		return "GOLD"
	default:
		return "NONE"
	}
}

// ParseKycTier maps a tier name to its value, defaulting to KycTierNone.
func ParseKycTier(s string) KycTier {
	switch s {
	case "SILVER", "silver", "1":
		return KycTierSilver
	case "GOLD", "gold", "2":
		return KycTierGold
	default:
		return KycTierNone
	}
}
