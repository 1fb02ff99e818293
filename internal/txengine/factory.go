// Package txengine picks the transaction-building strategy for an account and
// an action, and turns requests into unsigned proposals.
package txengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mtlprog/coincore/internal/asset"
	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/coincore"
	"github.com/mtlprog/coincore/internal/domain"
)

var (
	ErrNoStrategy        = errors.New("no transaction strategy")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientGas   = errors.New("insufficient funds for network fee")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrTargetRequired    = errors.New("transaction target required")
	ErrMemoNotSupported  = errors.New("memo not supported on this chain")
)

// Target is where a transaction goes: an address, an owned account, or both.
type Target struct {
	Address string
	Memo    string
	Account coincore.Account
}

// Request describes a transaction the user wants to make.
type Request struct {
	Source   coincore.Account
	Target   Target
	Action   domain.AssetAction
	Amount   domain.Money
	Priority bool
}

// Proposal is an unsigned transaction ready for review. Total is what leaves
// the source account, in its own currency; a fee paid in another currency is
// not part of it.
type Proposal struct {
	ID          uuid.UUID          `json:"id"`
	Action      domain.AssetAction `json:"action"`
	SourceID    string             `json:"sourceId"`
	TargetID    string             `json:"targetId,omitempty"`
	Address     string             `json:"address,omitempty"`
	Memo        string             `json:"memo,omitempty"`
	Amount      domain.Money       `json:"amount"`
	Fee         domain.Money       `json:"fee"`
	FeeCurrency string             `json:"feeCurrency"`
	Total       domain.Money       `json:"total"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// Strategy builds transactions for one kind of source and one action.
type Strategy interface {
	EstimateFee(ctx context.Context, req Request) (domain.Money, error)
	BuildProposal(ctx context.Context, req Request) (Proposal, error)
}

// AccountResolver finds the account used for a currency.
type AccountResolver interface {
	DefaultAccount(ctx context.Context, code string, custodial bool) (coincore.Account, error)
}

// SourceKind is the dispatch half derived from the source account: the chain
// engine for non-custodial accounts, the account kind otherwise.
type SourceKind string

type strategyKey struct {
	kind   SourceKind
	action domain.AssetAction
}

// Factory dispatches requests to strategies. It keeps no state beyond the
// dispatch table and does no I/O.
type Factory struct {
	registry   *asset.Registry
	strategies map[strategyKey]Strategy
}

// NewFactory registers the built-in strategies.
func NewFactory(registry *asset.Registry, fees backend.FeeService, accounts AccountResolver) *Factory {
	if registry == nil {
		panic("txengine: registry must not be nil")
	}
	if fees == nil {
		panic("txengine: fee service must not be nil")
	}
	if accounts == nil {
		panic("txengine: account resolver must not be nil")
	}

	f := &Factory{registry: registry, strategies: make(map[strategyKey]Strategy)}

	native := func(memo bool) Strategy {
		return &onChainStrategy{fees: fees, memo: memo}
	}
	token := &tokenStrategy{fees: fees, accounts: accounts}
	internal := &internalStrategy{}
	withdrawal := &custodialWithdrawal{fees: fees}

	for _, action := range []domain.AssetAction{domain.ActionSend, domain.ActionInterestDeposit} {
		f.Register(SourceKind(asset.EngineUTXO), action, native(false))
		f.Register(SourceKind(asset.EngineETH), action, native(false))
		f.Register(SourceKind(asset.EngineXLM), action, native(true))
		f.Register(SourceKind(asset.EngineERC20), action, token)
	}

	f.Register(kindOf(coincore.AccountCustodial), domain.ActionSend, withdrawal)
	for _, action := range []domain.AssetAction{domain.ActionSwap, domain.ActionSell, domain.ActionInterestDeposit} {
		f.Register(kindOf(coincore.AccountCustodial), action, internal)
	}
	f.Register(kindOf(coincore.AccountInterest), domain.ActionInterestWithdraw, internal)
	f.Register(kindOf(coincore.AccountFiat), domain.ActionWithdraw, internal)

	return f
}

func kindOf(k coincore.AccountKind) SourceKind { return SourceKind(k) }

// Register installs or replaces the strategy for (kind, action).
func (f *Factory) Register(kind SourceKind, action domain.AssetAction, s Strategy) {
	if s == nil {
		panic("txengine: strategy must not be nil")
	}
	f.strategies[strategyKey{kind: kind, action: action}] = s
}

// SourceKind classifies the source account of a request.
func (f *Factory) SourceKind(acc coincore.Account) (SourceKind, error) {
	if acc.Kind() != coincore.AccountNonCustodial {
		return kindOf(acc.Kind()), nil
	}
	info, err := f.registry.Lookup(acc.Currency().Code)
	if err != nil {
		return "", err
	}
	return SourceKind(info.Engine), nil
}

// Strategy returns the strategy serving req.
func (f *Factory) Strategy(req Request) (Strategy, error) {
	if req.Source == nil {
		return nil, fmt.Errorf("%w: no source account", ErrNoStrategy)
	}
	kind, err := f.SourceKind(req.Source)
	if err != nil {
		return nil, fmt.Errorf("classifying %s: %w", req.Source.ID(), err)
	}
	s, ok := f.strategies[strategyKey{kind: kind, action: req.Action}]
	if !ok {
		return nil, fmt.Errorf("%w for %s %s", ErrNoStrategy, kind, req.Action)
	}
	return s, nil
}

// Propose builds a proposal with the strategy serving req.
func (f *Factory) Propose(ctx context.Context, req Request) (Proposal, error) {
	s, err := f.Strategy(req)
	if err != nil {
		return Proposal{}, err
	}
	return s.BuildProposal(ctx, req)
}
