package txengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/coincore"
	"github.com/mtlprog/coincore/internal/domain"
)

// onChainStrategy sends a native coin; the fee comes out of the same balance.
type onChainStrategy struct {
	fees backend.FeeService
	memo bool
}

func (s *onChainStrategy) EstimateFee(ctx context.Context, req Request) (domain.Money, error) {
	return networkFee(ctx, s.fees, req)
}

func (s *onChainStrategy) BuildProposal(ctx context.Context, req Request) (Proposal, error) {
	if err := validateAmount(req); err != nil {
		return Proposal{}, err
	}
	addr, err := resolveTarget(ctx, req.Target)
	if err != nil {
		return Proposal{}, err
	}
	if addr.Memo != "" && !s.memo {
		return Proposal{}, fmt.Errorf("%w: %s", ErrMemoNotSupported, req.Source.Currency().Code)
	}

	fee, err := s.EstimateFee(ctx, req)
	if err != nil {
		return Proposal{}, err
	}
	total, err := req.Amount.Add(fee)
	if err != nil {
		return Proposal{}, fmt.Errorf("adding fee: %w", err)
	}
	if err := ensureWithdrawable(ctx, req.Source, total, ErrInsufficientFunds); err != nil {
		return Proposal{}, err
	}
	return newProposal(req, addr, fee, total), nil
}

// tokenStrategy sends a sub-token. The fee is paid by the parent chain's
// default account.
type tokenStrategy struct {
	fees     backend.FeeService
	accounts AccountResolver
}

func (s *tokenStrategy) EstimateFee(ctx context.Context, req Request) (domain.Money, error) {
	return networkFee(ctx, s.fees, req)
}

func (s *tokenStrategy) BuildProposal(ctx context.Context, req Request) (Proposal, error) {
	if err := validateAmount(req); err != nil {
		return Proposal{}, err
	}
	addr, err := resolveTarget(ctx, req.Target)
	if err != nil {
		return Proposal{}, err
	}
	if addr.Memo != "" {
		return Proposal{}, fmt.Errorf("%w: %s", ErrMemoNotSupported, req.Source.Currency().Code)
	}
	if err := ensureWithdrawable(ctx, req.Source, req.Amount, ErrInsufficientFunds); err != nil {
		return Proposal{}, err
	}

	fee, err := s.EstimateFee(ctx, req)
	if err != nil {
		return Proposal{}, err
	}
	parentCode := req.Source.Currency().FeeCurrencyCode()
	parent, err := s.accounts.DefaultAccount(ctx, parentCode, false)
	if err != nil {
		return Proposal{}, fmt.Errorf("%w: no %s account to pay the fee: %v", ErrInsufficientGas, parentCode, err)
	}
	if err := ensureWithdrawable(ctx, parent, fee, ErrInsufficientGas); err != nil {
		return Proposal{}, err
	}
	return newProposal(req, addr, fee, req.Amount), nil
}

// custodialWithdrawal moves funds out of custody to an external address. The
// custodian charges the network fee only when it is paid in the asset itself.
type custodialWithdrawal struct {
	fees backend.FeeService
}

func (s *custodialWithdrawal) EstimateFee(ctx context.Context, req Request) (domain.Money, error) {
	fee, err := networkFee(ctx, s.fees, req)
	if err != nil {
		return domain.Money{}, err
	}
	if !fee.Currency().SameAs(req.Source.Currency()) {
		return domain.ZeroMoney(req.Source.Currency()), nil
	}
	return fee, nil
}

func (s *custodialWithdrawal) BuildProposal(ctx context.Context, req Request) (Proposal, error) {
	if err := validateAmount(req); err != nil {
		return Proposal{}, err
	}
	addr, err := resolveTarget(ctx, req.Target)
	if err != nil {
		return Proposal{}, err
	}
	fee, err := s.EstimateFee(ctx, req)
	if err != nil {
		return Proposal{}, err
	}
	total, err := req.Amount.Add(fee)
	if err != nil {
		return Proposal{}, fmt.Errorf("adding fee: %w", err)
	}
	if err := ensureWithdrawable(ctx, req.Source, total, ErrInsufficientFunds); err != nil {
		return Proposal{}, err
	}
	return newProposal(req, addr, fee, total), nil
}

// internalStrategy moves funds between accounts held by the custodian. No
// network fee applies.
type internalStrategy struct{}

func (internalStrategy) EstimateFee(_ context.Context, req Request) (domain.Money, error) {
	return domain.ZeroMoney(req.Source.Currency()), nil
}

func (s internalStrategy) BuildProposal(ctx context.Context, req Request) (Proposal, error) {
	if err := validateAmount(req); err != nil {
		return Proposal{}, err
	}
	if req.Target.Account == nil {
		return Proposal{}, fmt.Errorf("%w: %s needs a destination account", ErrTargetRequired, req.Action)
	}
	if err := ensureWithdrawable(ctx, req.Source, req.Amount, ErrInsufficientFunds); err != nil {
		return Proposal{}, err
	}
	fee, _ := s.EstimateFee(ctx, req)
	return newProposal(req, backend.ReceiveAddress{}, fee, req.Amount), nil
}

func validateAmount(req Request) error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}
	if !req.Amount.Currency().SameAs(req.Source.Currency()) {
		return fmt.Errorf("%w: %s amount for a %s account",
			ErrInvalidAmount, req.Amount.Currency().Code, req.Source.Currency().Code)
	}
	return nil
}

// resolveTarget prefers an explicit address and falls back to the receive
// address of the target account.
func resolveTarget(ctx context.Context, t Target) (backend.ReceiveAddress, error) {
	if t.Address != "" {
		return backend.ReceiveAddress{Address: t.Address, Memo: t.Memo}, nil
	}
	if t.Account == nil {
		return backend.ReceiveAddress{}, ErrTargetRequired
	}
	addr, err := t.Account.ReceiveAddress(ctx)
	if err != nil {
		return backend.ReceiveAddress{}, fmt.Errorf("resolving address of %s: %w", t.Account.ID(), err)
	}
	return addr, nil
}

func networkFee(ctx context.Context, fees backend.FeeService, req Request) (domain.Money, error) {
	opts, err := fees.FeeOptions(ctx, req.Source.Currency())
	if err != nil {
		return domain.Money{}, fmt.Errorf("fetching %s fee: %w", req.Source.Currency().Code, err)
	}
	if req.Priority {
		return opts.Priority, nil
	}
	return opts.Regular, nil
}

func ensureWithdrawable(ctx context.Context, acc coincore.Account, need domain.Money, sentinel error) error {
	l, err := acc.LedgerBalance(ctx)
	if err != nil {
		return fmt.Errorf("reading %s balance: %w", acc.ID(), err)
	}
	cmp, err := l.Withdrawable.Cmp(need)
	if err != nil {
		return fmt.Errorf("checking %s balance: %w", acc.ID(), err)
	}
	if cmp < 0 {
		return fmt.Errorf("%w: %s needs %s, has %s", sentinel, acc.ID(), need, l.Withdrawable)
	}
	return nil
}

func newProposal(req Request, addr backend.ReceiveAddress, fee, total domain.Money) Proposal {
	p := Proposal{
		ID:          uuid.New(),
		Action:      req.Action,
		SourceID:    req.Source.ID(),
		Address:     addr.Address,
		Memo:        addr.Memo,
		Amount:      req.Amount,
		Fee:         fee,
		FeeCurrency: fee.Currency().Code,
		Total:       total,
		CreatedAt:   time.Now().UTC(),
	}
	if req.Target.Account != nil {
		p.TargetID = req.Target.Account.ID()
	}
	return p
}
