package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

// Book names a custodial balance sheet in custodial_balances.
type Book string

const (
	BookTrading  Book = "TRADING"
	BookInterest Book = "INTEREST"
	BookFiat     Book = "FIAT"
)

// CurrencyLookup resolves currency codes stored in the ledger tables.
type CurrencyLookup interface {
	Currency(code string) (domain.Currency, error)
}

// Ledger reads the custodial books. Its views implement the custodial
// backend interfaces.
type Ledger struct {
	pool       *pgxpool.Pool
	currencies CurrencyLookup
}

// NewLedger creates a Ledger over pool.
func NewLedger(pool *pgxpool.Pool, currencies CurrencyLookup) *Ledger {
	if currencies == nil {
		panic("store: currency lookup must not be nil")
	}
	return &Ledger{pool: pool, currencies: currencies}
}

func (l *Ledger) Trading() *TradingLedger   { return &TradingLedger{l} }
func (l *Ledger) Interest() *InterestLedger { return &InterestLedger{l} }
func (l *Ledger) Fiat() *FiatLedger         { return &FiatLedger{l} }
func (l *Ledger) Swaps() *SwapLedger        { return &SwapLedger{l} }

// balance reads one book. A missing row is an empty balance.
func (l *Ledger) balance(ctx context.Context, book Book, c domain.Currency) (backend.CustodialBalance, error) {
	var total, withdrawable, pending decimal.Decimal
	err := l.pool.QueryRow(ctx,
		`SELECT total, withdrawable, pending FROM custodial_balances WHERE book = $1 AND currency = $2`,
		string(book), c.Code).Scan(&total, &withdrawable, &pending)
	if errors.Is(err, pgx.ErrNoRows) {
		return backend.ZeroBalance(c), nil
	}
	if err != nil {
		return backend.CustodialBalance{}, fmt.Errorf("reading %s %s balance: %w", book, c.Code, err)
	}
	return backend.CustodialBalance{
		Total:        domain.NewMoney(total, c),
		Withdrawable: domain.NewMoney(withdrawable, c),
		Pending:      domain.NewMoney(pending, c),
	}, nil
}

// movementRow is the shared shape of interest and fiat movements.
type movementRow struct {
	ID        string
	Type      string
	State     string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

func (l *Ledger) movements(ctx context.Context, book Book, c domain.Currency) ([]movementRow, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, type, state, amount, created_at
		 FROM custodial_movements
		 WHERE book = $1 AND currency = $2
		 ORDER BY created_at DESC`,
		string(book), c.Code)
	if err != nil {
		return nil, fmt.Errorf("listing %s %s movements: %w", book, c.Code, err)
	}
	defer rows.Close()

	var out []movementRow
	for rows.Next() {
		var m movementRow
		if err := rows.Scan(&m.ID, &m.Type, &m.State, &m.Amount, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TradingLedger implements backend.TradingService.
type TradingLedger struct{ l *Ledger }

func (t *TradingLedger) GetBalanceForAsset(ctx context.Context, asset domain.Currency) (backend.CustodialBalance, error) {
	return t.l.balance(ctx, BookTrading, asset)
}

// tradeRow is one custodial_trades record before currency resolution.
type tradeRow struct {
	ID               string
	Side             string
	State            string
	CryptoAmount     decimal.Decimal
	FiatAmount       decimal.Decimal
	FiatCurrency     string
	Fee              decimal.Decimal
	DepositPaymentID *string
	CreatedAt        time.Time
}

func (t *TradingLedger) GetCustodialActivity(ctx context.Context, asset domain.Currency) ([]backend.TradeItem, error) {
	rows, err := t.l.pool.Query(ctx,
		`SELECT id, side, state, crypto_amount, fiat_amount, fiat_currency, fee, deposit_payment_id, created_at
		 FROM custodial_trades
		 WHERE asset = $1
		 ORDER BY created_at DESC`,
		asset.Code)
	if err != nil {
		return nil, fmt.Errorf("listing %s trades: %w", asset.Code, err)
	}
	defer rows.Close()

	var items []backend.TradeItem
	for rows.Next() {
		var r tradeRow
		if err := rows.Scan(&r.ID, &r.Side, &r.State, &r.CryptoAmount, &r.FiatAmount,
			&r.FiatCurrency, &r.Fee, &r.DepositPaymentID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		item, err := r.toItem(asset, t.l.currencies)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r tradeRow) toItem(asset domain.Currency, currencies CurrencyLookup) (backend.TradeItem, error) {
	fiat, err := currencies.Currency(r.FiatCurrency)
	if err != nil {
		return backend.TradeItem{}, fmt.Errorf("trade %s: %w", r.ID, err)
	}
	return backend.TradeItem{
		ID:               r.ID,
		Side:             backend.OrderSide(r.Side),
		State:            backend.OrderState(r.State),
		Crypto:           domain.NewMoney(r.CryptoAmount, asset),
		Fiat:             domain.NewMoney(r.FiatAmount, fiat),
		Fee:              domain.NewMoney(r.Fee, fiat),
		DepositPaymentID: lo.FromPtr(r.DepositPaymentID),
		CreatedAt:        r.CreatedAt.UTC(),
	}, nil
}

// InterestLedger implements backend.InterestService.
type InterestLedger struct{ l *Ledger }

func (i *InterestLedger) IsEligible(ctx context.Context, asset domain.Currency) (bool, error) {
	var eligible bool
	err := i.l.pool.QueryRow(ctx,
		`SELECT eligible FROM interest_assets WHERE asset = $1`, asset.Code).Scan(&eligible)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s interest eligibility: %w", asset.Code, err)
	}
	return eligible, nil
}

func (i *InterestLedger) GetBalance(ctx context.Context, asset domain.Currency) (backend.CustodialBalance, error) {
	return i.l.balance(ctx, BookInterest, asset)
}

func (i *InterestLedger) GetActivity(ctx context.Context, asset domain.Currency) ([]backend.InterestItem, error) {
	rows, err := i.l.movements(ctx, BookInterest, asset)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(m movementRow, _ int) backend.InterestItem {
		return backend.InterestItem{
			ID:        m.ID,
			Type:      backend.TransactionType(m.Type),
			State:     backend.OrderState(m.State),
			Amount:    domain.NewMoney(m.Amount, asset),
			CreatedAt: m.CreatedAt.UTC(),
		}
	}), nil
}

func (i *InterestLedger) DepositAddress(ctx context.Context, asset domain.Currency) (backend.ReceiveAddress, error) {
	var addr backend.ReceiveAddress
	err := i.l.pool.QueryRow(ctx,
		`SELECT deposit_address, deposit_memo FROM interest_assets WHERE asset = $1 AND eligible`,
		asset.Code).Scan(&addr.Address, &addr.Memo)
	if errors.Is(err, pgx.ErrNoRows) {
		return backend.ReceiveAddress{}, fmt.Errorf("%w: interest address for %s", ErrNotFound, asset.Code)
	}
	if err != nil {
		return backend.ReceiveAddress{}, fmt.Errorf("reading %s interest address: %w", asset.Code, err)
	}
	addr.Label = asset.String() + " Rewards"
	return addr, nil
}

// FiatLedger implements backend.FiatService.
type FiatLedger struct{ l *Ledger }

func (f *FiatLedger) GetBalance(ctx context.Context, currency domain.Currency) (backend.CustodialBalance, error) {
	return f.l.balance(ctx, BookFiat, currency)
}

func (f *FiatLedger) GetActivity(ctx context.Context, currency domain.Currency) ([]backend.FiatItem, error) {
	rows, err := f.l.movements(ctx, BookFiat, currency)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(m movementRow, _ int) backend.FiatItem {
		return backend.FiatItem{
			ID:        m.ID,
			Type:      backend.TransactionType(m.Type),
			State:     backend.OrderState(m.State),
			Amount:    domain.NewMoney(m.Amount, currency),
			CreatedAt: m.CreatedAt.UTC(),
		}
	}), nil
}

// SwapLedger implements backend.SwapService.
type SwapLedger struct{ l *Ledger }

// swapRow is one swaps record before currency resolution.
type swapRow struct {
	ID              string
	State           string
	Direction       string
	SendingAsset    string
	SendingAmount   decimal.Decimal
	ReceivingAsset  string
	ReceivingAmount decimal.Decimal
	Fee             decimal.Decimal
	TxHash          *string
	CreatedAt       time.Time
}

func (s *SwapLedger) GetSwapActivity(ctx context.Context, asset domain.Currency, directions []backend.SwapDirection) ([]backend.SwapItem, error) {
	if len(directions) == 0 {
		return nil, nil
	}
	dirs := lo.Map(directions, func(d backend.SwapDirection, _ int) string { return string(d) })

	rows, err := s.l.pool.Query(ctx,
		`SELECT id, state, direction, sending_asset, sending_amount, receiving_asset, receiving_amount, fee, tx_hash, created_at
		 FROM swaps
		 WHERE (sending_asset = $1 OR receiving_asset = $1) AND direction = ANY($2)
		 ORDER BY created_at DESC`,
		asset.Code, dirs)
	if err != nil {
		return nil, fmt.Errorf("listing %s swaps: %w", asset.Code, err)
	}
	defer rows.Close()

	var items []backend.SwapItem
	for rows.Next() {
		var r swapRow
		if err := rows.Scan(&r.ID, &r.State, &r.Direction, &r.SendingAsset, &r.SendingAmount,
			&r.ReceivingAsset, &r.ReceivingAmount, &r.Fee, &r.TxHash, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning swap: %w", err)
		}
		item, err := r.toItem(s.l.currencies)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// toItem resolves both legs. The fee is charged in the sending currency.
func (r swapRow) toItem(currencies CurrencyLookup) (backend.SwapItem, error) {
	sending, err := currencies.Currency(r.SendingAsset)
	if err != nil {
		return backend.SwapItem{}, fmt.Errorf("swap %s: %w", r.ID, err)
	}
	receiving, err := currencies.Currency(r.ReceivingAsset)
	if err != nil {
		return backend.SwapItem{}, fmt.Errorf("swap %s: %w", r.ID, err)
	}
	return backend.SwapItem{
		ID:        r.ID,
		State:     backend.OrderState(r.State),
		Direction: backend.SwapDirection(r.Direction),
		Sending:   domain.NewMoney(r.SendingAmount, sending),
		Receiving: domain.NewMoney(r.ReceivingAmount, receiving),
		Fee:       domain.NewMoney(r.Fee, sending),
		TxHash:    lo.FromPtr(r.TxHash),
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}
