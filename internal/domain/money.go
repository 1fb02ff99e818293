package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is matched by every error produced when two Money values
// of different currencies are combined or compared.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// CurrencyMismatchError reports the two currency codes involved.
type CurrencyMismatchError struct {
	Op    string
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("%s: %s vs %s: %v", e.Op, e.Left, e.Right, ErrCurrencyMismatch)
}

func (e *CurrencyMismatchError) Is(target error) bool {
	return target == ErrCurrencyMismatch
}

// Money is an immutable exact amount tagged with its currency.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a Money value.
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{amount: amount, currency: currency}
}

// ZeroMoney returns zero in the given currency.
func ZeroMoney(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// MoneyFromString parses a decimal amount in the given currency.
func MoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("parsing %s amount %q: %w", currency.Code, amount, err)
	}
	return Money{amount: d, currency: currency}, nil
}

// MoneyFromMinor converts an integer amount of minor units (satoshi, wei, cents)
// into Money using the currency's declared decimals.
func MoneyFromMinor(minor int64, currency Currency) Money {
	return Money{amount: decimal.New(minor, -currency.Decimals), currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }
func (m Money) IsNegative() bool        { return m.amount.IsNegative() }

// Neg returns the negated amount in the same currency.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Abs returns the absolute amount in the same currency.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Add returns m + other. Both values must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if err := m.checkSame("add", other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m - other. Both values must share a currency.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.checkSame("sub", other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Cmp compares m and other: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.checkSame("compare", other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports whether both values have the same currency and amount.
// Unlike Cmp it never fails: different currencies are simply not equal.
func (m Money) Equal(other Money) bool {
	return m.currency.SameAs(other.currency) && m.amount.Equal(other.amount)
}

// MulRate scales the amount by a plain factor, keeping the currency.
func (m Money) MulRate(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Round rounds half-even to the currency's declared decimals.
func (m Money) Round() Money {
	return Money{amount: m.amount.RoundBank(m.currency.Decimals), currency: m.currency}
}

// String formats the amount with the currency ticker. Crypto amounts drop
// trailing zeros; fiat amounts always show all minor units.
func (m Money) String() string {
	if m.currency.IsFiat() {
		return m.amount.StringFixedBank(m.currency.Decimals) + " " + m.currency.String()
	}
	return FormatPrecision(m.amount, m.currency.Decimals) + " " + m.currency.String()
}

// MarshalJSON renders {"amount":"…","currency":"…"}.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}{
		Amount:   FormatPrecision(m.amount, m.currency.Decimals),
		Currency: m.currency.Code,
	})
}

func (m Money) checkSame(op string, other Money) error {
	if m.currency.SameAs(other.currency) {
		return nil
	}
	return &CurrencyMismatchError{Op: op, Left: m.currency.Code, Right: other.currency.Code}
}

// SumMoney adds all values, starting from zero in the given currency.
func SumMoney(currency Currency, values ...Money) (Money, error) {
	total := ZeroMoney(currency)
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Money{}, err
		}
		total = next
	}
	return total, nil
}
