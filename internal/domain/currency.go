package domain

import "fmt"

// CurrencyKind classifies how a currency is carried.
type CurrencyKind string

const (
	CurrencyKindNative   CurrencyKind = "native"
	CurrencyKindSubToken CurrencyKind = "subtoken"
	CurrencyKindFiat     CurrencyKind = "fiat"
)

// Currency identifies a crypto asset or a fiat currency.
// Sub-tokens carry the code of the chain they live on; that chain's native
// currency pays their network fees.
type Currency struct {
	Code     string       `json:"code"`
	Ticker   string       `json:"ticker"`
	Kind     CurrencyKind `json:"kind"`
	Decimals int32        `json:"decimals"`
	Parent   string       `json:"parent,omitempty"`
}

// NewNativeCurrency creates a currency that pays its own network fees.
func NewNativeCurrency(code string, decimals int32) Currency {
	return Currency{Code: code, Ticker: code, Kind: CurrencyKindNative, Decimals: decimals}
}

// NewSubToken creates a token carried on the parent chain.
func NewSubToken(code string, decimals int32, parent string) Currency {
	return Currency{Code: code, Ticker: code, Kind: CurrencyKindSubToken, Decimals: decimals, Parent: parent}
}

// NewFiatCurrency creates a fiat currency with the given number of minor units.
func NewFiatCurrency(code string, decimals int32) Currency {
	return Currency{Code: code, Ticker: code, Kind: CurrencyKindFiat, Decimals: decimals}
}

func (c Currency) IsFiat() bool     { return c.Kind == CurrencyKindFiat }
func (c Currency) IsSubToken() bool { return c.Kind == CurrencyKindSubToken }
func (c Currency) IsCrypto() bool   { return c.Kind == CurrencyKindNative || c.Kind == CurrencyKindSubToken }

// FeeCurrencyCode returns the code of the currency that pays network fees for c.
func (c Currency) FeeCurrencyCode() string {
	if c.IsSubToken() {
		return c.Parent
	}
	return c.Code
}

// SameAs reports whether both values identify the same currency.
func (c Currency) SameAs(other Currency) bool {
	return c.Code == other.Code
}

func (c Currency) String() string {
	if c.Ticker != "" {
		return c.Ticker
	}
	return c.Code
}

// Validate checks the invariants every registered currency must hold.
func (c Currency) Validate() error {
	if c.Code == "" {
		return fmt.Errorf("currency code is empty")
	}
	if c.Decimals < 0 {
		return fmt.Errorf("currency %s: negative decimals %d", c.Code, c.Decimals)
	}
	switch c.Kind {
	case CurrencyKindNative, CurrencyKindFiat:
		if c.Parent != "" {
			return fmt.Errorf("currency %s: only sub-tokens have a parent chain", c.Code)
		}
	case CurrencyKindSubToken:
		if c.Parent == "" {
			return fmt.Errorf("currency %s: sub-token without parent chain", c.Code)
		}
		if c.Parent == c.Code {
			return fmt.Errorf("currency %s: sub-token cannot be its own parent", c.Code)
		}
	default:
		return fmt.Errorf("currency %s: unknown kind %q", c.Code, c.Kind)
	}
	return nil
}
