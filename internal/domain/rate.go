package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate converts amounts of From into To.
type ExchangeRate struct {
	From      Currency        `json:"from"`
	To        Currency        `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Timestamp time.Time       `json:"timestamp"`
}

// IdentityRate converts a currency into itself.
func IdentityRate(c Currency) ExchangeRate {
	return ExchangeRate{From: c, To: c, Rate: decimal.NewFromInt(1)}
}

// Convert returns amount expressed in To, rounded half-even to To's decimals.
func (r ExchangeRate) Convert(amount Money) (Money, error) {
	if !amount.Currency().SameAs(r.From) {
		return Money{}, &CurrencyMismatchError{Op: "convert", Left: amount.Currency().Code, Right: r.From.Code}
	}
	converted := amount.Amount().Mul(r.Rate).RoundBank(r.To.Decimals)
	return NewMoney(converted, r.To), nil
}

// Inverse returns the rate converting To back into From.
func (r ExchangeRate) Inverse() (ExchangeRate, error) {
	if r.Rate.IsZero() {
		return ExchangeRate{}, fmt.Errorf("inverting zero %s/%s rate", r.From.Code, r.To.Code)
	}
	return ExchangeRate{
		From:      r.To,
		To:        r.From,
		Rate:      decimal.NewFromInt(1).DivRound(r.Rate, 18),
		Timestamp: r.Timestamp,
	}, nil
}

// PriceDelta pairs a current rate with its relative change over the last 24 hours,
// expressed in percent.
type PriceDelta struct {
	Current  ExchangeRate    `json:"current"`
	Delta24h decimal.Decimal `json:"delta24h"`
}
