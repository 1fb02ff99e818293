package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mtlprog/coincore/internal/balance"
	"github.com/mtlprog/coincore/internal/domain"
)

// Service keeps fiat quotes for the registered assets and serves them as
// exchange-rate streams. Quotes come from memory, then from the repository.
type Service struct {
	coingecko *CoinGeckoClient
	repo      QuoteRepository
	ids       map[string]string
	fiat      domain.Currency
	interval  time.Duration

	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewService creates a Service pricing the assets of ids (asset code ->
// CoinGecko id) in fiat. Streams re-read quotes every interval.
func NewService(coingecko *CoinGeckoClient, repo QuoteRepository, ids map[string]string, fiat domain.Currency, interval time.Duration) *Service {
	if repo == nil {
		panic("external: quote repository must not be nil")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		coingecko: coingecko,
		repo:      repo,
		ids:       ids,
		fiat:      fiat,
		interval:  interval,
		quotes:    make(map[string]Quote),
	}
}

// FetchAndStoreQuotes fetches all prices from CoinGecko and stores them.
func (s *Service) FetchAndStoreQuotes(ctx context.Context) error {
	if s.coingecko == nil {
		return fmt.Errorf("no CoinGecko client configured")
	}
	prices, err := s.coingecko.FetchPrices(ctx, s.ids, s.fiat.Code)
	if err != nil {
		return fmt.Errorf("fetching prices: %w", err)
	}

	now := time.Now().UTC()
	for code, p := range prices {
		q := Quote{Code: code, Fiat: s.fiat.Code, Price: p.Price, Change24h: p.Change24h, UpdatedAt: now}
		if err := s.repo.SaveQuote(ctx, q); err != nil {
			return fmt.Errorf("storing quote for %s: %w", code, err)
		}
		s.remember(q)
	}
	slog.Info("quotes refreshed", "count", len(prices), "fiat", s.fiat.Code)
	return nil
}

// Quote returns the last known price of code in the service fiat.
func (s *Service) Quote(ctx context.Context, code string) (Quote, error) {
	s.mu.RLock()
	q, ok := s.quotes[code]
	s.mu.RUnlock()
	if ok {
		return q, nil
	}

	q, err := s.repo.GetQuote(ctx, code, s.fiat.Code)
	if err != nil {
		return Quote{}, err
	}
	s.remember(q)
	return q, nil
}

func (s *Service) remember(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Code] = q
}

// Rate converts from into to. Crypto-to-crypto rates cross through the
// service fiat.
func (s *Service) Rate(ctx context.Context, from, to domain.Currency) (domain.ExchangeRate, error) {
	if from.SameAs(to) {
		return domain.IdentityRate(from), nil
	}

	switch {
	case to.SameAs(s.fiat):
		q, err := s.Quote(ctx, from.Code)
		if err != nil {
			return domain.ExchangeRate{}, err
		}
		return domain.ExchangeRate{From: from, To: to, Rate: q.Price, Timestamp: q.UpdatedAt}, nil

	case from.SameAs(s.fiat):
		direct, err := s.Rate(ctx, to, from)
		if err != nil {
			return domain.ExchangeRate{}, err
		}
		return direct.Inverse()

	case from.IsCrypto() && to.IsCrypto():
		qf, err := s.Quote(ctx, from.Code)
		if err != nil {
			return domain.ExchangeRate{}, err
		}
		qt, err := s.Quote(ctx, to.Code)
		if err != nil {
			return domain.ExchangeRate{}, err
		}
		if qt.Price.IsZero() {
			return domain.ExchangeRate{}, fmt.Errorf("%w: zero %s price", ErrNoQuote, to.Code)
		}
		ts := qf.UpdatedAt
		if qt.UpdatedAt.Before(ts) {
			ts = qt.UpdatedAt
		}
		return domain.ExchangeRate{From: from, To: to, Rate: qf.Price.DivRound(qt.Price, 18), Timestamp: ts}, nil

	default:
		return domain.ExchangeRate{}, fmt.Errorf("%w for %s/%s", ErrNoQuote, from.Code, to.Code)
	}
}

// ExchangeRate implements backend.RateService.
func (s *Service) ExchangeRate(ctx context.Context, from, to domain.Currency) <-chan domain.ExchangeRate {
	return balance.Poll(ctx, s.interval,
		func(ctx context.Context) (domain.ExchangeRate, error) { return s.Rate(ctx, from, to) },
		func(prev, next domain.ExchangeRate) bool { return prev.Rate.Equal(next.Rate) })
}

// PriceWith24hDelta implements backend.RateService.
func (s *Service) PriceWith24hDelta(ctx context.Context, asset, fiat domain.Currency) <-chan domain.PriceDelta {
	fetch := func(ctx context.Context) (domain.PriceDelta, error) {
		if !fiat.SameAs(s.fiat) {
			return domain.PriceDelta{}, fmt.Errorf("%w: quotes are kept in %s, not %s", ErrNoQuote, s.fiat.Code, fiat.Code)
		}
		q, err := s.Quote(ctx, asset.Code)
		if err != nil {
			return domain.PriceDelta{}, err
		}
		return domain.PriceDelta{
			Current:  domain.ExchangeRate{From: asset, To: fiat, Rate: q.Price, Timestamp: q.UpdatedAt},
			Delta24h: q.Change24h.Round(2),
		}, nil
	}
	same := func(prev, next domain.PriceDelta) bool {
		return prev.Current.Rate.Equal(next.Current.Rate) && prev.Delta24h.Equal(next.Delta24h)
	}
	return balance.Poll(ctx, s.interval, fetch, same)
}

// Quotes returns the last known quotes in the service fiat.
func (s *Service) Quotes(ctx context.Context) ([]Quote, error) {
	return s.repo.GetAllQuotes(ctx, s.fiat.Code)
}
