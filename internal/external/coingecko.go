// Package external prices crypto assets in fiat from CoinGecko and keeps the
// last known quotes in PostgreSQL.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Price is a CoinGecko quote in one fiat currency.
type Price struct {
	Price     decimal.Decimal
	Change24h decimal.Decimal
}

// CoinGeckoClient fetches prices from the CoinGecko API.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
}

// NewCoinGeckoClient creates a new CoinGecko API client.
func NewCoinGeckoClient(baseURL string, delay time.Duration, maxRetries int) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      delay,
		maxRetries: maxRetries,
	}
}

// FetchPrices prices every asset of ids (asset code -> CoinGecko id) in fiat
// and returns the quotes keyed by asset code. Assets CoinGecko does not know
// are left out.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, ids map[string]string, fiat string) (map[string]Price, error) {
	if len(ids) == 0 {
		return map[string]Price{}, nil
	}

	coinIDs := lo.Uniq(lo.Values(ids))
	slices.Sort(coinIDs)
	vs := strings.ToLower(fiat)

	query := url.Values{}
	query.Set("ids", strings.Join(coinIDs, ","))
	query.Set("vs_currencies", vs)
	query.Set("include_24hr_change", "true")
	query.Set("precision", "full")

	body, err := c.fetchWithRetry(ctx, c.baseURL+"/simple/price?"+query.Encode())
	if err != nil {
		return nil, err
	}

	// {"bitcoin":{"usd":45000.1,"usd_24h_change":-1.2},...}
	var raw map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing CoinGecko response: %w", err)
	}

	result := make(map[string]Price, len(ids))
	for code, coinID := range ids {
		quote, ok := raw[coinID]
		if !ok {
			continue
		}
		price, ok := quote[vs]
		if !ok {
			continue
		}
		result[code] = Price{Price: price, Change24h: quote[vs+"_24h_change"]}
	}
	return result, nil
}

func (c *CoinGeckoClient) fetchWithRetry(ctx context.Context, target string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			baseDelay := c.delay
			if baseDelay == 0 {
				baseDelay = 10 * time.Second
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(baseDelay << uint(attempt-1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("creating CoinGecko request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("CoinGecko request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading CoinGecko response: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return body, nil
		case http.StatusTooManyRequests:
			lastErr = fmt.Errorf("CoinGecko rate limited (attempt %d/%d)", attempt+1, c.maxRetries+1)
		default:
			return nil, fmt.Errorf("CoinGecko HTTP %d: %s", resp.StatusCode, string(body))
		}
	}
	return nil, lastErr
}
