// Package horizon reads Stellar balances, payment history and fee statistics
// from a Horizon server.
package horizon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound is returned for resources Horizon does not know, such as
// accounts that were never funded.
var ErrNotFound = errors.New("horizon: not found")

// Client is an HTTP client for the Stellar Horizon API with retry on 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a new Horizon API client.
func NewClient(baseURL string, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// get performs a GET request, backing off exponentially while Horizon answers 429.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	target := c.baseURL + path

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		status, body, err := c.do(ctx, target)
		if err != nil {
			return nil, err
		}

		switch status {
		case http.StatusOK:
			return body, nil
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		case http.StatusTooManyRequests:
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", target, attempt+1, c.maxRetries+1)
			if attempt == c.maxRetries {
				return nil, lastErr
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.baseDelay << uint(attempt)):
			}
		default:
			return nil, fmt.Errorf("HTTP %d from %s: %s", status, target, string(body))
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// getJSON performs a GET request and unmarshals the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", path, err)
	}
	return nil
}

// relative turns an absolute pagination link into a path on this client.
func relative(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return u.Path + "?" + u.RawQuery, nil
}
