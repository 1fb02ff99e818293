package worker

import (
	"context"
	"time"
)

// QuoteFetcher defines the interface for fetching and storing external quotes.
type QuoteFetcher interface {
	FetchAndStoreQuotes(ctx context.Context) error
}

// QuoteWorker periodically fetches external price quotes.
type QuoteWorker struct {
	fetcher  QuoteFetcher
	interval time.Duration
}

// NewQuoteWorker creates a new QuoteWorker.
func NewQuoteWorker(fetcher QuoteFetcher, interval time.Duration) *QuoteWorker {
	return &QuoteWorker{fetcher: fetcher, interval: interval}
}

// Run blocks until the context is cancelled.
func (w *QuoteWorker) Run(ctx context.Context) {
	loop(ctx, "quotes", w.interval, w.fetcher.FetchAndStoreQuotes)
}
