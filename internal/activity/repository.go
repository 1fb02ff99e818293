// Package activity serves reconciled activity feeds from a short-lived cache
// of the aggregate activity of every account.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mtlprog/coincore/internal/coincore"
)

// Source returns the activity of every owned account.
type Source interface {
	AllActivity(ctx context.Context) ([]coincore.ActivityItem, error)
}

const flightKey = "all-wallets"

// Repository is the entry point for activity reads. Concurrent cache misses
// share a single network fetch.
type Repository struct {
	source  Source
	cache   *Cache
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	flight  singleflight.Group
}

// NewRepository creates a Repository that keeps results for ttl and bounds
// each network fetch by timeout.
func NewRepository(source Source, ttl, timeout time.Duration) *Repository {
	if source == nil {
		panic("activity: source must not be nil")
	}
	return &Repository{
		source:  source,
		cache:   &Cache{},
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
	}
}

// Cache exposes the repository's cache.
func (r *Repository) Cache() *Cache { return r.cache }

// Fetch returns the activity of scope, newest first. Unless force is set, a
// fresh cache is served without touching the network. Cross-account
// reconciliation applies only when scope is the all-wallets group.
func (r *Repository) Fetch(ctx context.Context, scope coincore.Account, force bool) ([]coincore.ActivityItem, error) {
	items, err := r.load(ctx, force)
	if err != nil {
		return nil, err
	}

	items = Filter(items, scope)
	if scope.ID() == coincore.AllWalletsID {
		var fundingLegs []coincore.ActivityKey
		items, fundingLegs = Reconcile(items)
		if n := r.cache.Evict(fundingLegs); n > 0 {
			slog.Debug("evicted buy funding deposits from activity cache", "count", n)
		}
	}
	return Dedup(Sort(items)), nil
}

// Clear drops the cache. A fetch still in flight completes for its callers
// but its result is not cached, and later reads start a fresh fetch.
func (r *Repository) Clear() {
	r.cache.Clear()
}

func (r *Repository) load(ctx context.Context, force bool) ([]coincore.ActivityItem, error) {
	if !force {
		if items, ok := r.cache.Fresh(r.now(), r.ttl); ok {
			return items, nil
		}
	}

	gen := r.cache.Generation()
	key := flightKey + "/" + strconv.FormatUint(gen, 10)
	ch := r.flight.DoChan(key, func() (any, error) {
		// Callers that give up must not cancel the fetch others are waiting on.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.fetchNetwork(fetchCtx, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]coincore.ActivityItem), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Repository) fetchNetwork(ctx context.Context, gen uint64) ([]coincore.ActivityItem, error) {
	items, err := r.source.AllActivity(ctx)
	if err != nil {
		cached, _ := r.cache.Snapshot()
		if len(cached) > 0 {
			slog.Warn("activity fetch failed, serving cached activity", "cached", len(cached), "error", err)
			return cached, nil
		}
		return nil, fmt.Errorf("fetching activity: %w", err)
	}

	result, replaced := r.cache.Store(items, r.now(), gen)
	switch {
	case replaced:
	case len(items) > 0:
		slog.Debug("discarding activity fetched before the cache was cleared", "items", len(items))
	case len(result) > 0:
		slog.Warn("activity fetch returned nothing, keeping cached activity", "cached", len(result))
	}
	return result, nil
}
