package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/coincore/internal/coincore"
)

// Feed is the activity repository.
type Feed interface {
	Fetch(ctx context.Context, scope coincore.Account, force bool) ([]coincore.ActivityItem, error)
}

// Wallets returns the group of every active account.
type Wallets interface {
	AllWallets(ctx context.Context) (*coincore.Group, error)
}

// AfterRefreshHook is called after each successful refresh.
type AfterRefreshHook interface {
	Export(ctx context.Context) error
}

// RefreshWorker keeps the activity cache warm by forcing a network fetch of
// the all-wallets feed on every tick.
type RefreshWorker struct {
	feed     Feed
	wallets  Wallets
	interval time.Duration
	hook     AfterRefreshHook // optional
}

// NewRefreshWorker creates a new RefreshWorker with an optional post-refresh hook.
func NewRefreshWorker(feed Feed, wallets Wallets, interval time.Duration, hook AfterRefreshHook) *RefreshWorker {
	return &RefreshWorker{feed: feed, wallets: wallets, interval: interval, hook: hook}
}

// Run blocks until the context is cancelled.
func (w *RefreshWorker) Run(ctx context.Context) {
	loop(ctx, "activity-refresh", w.interval, w.refresh)
}

func (w *RefreshWorker) refresh(ctx context.Context) error {
	group, err := w.wallets.AllWallets(ctx)
	if err != nil {
		return fmt.Errorf("loading wallets: %w", err)
	}
	items, err := w.feed.Fetch(ctx, group, true)
	if err != nil {
		return fmt.Errorf("refreshing activity: %w", err)
	}
	slog.Info("activity refreshed", "items", len(items))

	if w.hook == nil {
		return nil
	}
	if err := w.hook.Export(ctx); err != nil {
		slog.Error("refresh hook failed", "error", err)
	}
	return nil
}
