// Package worker runs the periodic background jobs of the server.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// loop runs job immediately and then on every tick until ctx is done.
func loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	slog.Info("worker starting", "worker", name, "interval", interval)

	run := func(first bool) {
		start := time.Now()
		if err := job(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("worker run failed", "worker", name, "initial", first, "error", err)
			return
		}
		slog.Debug("worker run completed", "worker", name, "took", time.Since(start))
	}

	run(true)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker shutting down", "worker", name)
			return
		case <-ticker.C:
			run(false)
		}
	}
}
