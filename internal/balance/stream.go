package balance

import (
	"context"
	"log/slog"
	"time"
)

// CombineLatest joins two streams. Once both have produced a value, every new
// value on either side emits join(latestA, latestB). The output closes when ctx
// is done or both inputs are closed. Results for which join reports false are
// skipped.
func CombineLatest[A, B, T any](ctx context.Context, as <-chan A, bs <-chan B, join func(A, B) (T, bool)) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)

		var (
			a            A
			b            B
			haveA, haveB bool
		)
		for as != nil || bs != nil {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-as:
				if !ok {
					as = nil
					continue
				}
				a, haveA = v, true
			case v, ok := <-bs:
				if !ok {
					bs = nil
					continue
				}
				b, haveB = v, true
			}
			if !haveA || !haveB {
				continue
			}
			t, ok := join(a, b)
			if !ok {
				continue
			}
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type indexed[T any] struct {
	i int
	v T
}

// CombineLatestAll is CombineLatest over any number of streams of one type.
// It emits a fresh snapshot slice once every input has produced a value. With
// no inputs it emits a single empty snapshot.
func CombineLatestAll[T any](ctx context.Context, ins []<-chan T) <-chan []T {
	out := make(chan []T)
	if len(ins) == 0 {
		go func() {
			defer close(out)
			select {
			case out <- []T{}:
			case <-ctx.Done():
			}
		}()
		return out
	}

	merged := make(chan indexed[T])
	done := make(chan struct{}, len(ins))
	for i, in := range ins {
		go func() {
			defer func() { done <- struct{}{} }()
			for v := range in {
				select {
				case merged <- indexed[T]{i: i, v: v}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(out)

		latest := make([]T, len(ins))
		seen := make([]bool, len(ins))
		missing := len(ins)
		open := len(ins)
		for open > 0 {
			select {
			case <-ctx.Done():
				return
			case <-done:
				open--
			case iv := <-merged:
				if !seen[iv.i] {
					seen[iv.i] = true
					missing--
				}
				latest[iv.i] = iv.v
				if missing > 0 {
					continue
				}
				snapshot := append([]T(nil), latest...)
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Poll calls fetch immediately and then every interval, emitting each result
// that differs from the previous one according to same. Failed fetches are
// logged and skipped. The output closes when ctx is done.
func Poll[T any](ctx context.Context, interval time.Duration, fetch func(context.Context) (T, error), same func(prev, next T) bool) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var (
			prev    T
			emitted bool
		)
		for {
			v, err := fetch(ctx)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				slog.Warn("balance poll failed", "error", err)
			case emitted && same != nil && same(prev, v):
			default:
				select {
				case out <- v:
					prev, emitted = v, true
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

// Just emits v once and keeps the stream open until ctx is done.
func Just[T any](ctx context.Context, v T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		select {
		case out <- v:
		case <-ctx.Done():
			return
		}
		<-ctx.Done()
	}()
	return out
}

// FallbackAfter forwards in, emitting fallback first when in produces nothing
// within grace or closes without a value. The output closes when in closes or
// ctx is done.
func FallbackAfter[T any](ctx context.Context, in <-chan T, fallback T, grace time.Duration) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)

		send := func(v T) bool {
			select {
			case out <- v:
				return true
			case <-ctx.Done():
				return false
			}
		}

		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case v, ok := <-in:
			if !ok {
				send(fallback)
				return
			}
			if !send(v) {
				return
			}
		case <-timer.C:
			if !send(fallback) {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok || !send(v) {
					return
				}
			}
		}
	}()
	return out
}
