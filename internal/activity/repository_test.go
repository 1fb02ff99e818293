package activity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/coincore"
)

type mockSource struct {
	mu    sync.Mutex
	items []coincore.ActivityItem
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (m *mockSource) AllActivity(ctx context.Context) ([]coincore.ActivityItem, error) {
	m.calls.Add(1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coincore.ActivityItem(nil), m.items...), m.err
}

func (m *mockSource) set(items []coincore.ActivityItem, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
	m.err = err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRepository(src Source) (*Repository, *clock) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	r := NewRepository(src, 30*time.Second, time.Second)
	r.now = clk.now
	return r, clk
}

var everyone = allWallets(walletAcc, tradingAcc, fiatAcc, interestAcc)

func TestFetchServesFreshCacheWithoutNetwork(t *testing.T) {
	src := &mockSource{items: []coincore.ActivityItem{chainItem("c1", 1), chainItem("c2", 2)}}
	r, clk := newTestRepository(src)
	ctx := context.Background()

	if _, err := r.Fetch(ctx, everyone, false); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	clk.advance(10 * time.Second)
	got, err := r.Fetch(ctx, everyone, false)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if n := src.calls.Load(); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
	if len(got) != 2 {
		t.Errorf("got %d items, want 2", len(got))
	}
}

func TestFetchRefreshesAfterTTLOrWhenForced(t *testing.T) {
	src := &mockSource{items: []coincore.ActivityItem{chainItem("c1", 1)}}
	r, clk := newTestRepository(src)
	ctx := context.Background()

	r.Fetch(ctx, everyone, false)
	r.Fetch(ctx, everyone, true)
	if n := src.calls.Load(); n != 2 {
		t.Errorf("after forced fetch calls = %d, want 2", n)
	}

	clk.advance(31 * time.Second)
	r.Fetch(ctx, everyone, false)
	if n := src.calls.Load(); n != 3 {
		t.Errorf("after expiry calls = %d, want 3", n)
	}
}

func TestFetchEmptyResultKeepsCache(t *testing.T) {
	src := &mockSource{items: []coincore.ActivityItem{chainItem("c1", 1), chainItem("c2", 2), chainItem("c3", 3)}}
	r, _ := newTestRepository(src)
	ctx := context.Background()

	r.Fetch(ctx, everyone, false)

	src.set(nil, nil)
	got, err := r.Fetch(ctx, everyone, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 || r.Cache().Len() != 3 {
		t.Errorf("got %d items, cache %d; want 3 and 3", len(got), r.Cache().Len())
	}

	src.set([]coincore.ActivityItem{chainItem("c9", 9)}, nil)
	got, _ = r.Fetch(ctx, everyone, true)
	if len(got) != 1 || r.Cache().Len() != 1 {
		t.Errorf("got %d items, cache %d; want 1 and 1", len(got), r.Cache().Len())
	}
}

func TestFetchCoalescesConcurrentMisses(t *testing.T) {
	src := &mockSource{
		items: []coincore.ActivityItem{chainItem("c1", 1)},
		gate:  make(chan struct{}),
	}
	r, _ := newTestRepository(src)
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Fetch(ctx, everyone, false)
			errs <- err
		}()
	}

	// let every caller reach the flight before releasing the fetch
	deadline := time.Now().Add(time.Second)
	for src.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Fetch: %v", err)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
}

func TestFetchFailureWithoutCache(t *testing.T) {
	boom := errors.New("boom")
	src := &mockSource{err: boom}
	r, _ := newTestRepository(src)
	ctx := context.Background()

	if _, err := r.Fetch(ctx, everyone, false); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	src.set([]coincore.ActivityItem{chainItem("c1", 1)}, nil)
	got, err := r.Fetch(ctx, everyone, false)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(got) != 1 || src.calls.Load() != 2 {
		t.Errorf("retry got %d items after %d calls", len(got), src.calls.Load())
	}
}

func TestFetchFailureFallsBackToCache(t *testing.T) {
	src := &mockSource{items: []coincore.ActivityItem{chainItem("c1", 1), chainItem("c2", 2)}}
	r, _ := newTestRepository(src)
	ctx := context.Background()

	r.Fetch(ctx, everyone, false)
	src.set(nil, errors.New("unreachable"))

	got, err := r.Fetch(ctx, everyone, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d items, want cached 2", len(got))
	}
}

func TestFetchEvictsFundingLegsFromCache(t *testing.T) {
	src := &mockSource{items: []coincore.ActivityItem{
		trade("T1", "D1", 10),
		fiatItem("D1", backend.TxTypeDeposit, 9),
		chainItem("c1", 8),
	}}
	r, _ := newTestRepository(src)
	ctx := context.Background()

	got, err := r.Fetch(ctx, everyone, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hasKey(got, coincore.KindFiat, "D1") {
		t.Error("funding deposit should be collapsed")
	}
	if r.Cache().Len() != 2 {
		t.Errorf("cache holds %d items, want 2 after eviction", r.Cache().Len())
	}

	fiatOnly, _ := r.Fetch(ctx, fiatAcc, false)
	if len(fiatOnly) != 0 {
		t.Errorf("fiat account still sees %v", keys(fiatOnly))
	}
}

func TestFetchSingleAccountSkipsReconciliation(t *testing.T) {
	src := &mockSource{items: []coincore.ActivityItem{
		trade("T1", "D1", 10),
		fiatItem("D1", backend.TxTypeDeposit, 9),
	}}
	r, _ := newTestRepository(src)

	got, err := r.Fetch(context.Background(), fiatAcc, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !hasKey(got, coincore.KindFiat, "D1") {
		t.Errorf("fiat account feed = %v, want D1", keys(got))
	}
}

func TestFetchCancelledCallerDoesNotCancelOthers(t *testing.T) {
	src := &mockSource{
		items: []coincore.ActivityItem{chainItem("c1", 1)},
		gate:  make(chan struct{}),
	}
	r, _ := newTestRepository(src)

	cancelled, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.Fetch(cancelled, everyone, false)
		first <- err
	}()
	for src.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := make(chan error, 1)
	go func() {
		_, err := r.Fetch(context.Background(), everyone, false)
		second <- err
	}()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller err = %v", err)
	}
	close(src.gate)
	if err := <-second; err != nil {
		t.Errorf("other caller err = %v", err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
}

func TestClear(t *testing.T) {
	src := &mockSource{items: []coincore.ActivityItem{chainItem("c1", 1)}}
	r, _ := newTestRepository(src)
	ctx := context.Background()

	r.Fetch(ctx, everyone, false)
	r.Clear()
	if r.Cache().Len() != 0 {
		t.Fatalf("cache not cleared")
	}
	r.Fetch(ctx, everyone, false)
	if n := src.calls.Load(); n != 2 {
		t.Errorf("network calls = %d, want 2", n)
	}
}

func TestClearDuringFetchDiscardsResult(t *testing.T) {
	src := &mockSource{
		items: []coincore.ActivityItem{chainItem("c1", 1)},
		gate:  make(chan struct{}),
	}
	r, _ := newTestRepository(src)
	ctx := context.Background()

	type result struct {
		items []coincore.ActivityItem
		err   error
	}
	before := make(chan result, 1)
	go func() {
		items, err := r.Fetch(ctx, everyone, false)
		before <- result{items, err}
	}()
	for src.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	r.Clear()

	after := make(chan result, 1)
	go func() {
		items, err := r.Fetch(ctx, everyone, false)
		after <- result{items, err}
	}()
	deadline := time.Now().Add(time.Second)
	for src.calls.Load() < 2 {
		if time.Now().After(deadline) {
			close(src.gate)
			t.Fatal("fetch after Clear joined the fetch of the cleared session")
		}
		time.Sleep(time.Millisecond)
	}

	src.set([]coincore.ActivityItem{chainItem("c2", 2), chainItem("c3", 3)}, nil)
	close(src.gate)

	if res := <-before; res.err != nil {
		t.Errorf("fetch started before Clear: %v", res.err)
	}
	res := <-after
	if res.err != nil {
		t.Fatalf("fetch started after Clear: %v", res.err)
	}
	if len(res.items) != 2 {
		t.Errorf("fetch after Clear got %v, want its own result", keys(res.items))
	}
	if n := r.Cache().Len(); n != 2 {
		t.Errorf("cache holds %d items, want 2 from the new session only", n)
	}
}

func TestClearBeforeInFlightFetchCompletesLeavesCacheEmpty(t *testing.T) {
	src := &mockSource{
		items: []coincore.ActivityItem{chainItem("c1", 1)},
		gate:  make(chan struct{}),
	}
	r, _ := newTestRepository(src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Fetch(context.Background(), everyone, false)
	}()
	for src.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	r.Clear()
	close(src.gate)
	<-done

	if n := r.Cache().Len(); n != 0 {
		t.Errorf("cache holds %d items after Clear, want 0", n)
	}
}
