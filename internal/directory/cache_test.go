package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rentfree/internal/domain"
)

func countingCompute(calls *atomic.Int64, delay time.Duration) computeFunc {
	return func(_ context.Context, mint string) (*domain.Snapshot, error) {
		calls.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		return &domain.Snapshot{Mint: mint, CapturedAt: time.Now().UnixMilli()}, nil
	}
}

func TestSnapshotCache_MissThenHit(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	cache := NewSnapshotCache(time.Minute, countingCompute(&calls, 0))

	snap, cached, err := cache.Get(ctx, testMint)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cached {
		t.Error("first request should be a miss")
	}
	if snap.Mint != testMint {
		t.Errorf("expected mint %s, got %s", testMint, snap.Mint)
	}

	snap2, cached, err := cache.Get(ctx, testMint)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !cached {
		t.Error("second request should be a hit")
	}
	if snap2 != snap {
		t.Error("hit should return the identical snapshot")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 compute call, got %d", calls.Load())
	}
}

func TestSnapshotCache_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	cache := NewSnapshotCache(30*time.Second, countingCompute(&calls, 0))

	now := time.Now()
	cache.now = func() time.Time { return now }

	if _, _, err := cache.Get(ctx, testMint); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// Just under the TTL: still fresh.
	now = now.Add(29 * time.Second)
	if _, cached, _ := cache.Get(ctx, testMint); !cached {
		t.Error("expected hit just under TTL")
	}

	// At the TTL boundary: stale.
	now = now.Add(time.Second)
	if _, cached, _ := cache.Get(ctx, testMint); cached {
		t.Error("expected miss at TTL boundary")
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 compute calls, got %d", calls.Load())
	}
}

func TestSnapshotCache_MintChangeEvicts(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	cache := NewSnapshotCache(time.Minute, countingCompute(&calls, 0))

	otherMint := walletD

	if _, _, err := cache.Get(ctx, testMint); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, cached, _ := cache.Get(ctx, otherMint); cached {
		t.Error("different mint must not be served from cache")
	}

	// The slot now belongs to otherMint; the original is gone.
	if _, cached, _ := cache.Get(ctx, testMint); cached {
		t.Error("original mint should have been evicted")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 compute calls, got %d", calls.Load())
	}
}

func TestSnapshotCache_CoalescesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	cache := NewSnapshotCache(time.Minute, countingCompute(&calls, 50*time.Millisecond))

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := cache.Get(ctx, testMint); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent get failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected concurrent misses to coalesce into 1 compute call, got %d", calls.Load())
	}
}

func TestSnapshotCache_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	boom := errors.New("upstream down")

	cache := NewSnapshotCache(time.Minute, func(_ context.Context, _ string) (*domain.Snapshot, error) {
		calls.Add(1)
		return nil, boom
	})

	for i := 0; i < 2; i++ {
		_, cached, err := cache.Get(ctx, testMint)
		if !errors.Is(err, boom) {
			t.Fatalf("expected upstream error, got: %v", err)
		}
		if cached {
			t.Error("failure must not be reported as cached")
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected each failed request to recompute, got %d calls", calls.Load())
	}
}

func TestSnapshotCache_DefaultTTL(t *testing.T) {
	cache := NewSnapshotCache(0, countingCompute(&atomic.Int64{}, 0))
	if cache.ttl != DefaultCacheTTL {
		t.Errorf("expected default TTL %v, got %v", DefaultCacheTTL, cache.ttl)
	}
}
