package workers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestEachVisitsEveryIndex(t *testing.T) {
	for _, workers := range []int{1, 2, 7} {
		p := NewPool(workers, testLogger())
		seen := make([]int32, 100)
		err := p.Each(context.Background(), len(seen), func(_ context.Context, i int) error {
			atomic.AddInt32(&seen[i], 1)
			return nil
		})
		if err != nil {
			t.Fatalf("workers=%d: unexpected error: %v", workers, err)
		}
		for i, n := range seen {
			if n != 1 {
				t.Errorf("workers=%d: index %d visited %d times, want 1", workers, i, n)
			}
		}
	}
}

func TestEachReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(4, testLogger())
	err := p.Each(context.Background(), 50, func(_ context.Context, i int) error {
		if i == 17 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestEachCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := NewPool(1, testLogger()).Each(ctx, 10, func(_ context.Context, i int) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("fn called %d times after cancel, want 0", calls.Load())
	}
}

func TestChunksCoverRange(t *testing.T) {
	tests := []struct {
		workers, n int
	}{
		{1, 10}, {3, 10}, {4, 4}, {8, 3}, {5, 101},
	}
	for _, tt := range tests {
		p := NewPool(tt.workers, testLogger())
		out := make([]int32, tt.n)
		err := p.Chunks(context.Background(), tt.n, func(lo, hi int) error {
			for i := lo; i < hi; i++ {
				atomic.AddInt32(&out[i], 1)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("workers=%d n=%d: %v", tt.workers, tt.n, err)
		}
		for i, v := range out {
			if v != 1 {
				t.Errorf("workers=%d n=%d: index %d covered %d times", tt.workers, tt.n, i, v)
			}
		}
	}
}

func TestNilPoolRunsSerially(t *testing.T) {
	var p *Pool
	if p.Size() != 1 {
		t.Errorf("nil pool size = %d, want 1", p.Size())
	}
	sum := 0
	if err := p.Chunks(context.Background(), 5, func(lo, hi int) error {
		sum += hi - lo
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if sum != 5 {
		t.Errorf("covered %d items, want 5", sum)
	}
}
