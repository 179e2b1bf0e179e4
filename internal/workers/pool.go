// Package workers provides a bounded goroutine pool for the data-parallel
// parts of the library: fitting one spline per coefficient cell and chunking
// batched coordinate transforms.
package workers

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool runs work on at most Size() goroutines at a time.
// A nil *Pool is valid and runs everything serially on the caller's goroutine.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool with the given number of workers.
// workers < 1 selects runtime.NumCPU().
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		workers: workers,
		logger:  logger,
	}
}

// Size returns the worker count (1 for a nil pool).
func (p *Pool) Size() int {
	if p == nil {
		return 1
	}
	return p.workers
}

// Each calls fn(ctx, i) for every i in [0, n). The first error cancels the
// remaining work and is returned.
func (p *Pool) Each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	if p == nil || p.workers == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Chunks splits [0, n) into at most Size() contiguous ranges and calls
// fn(lo, hi) for each range concurrently. Ranges never overlap, so fn may
// write into disjoint sub-slices of shared output buffers.
func (p *Pool) Chunks(ctx context.Context, n int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	parts := p.Size()
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts

	err := p.Each(ctx, parts, func(_ context.Context, k int) error {
		lo := k * size
		hi := min(lo+size, n)
		if lo >= hi {
			return nil
		}
		return fn(lo, hi)
	})
	if err != nil && p != nil && p.logger != nil {
		p.logger.Debug("chunked work aborted", "items", n, "chunks", parts, "error", err)
	}
	return err
}
