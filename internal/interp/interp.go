// Package interp evaluates multi-channel series sampled on a shared time
// grid. The interpolation mode is chosen once, at construction, by picking
// one of two Strategy implementations: Linear or Spline.
package interp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/star/expseries/internal/timegrid"
	"github.com/star/expseries/internal/workers"
)

// ErrShape is returned when the sample buffer does not match grid × channels.
var ErrShape = errors.New("interp: sample buffer does not match grid length and channel count")

// Mode selects an interpolation strategy.
type Mode int

const (
	Linear Mode = iota
	Spline
)

func (m Mode) String() string {
	switch m {
	case Spline:
		return "spline"
	default:
		return "linear"
	}
}

// ParseMode parses "linear" or "spline" (case-insensitive). The empty string
// selects Linear.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "spline":
		return Spline, nil
	default:
		return Linear, fmt.Errorf("interp: unknown mode %q (want linear or spline)", s)
	}
}

// Strategy evaluates every channel of a series at a query time.
// Implementations are immutable and safe for concurrent use.
type Strategy interface {
	Mode() Mode
	Channels() int
	// Eval writes the value of every channel at t into dst[:Channels()] and
	// reports where t fell relative to the grid.
	Eval(t float64, dst []float64) timegrid.Edge
	// Derivative writes the time derivative of every channel at t into
	// dst[:Channels()].
	Derivative(t float64, dst []float64) timegrid.Edge
}

var (
	_ Strategy = (*linear)(nil)
	_ Strategy = (*spline)(nil)
)

// New builds a strategy over samples stored row-major as
// samples[timeIndex*channels + channel]. Spline fitting, one spline per
// channel, is spread over pool; a nil pool fits serially.
func New(ctx context.Context, mode Mode, grid *timegrid.Grid, samples []float64, channels int, pool *workers.Pool) (Strategy, error) {
	if channels < 1 || len(samples) != grid.Len()*channels {
		return nil, fmt.Errorf("%w: %d samples, %d times, %d channels", ErrShape, len(samples), grid.Len(), channels)
	}
	switch mode {
	case Spline:
		return newSpline(ctx, grid, samples, channels, pool)
	default:
		return newLinear(grid, samples, channels), nil
	}
}

func edgeOf(grid *timegrid.Grid, t float64) timegrid.Edge {
	switch {
	case t < grid.Start():
		return timegrid.Before
	case t > grid.End():
		return timegrid.After
	default:
		return timegrid.Inside
	}
}
