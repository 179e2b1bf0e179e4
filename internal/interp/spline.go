package interp

import (
	"context"
	"fmt"

	gonuminterp "gonum.org/v1/gonum/interp"

	"github.com/star/expseries/internal/timegrid"
	"github.com/star/expseries/internal/workers"
)

// spline holds one natural cubic spline per channel. Outside the grid the
// value is whatever gonum's piecewise cubic returns there (the end values);
// no special handling is applied.
type spline struct {
	grid *timegrid.Grid
	fits []gonuminterp.NaturalCubic
}

func newSpline(ctx context.Context, grid *timegrid.Grid, samples []float64, channels int, pool *workers.Pool) (*spline, error) {
	xs := grid.Times()
	nt := len(xs)
	s := &spline{
		grid: grid,
		fits: make([]gonuminterp.NaturalCubic, channels),
	}

	err := pool.Each(ctx, channels, func(_ context.Context, c int) error {
		ys := make([]float64, nt)
		for i := range ys {
			ys[i] = samples[i*channels+c]
		}
		if err := s.fits[c].Fit(xs, ys); err != nil {
			return fmt.Errorf("fitting spline for channel %d: %w", c, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *spline) Mode() Mode    { return Spline }
func (s *spline) Channels() int { return len(s.fits) }

func (s *spline) Eval(t float64, dst []float64) timegrid.Edge {
	for c := range s.fits {
		dst[c] = s.fits[c].Predict(t)
	}
	return edgeOf(s.grid, t)
}

func (s *spline) Derivative(t float64, dst []float64) timegrid.Edge {
	for c := range s.fits {
		dst[c] = s.fits[c].PredictDerivative(t)
	}
	return edgeOf(s.grid, t)
}
