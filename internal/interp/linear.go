package interp

import "github.com/star/expseries/internal/timegrid"

// linear blends the two samples bracketing the query time. Query times
// outside the grid are clamped to the first or last sample.
type linear struct {
	grid     *timegrid.Grid
	samples  []float64
	channels int
}

func newLinear(grid *timegrid.Grid, samples []float64, channels int) *linear {
	return &linear{
		grid:     grid,
		samples:  append([]float64(nil), samples...),
		channels: channels,
	}
}

func (l *linear) Mode() Mode    { return Linear }
func (l *linear) Channels() int { return l.channels }

func (l *linear) Eval(t float64, dst []float64) timegrid.Edge {
	pos := l.grid.Locate(t)
	lo := l.samples[pos.Index*l.channels : (pos.Index+1)*l.channels]
	hi := l.samples[(pos.Index+1)*l.channels : (pos.Index+2)*l.channels]
	for c := range lo {
		dst[c] = pos.X1*lo[c] + pos.X2*hi[c]
	}
	return pos.Edge
}

// Derivative returns the slope of the bracketing interval.
func (l *linear) Derivative(t float64, dst []float64) timegrid.Edge {
	pos := l.grid.Locate(t)
	dt := l.grid.At(pos.Index+1) - l.grid.At(pos.Index)
	lo := l.samples[pos.Index*l.channels : (pos.Index+1)*l.channels]
	hi := l.samples[(pos.Index+1)*l.channels : (pos.Index+2)*l.channels]
	for c := range lo {
		dst[c] = (hi[c] - lo[c]) / dt
	}
	return pos.Edge
}
