// Package timegrid holds the sample times shared by a series and resolves a
// query time to the bracketing interval and its linear weights.
package timegrid

import (
	"errors"
	"fmt"
	"math"
)

// evenTolerance is the fraction of the first gap by which any later gap may
// deviate before the grid is treated as unevenly spaced.
const evenTolerance = 0.1

var (
	// ErrTooFewSamples is returned for grids with fewer than two times.
	ErrTooFewSamples = errors.New("timegrid: at least two sample times are required")
	// ErrNotIncreasing is returned when times are not strictly increasing.
	ErrNotIncreasing = errors.New("timegrid: sample times must be strictly increasing")
)

// Edge reports where a query time fell relative to the grid.
type Edge int

const (
	Inside Edge = iota // within [Start, End]
	Before             // earlier than Start
	After              // later than End
)

func (e Edge) String() string {
	switch e {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "inside"
	}
}

// Grid is an immutable, strictly increasing sequence of sample times.
type Grid struct {
	times []float64
	step  float64 // first gap
	even  bool
}

// New validates times and builds a Grid. The slice is copied.
func New(times []float64) (*Grid, error) {
	if len(times) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewSamples, len(times))
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, fmt.Errorf("%w: t[%d]=%g, t[%d]=%g", ErrNotIncreasing, i-1, times[i-1], i, times[i])
		}
	}

	g := &Grid{
		times: append([]float64(nil), times...),
		step:  times[1] - times[0],
		even:  true,
	}
	for i := 2; i < len(times); i++ {
		if math.Abs(times[i]-times[i-1]-g.step) > g.step*evenTolerance {
			g.even = false
			break
		}
	}
	return g, nil
}

// Len returns the number of samples.
func (g *Grid) Len() int { return len(g.times) }

// At returns the i-th sample time.
func (g *Grid) At(i int) float64 { return g.times[i] }

// Start returns the first sample time.
func (g *Grid) Start() float64 { return g.times[0] }

// End returns the last sample time.
func (g *Grid) End() float64 { return g.times[len(g.times)-1] }

// Step returns the first gap, the nominal spacing of an even grid.
func (g *Grid) Step() float64 { return g.step }

// EvenlySpaced reports whether every gap is within 10% of the first gap.
func (g *Grid) EvenlySpaced() bool { return g.even }

// Times returns a copy of the sample times.
func (g *Grid) Times() []float64 {
	return append([]float64(nil), g.times...)
}

// Index returns the raw interval index for t without clamping: negative
// before the first sample, possibly >= Len()-1 after the last one.
//
// Even grids divide by the nominal step. Uneven grids scan forward from the
// start for the last sample not after t.
func (g *Grid) Index(t float64) int {
	if g.even {
		return int(math.Floor((t - g.times[0]) / g.step))
	}
	if t < g.times[0] {
		return -1
	}
	i := 0
	for i+1 < len(g.times) && g.times[i+1] <= t {
		i++
	}
	return i
}

// Position is a query time resolved against the grid.
type Position struct {
	Index  int     // left sample of the bracketing interval, in [0, Len()-2]
	X1, X2 float64 // weights of samples Index and Index+1
	Edge   Edge    // where the unclamped query time fell
}

// Locate resolves t to a bracketing interval. Times outside [Start, End]
// are clamped to the nearest end, so the weights never extrapolate; Edge
// records that clamping happened.
func (g *Grid) Locate(t float64) Position {
	pos := Position{Edge: Inside}
	switch {
	case t < g.Start():
		pos.Edge = Before
		t = g.Start()
	case t > g.End():
		pos.Edge = After
		t = g.End()
	}

	i := min(max(g.Index(t), 0), len(g.times)-2)
	dt := g.step
	if !g.even {
		dt = g.times[i+1] - g.times[i]
	}

	pos.Index = i
	pos.X1 = (g.times[i+1] - t) / dt
	pos.X2 = (t - g.times[i]) / dt
	return pos
}
