package timegrid

import (
	"errors"
	"math"
	"testing"
)

func mustGrid(t *testing.T, times []float64) *Grid {
	t.Helper()
	g, err := New(times)
	if err != nil {
		t.Fatalf("New(%v): %v", times, err)
	}
	return g
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
		want  error
	}{
		{"empty", nil, ErrTooFewSamples},
		{"single", []float64{1}, ErrTooFewSamples},
		{"repeated", []float64{0, 1, 1, 2}, ErrNotIncreasing},
		{"decreasing", []float64{0, 2, 1}, ErrNotIncreasing},
		{"nan", []float64{0, math.NaN(), 2}, ErrNotIncreasing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.times)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEvenlySpaced(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
		want  bool
	}{
		{"exact", []float64{0, 1, 2, 3}, true},
		{"within 10%", []float64{0, 1, 2.05, 2.97}, true},
		{"two samples", []float64{5, 9}, true},
		{"gap too long", []float64{0, 1, 2, 3.2}, false},
		{"gap too short", []float64{0, 1, 1.8, 2.8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustGrid(t, tt.times).EvenlySpaced(); got != tt.want {
				t.Errorf("EvenlySpaced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIndex(t *testing.T) {
	even := mustGrid(t, []float64{0, 1, 2, 3})
	uneven := mustGrid(t, []float64{0, 1, 3, 7})

	tests := []struct {
		name string
		g    *Grid
		t    float64
		want int
	}{
		{"even inside", even, 1.5, 1},
		{"even on sample", even, 2, 2},
		{"even before", even, -0.25, -1},
		{"even far before", even, -3.5, -4},
		{"even after", even, 4.5, 4},
		{"uneven inside", uneven, 5, 2},
		{"uneven on sample", uneven, 3, 2},
		{"uneven before", uneven, -0.1, -1},
		{"uneven after", uneven, 100, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.Index(tt.t); got != tt.want {
				t.Errorf("Index(%v) = %d, want %d", tt.t, got, tt.want)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	even := mustGrid(t, []float64{0, 1, 2, 3})
	uneven := mustGrid(t, []float64{0, 1, 3, 7})

	tests := []struct {
		name   string
		g      *Grid
		t      float64
		index  int
		x1, x2 float64
		edge   Edge
	}{
		{"midpoint", even, 1.5, 1, 0.5, 0.5, Inside},
		{"last sample", even, 3, 2, 0, 1, Inside},
		{"first sample", even, 0, 0, 1, 0, Inside},
		{"after end clamps", even, 40, 2, 0, 1, After},
		{"before start clamps", even, -2, 0, 1, 0, Before},
		{"uneven local dt", uneven, 5, 2, 0.5, 0.5, Inside},
		{"uneven quarter", uneven, 1.5, 1, 0.75, 0.25, Inside},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := tt.g.Locate(tt.t)
			if pos.Index != tt.index || pos.Edge != tt.edge {
				t.Errorf("Locate(%v) = index %d edge %v, want index %d edge %v", tt.t, pos.Index, pos.Edge, tt.index, tt.edge)
			}
			if math.Abs(pos.X1-tt.x1) > 1e-12 || math.Abs(pos.X2-tt.x2) > 1e-12 {
				t.Errorf("Locate(%v) weights = (%v, %v), want (%v, %v)", tt.t, pos.X1, pos.X2, tt.x1, tt.x2)
			}
		})
	}
}

func TestTimesIsCopy(t *testing.T) {
	src := []float64{0, 1, 2}
	g := mustGrid(t, src)
	src[0] = 99
	out := g.Times()
	out[1] = 99
	if g.At(0) != 0 || g.At(1) != 1 {
		t.Error("grid shares storage with caller slices")
	}
}

func TestEdgeString(t *testing.T) {
	if Before.String() != "before" || After.String() != "after" || Inside.String() != "inside" {
		t.Error("unexpected Edge strings")
	}
}
