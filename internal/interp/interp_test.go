package interp

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/expseries/internal/timegrid"
	"github.com/star/expseries/internal/workers"
)

func grid(t *testing.T, times ...float64) *timegrid.Grid {
	t.Helper()
	g, err := timegrid.New(times)
	require.NoError(t, err)
	return g
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Linear, false},
		{"linear", Linear, false},
		{"Spline", Spline, false},
		{" spline ", Spline, false},
		{"cubic", Linear, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Mode {
	t.Helper()
	m, err := ParseMode(s)
	require.NoError(t, err)
	return m
}

func TestNewShapeMismatch(t *testing.T) {
	g := grid(t, 0, 1, 2)
	_, err := New(context.Background(), Linear, g, make([]float64, 5), 2, nil)
	assert.True(t, errors.Is(err, ErrShape))

	_, err = New(context.Background(), Spline, g, nil, 0, nil)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestLinearEval(t *testing.T) {
	// Two channels: c0 = t, c1 = 10 - 2t.
	g := grid(t, 0, 1, 2, 3)
	samples := []float64{
		0, 10,
		1, 8,
		2, 6,
		3, 4,
	}
	s, err := New(context.Background(), Linear, g, samples, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, Linear, s.Mode())
	assert.Equal(t, 2, s.Channels())

	tests := []struct {
		t     float64
		want  [2]float64
		edge  timegrid.Edge
		dwant [2]float64
	}{
		{0, [2]float64{0, 10}, timegrid.Inside, [2]float64{1, -2}},
		{1.25, [2]float64{1.25, 7.5}, timegrid.Inside, [2]float64{1, -2}},
		{3, [2]float64{3, 4}, timegrid.Inside, [2]float64{1, -2}},
		{-4, [2]float64{0, 10}, timegrid.Before, [2]float64{1, -2}},
		{9, [2]float64{3, 4}, timegrid.After, [2]float64{1, -2}},
	}
	dst := make([]float64, 2)
	for _, tt := range tests {
		edge := s.Eval(tt.t, dst)
		assert.Equal(t, tt.edge, edge, "edge at t=%g", tt.t)
		assert.InDelta(t, tt.want[0], dst[0], 1e-12, "c0 at t=%g", tt.t)
		assert.InDelta(t, tt.want[1], dst[1], 1e-12, "c1 at t=%g", tt.t)

		s.Derivative(tt.t, dst)
		assert.InDelta(t, tt.dwant[0], dst[0], 1e-12)
		assert.InDelta(t, tt.dwant[1], dst[1], 1e-12)
	}
}

func TestLinearCopiesSamples(t *testing.T) {
	samples := []float64{1, 2}
	s, err := New(context.Background(), Linear, grid(t, 0, 1), samples, 1, nil)
	require.NoError(t, err)
	samples[0] = 100

	dst := make([]float64, 1)
	s.Eval(0, dst)
	assert.Equal(t, 1.0, dst[0])
}

func TestSplineReproducesKnots(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4, 5}
	samples := make([]float64, 0, len(times)*3)
	for _, x := range times {
		samples = append(samples, math.Sin(x), x*x, 7)
	}
	pool := workers.NewPool(3, nil)
	s, err := New(context.Background(), Spline, grid(t, times...), samples, 3, pool)
	require.NoError(t, err)
	assert.Equal(t, Spline, s.Mode())

	dst := make([]float64, 3)
	for i, x := range times {
		edge := s.Eval(x, dst)
		assert.Equal(t, timegrid.Inside, edge)
		assert.InDelta(t, samples[i*3], dst[0], 1e-9)
		assert.InDelta(t, samples[i*3+1], dst[1], 1e-9)
		assert.InDelta(t, 7, dst[2], 1e-12)
	}

	s.Derivative(2.5, dst)
	assert.InDelta(t, 0, dst[2], 1e-12)
}

func TestSplineLinearDataIsExact(t *testing.T) {
	// A natural cubic through collinear points is the line itself.
	times := []float64{0, 0.5, 2, 3.5, 4}
	samples := make([]float64, len(times))
	for i, x := range times {
		samples[i] = 3*x - 1
	}
	s, err := New(context.Background(), Spline, grid(t, times...), samples, 1, nil)
	require.NoError(t, err)

	dst := make([]float64, 1)
	s.Eval(1.3, dst)
	assert.InDelta(t, 3*1.3-1, dst[0], 1e-9)
	s.Derivative(1.3, dst)
	assert.InDelta(t, 3, dst[0], 1e-9)
}

func TestSplineEdges(t *testing.T) {
	s, err := New(context.Background(), Spline, grid(t, 0, 1, 2), []float64{0, 1, 4}, 1, nil)
	require.NoError(t, err)

	dst := make([]float64, 1)
	assert.Equal(t, timegrid.Before, s.Eval(-1, dst))
	assert.Equal(t, timegrid.After, s.Eval(3, dst))
}
