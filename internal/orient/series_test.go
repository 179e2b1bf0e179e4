package orient

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/expseries/internal/interp"
	"github.com/star/expseries/internal/workers"
)

// countingHandler counts WARN records.
type countingHandler struct {
	mu    sync.Mutex
	warns int
}

func (h *countingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *countingHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelWarn {
		h.mu.Lock()
		h.warns++
		h.mu.Unlock()
	}
	return nil
}

func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.warns
}

// build fills a series from fn, sampled at times.
func build(t *testing.T, cfg Config, times []float64, fn func(t float64) Record) (*Series, *countingHandler) {
	t.Helper()
	h := &countingHandler{}
	b := NewBuilder(cfg, slog.New(h))
	for _, tm := range times {
		rec := fn(tm)
		rec.T = tm
		b.Add(rec)
	}
	s, err := b.Build(context.Background(), workers.NewPool(2, nil))
	require.NoError(t, err)
	return s, h
}

func assertVec(t *testing.T, want, got [3]float64, tol float64) {
	t.Helper()
	for k := range want {
		assert.InDelta(t, want[k], got[k], tol, "component %d: want %v got %v", k, want, got)
	}
}

func TestInertial(t *testing.T) {
	s := Inertial()
	assert.True(t, s.Inertial())
	for _, tm := range []float64{-100, 0, 3.5, 1e9} {
		assert.Equal(t, [3]float64{}, s.CenterAt(tm))
		assert.Equal(t, [3]float64{}, s.CenterVelocityAt(tm))
	}
	assert.True(t, s.Info().Inertial)
	assert.Nil(t, s.Times())
}

func TestLinearInterpolation(t *testing.T) {
	s, h := build(t, Config{}, []float64{0, 1, 2, 3}, func(tm float64) Record {
		return Record{Pos: [3]float64{10 + 10*tm, -tm, 5}}
	})

	assertVec(t, [3]float64{25, -1.5, 5}, s.CenterAt(1.5), 1e-12)
	assertVec(t, [3]float64{10, 0, 5}, s.CenterAt(0), 1e-12)
	assertVec(t, [3]float64{40, -3, 5}, s.CenterAt(3), 1e-12)
	assert.Equal(t, 0, h.count())
}

func TestLinearUnevenGrid(t *testing.T) {
	times := []float64{0, 1, 3, 3.5, 7}
	s, _ := build(t, Config{}, times, func(tm float64) Record {
		return Record{Pos: [3]float64{2 * tm, tm * tm, 0}}
	})
	require.False(t, s.Info().EvenlySpaced)

	// Between 3 and 3.5: x is exact, y is the chord of t².
	got := s.CenterAt(3.25)
	assert.InDelta(t, 6.5, got[0], 1e-12)
	assert.InDelta(t, (9+12.25)/2, got[1], 1e-12)

	got = s.CenterAt(5)
	assert.InDelta(t, 10, got[0], 1e-12)
}

func TestClampAfterEnd(t *testing.T) {
	s, h := build(t, Config{}, []float64{0, 1, 2, 3}, func(tm float64) Record {
		return Record{Pos: [3]float64{tm, 2 * tm, 3 * tm}}
	})

	last := s.CenterAt(3)
	require.Equal(t, 0, h.count())

	far := s.CenterAt(1e6)
	assert.Equal(t, last, far)
	assert.Equal(t, 1, h.count(), "exactly one warning per clamped query")
}

func TestStateAtWarnsOncePerQuery(t *testing.T) {
	s, h := build(t, Config{}, []float64{0, 1, 2, 3}, func(tm float64) Record {
		return Record{Pos: [3]float64{tm, 2 * tm, 3 * tm}}
	})

	pos, vel := s.StateAt(1.5)
	assertVec(t, [3]float64{1.5, 3, 4.5}, pos, 1e-12)
	assertVec(t, [3]float64{1, 2, 3}, vel, 1e-12)
	require.Equal(t, 0, h.count())

	pos, vel = s.StateAt(50)
	assert.Equal(t, s.CenterAt(3), pos)
	assertVec(t, [3]float64{1, 2, 3}, vel, 1e-12)
	assert.Equal(t, 1, h.count(), "one warning for position and velocity together")

	s.StateAt(-50)
	assert.Equal(t, 2, h.count())
}

func TestExtrapolateNoneWithoutVelocityClamps(t *testing.T) {
	s, h := build(t, Config{}, []float64{0, 1, 2}, func(tm float64) Record {
		return Record{Pos: [3]float64{1 + tm, 0, 0}}
	})

	assertVec(t, [3]float64{1, 0, 0}, s.CenterAt(-5), 1e-12)
	assert.Equal(t, 1, h.count())
}

func TestExtrapolateNoneUsesFirstVelocity(t *testing.T) {
	cfg := Config{HasVelocity: true}
	s, h := build(t, cfg, []float64{0, 1, 2, 3}, func(tm float64) Record {
		return Record{
			Pos: [3]float64{10 + 2*tm, 0, -tm},
			Vel: [3]float64{2, 0, -1},
		}
	})

	assertVec(t, [3]float64{8, 0, 1}, s.CenterAt(-1), 1e-12)
	assertVec(t, [3]float64{2, 0, -1}, s.CenterVelocityAt(-7), 1e-12)
	assert.Equal(t, 0, h.count())
}

func TestExtrapolateVelocityRegression(t *testing.T) {
	cfg := Config{Extrapolation: ExtrapolateVelocity}
	s, _ := build(t, cfg, []float64{0, 1, 2, 3, 4}, func(tm float64) Record {
		return Record{Pos: [3]float64{3*tm + 7, -tm, 2}}
	})

	// x(−2) = x0 + Δt·slope = 7 + (−2)(3).
	assertVec(t, [3]float64{1, 2, 2}, s.CenterAt(-2), 1e-9)
	assertVec(t, [3]float64{3, -1, 0}, s.CenterVelocityAt(-2), 1e-9)
}

func TestExtrapolateAccelerated(t *testing.T) {
	cfg := Config{Extrapolation: ExtrapolateAccelerated, HasVelocity: true}
	s, _ := build(t, cfg, []float64{0, 1, 2, 3}, func(tm float64) Record {
		// Velocity u = 2t + 1 (slope 2, intercept 1).
		return Record{
			Pos: [3]float64{tm*tm + tm, 0, 0},
			Vel: [3]float64{2*tm + 1, 0, 0},
		}
	})

	// x(−1) = 0 + (−1)·(2·(−1) + 1) = 1.
	assertVec(t, [3]float64{1, 0, 0}, s.CenterAt(-1), 1e-9)
	// u(−1) = 2·(−1) + 1.
	assertVec(t, [3]float64{-1, 0, 0}, s.CenterVelocityAt(-1), 1e-9)
}

func TestAcceleratedNeedsVelocity(t *testing.T) {
	b := NewBuilder(Config{Extrapolation: ExtrapolateAccelerated}, nil)
	b.Add(Record{T: 0}).Add(Record{T: 1})
	_, err := b.Build(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrNeedsVelocity))
}

func TestDegenerateRegressionFailsBuild(t *testing.T) {
	b := NewBuilder(Config{Extrapolation: ExtrapolateVelocity, FitPoints: 1}, nil)
	b.Add(Record{T: 0}).Add(Record{T: 1}).Add(Record{T: 2})
	_, err := b.Build(context.Background(), nil)
	assert.Error(t, err)
}

func TestBuildTooFewRecords(t *testing.T) {
	b := NewBuilder(Config{}, nil)
	b.Add(Record{T: 0})
	_, err := b.Build(context.Background(), nil)
	assert.Error(t, err)
}

func TestVelocityColumnsInterpolated(t *testing.T) {
	cfg := Config{HasVelocity: true}
	s, h := build(t, cfg, []float64{0, 2, 4}, func(tm float64) Record {
		return Record{Vel: [3]float64{tm, 1, -tm}}
	})

	assertVec(t, [3]float64{3, 1, -3}, s.CenterVelocityAt(3), 1e-12)
	assertVec(t, [3]float64{4, 1, -4}, s.CenterVelocityAt(10), 1e-12)
	assert.Equal(t, 1, h.count())
}

func TestDerivedVelocity(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	fn := func(tm float64) Record { return Record{Pos: [3]float64{2 * tm, -tm, 4}} }

	for _, mode := range []interp.Mode{interp.Linear, interp.Spline} {
		t.Run(mode.String(), func(t *testing.T) {
			s, _ := build(t, Config{Mode: mode}, times, fn)
			assertVec(t, [3]float64{2, -1, 0}, s.CenterVelocityAt(1.7), 1e-9)
		})
	}
}

func TestSplineMode(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4, 5}
	s, h := build(t, Config{Mode: interp.Spline, HasVelocity: true}, times, func(tm float64) Record {
		return Record{
			Pos: [3]float64{math.Sin(tm), 3*tm - 1, 0},
			Vel: [3]float64{math.Cos(tm), 3, 0},
		}
	})

	for _, tm := range times {
		got := s.CenterAt(tm)
		assert.InDelta(t, math.Sin(tm), got[0], 1e-9)
	}
	assert.InDelta(t, 3*2.4-1, s.CenterAt(2.4)[1], 1e-9)
	assert.InDelta(t, 3, s.CenterVelocityAt(2.4)[1], 1e-9)

	// Spline queries never warn, even outside the window.
	s.CenterAt(-3)
	s.CenterAt(30)
	assert.Equal(t, 0, h.count())
}

func TestInfo(t *testing.T) {
	cfg := Config{Mode: interp.Spline, Extrapolation: ExtrapolateVelocity}
	s, _ := build(t, cfg, []float64{1, 2, 3}, func(tm float64) Record {
		return Record{Pos: [3]float64{tm, 0, 0}}
	})

	assert.Equal(t, Info{
		Samples:       3,
		Start:         1,
		End:           3,
		EvenlySpaced:  true,
		Mode:          "spline",
		Extrapolation: "velocity",
	}, s.Info())
	assert.Equal(t, []float64{1, 2, 3}, s.Times())
}

func TestConcurrentQueries(t *testing.T) {
	s, _ := build(t, Config{}, []float64{0, 1, 2, 3}, func(tm float64) Record {
		return Record{Pos: [3]float64{tm, tm, tm}}
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tm := float64(i%30) / 10
				got := s.CenterAt(tm)
				if math.Abs(got[0]-tm) > 1e-12 {
					t.Errorf("goroutine %d: CenterAt(%v) = %v", g, tm, got)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestParseExtrapolation(t *testing.T) {
	for _, e := range []Extrapolation{ExtrapolateNone, ExtrapolateVelocity, ExtrapolateAccelerated} {
		got, err := ParseExtrapolation(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
	_, err := ParseExtrapolation("backwards")
	assert.Error(t, err)
}
