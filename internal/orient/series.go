// Package orient interpolates the moving center of a reference frame from
// a table of timestamped positions and, optionally, velocities.
//
// A Series is assembled once through a Builder and is immutable afterwards;
// CenterAt and CenterVelocityAt are safe for concurrent use.
package orient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/expseries/internal/interp"
	"github.com/star/expseries/internal/metrics"
	"github.com/star/expseries/internal/regression"
	"github.com/star/expseries/internal/timegrid"
	"github.com/star/expseries/internal/workers"
)

const seriesName = "orientation"

// ErrNeedsVelocity is returned when accelerated extrapolation is requested
// for samples without velocity columns.
var ErrNeedsVelocity = errors.New("orient: accelerated extrapolation requires velocity columns")

// Record is one row of an orientation table. Vel is ignored unless the
// builder's Config has HasVelocity set.
type Record struct {
	T   float64
	Pos [3]float64
	Vel [3]float64
}

// Builder accumulates records and builds an immutable Series.
type Builder struct {
	cfg     Config
	logger  *slog.Logger
	records []Record
}

// NewBuilder creates a Builder for the given configuration.
func NewBuilder(cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Add appends a record. Records must be added in increasing time order.
func (b *Builder) Add(r Record) *Builder {
	b.records = append(b.records, r)
	return b
}

// Len returns the number of records added so far.
func (b *Builder) Len() int { return len(b.records) }

// Build validates the records, fits the interpolation strategy and computes
// the pre-start extrapolation parameters.
func (b *Builder) Build(ctx context.Context, pool *workers.Pool) (*Series, error) {
	start := time.Now()
	cfg := b.cfg
	if cfg.Extrapolation == ExtrapolateAccelerated && !cfg.HasVelocity {
		return nil, ErrNeedsVelocity
	}

	n := len(b.records)
	times := make([]float64, n)
	var pos, vel [3][]float64
	for k := range 3 {
		pos[k] = make([]float64, n)
		if cfg.HasVelocity {
			vel[k] = make([]float64, n)
		}
	}
	posFlat := make([]float64, 0, 3*n)
	var velFlat []float64
	if cfg.HasVelocity {
		velFlat = make([]float64, 0, 3*n)
	}
	for i, r := range b.records {
		times[i] = r.T
		posFlat = append(posFlat, r.Pos[:]...)
		for k := range 3 {
			pos[k][i] = r.Pos[k]
		}
		if cfg.HasVelocity {
			velFlat = append(velFlat, r.Vel[:]...)
			for k := range 3 {
				vel[k][i] = r.Vel[k]
			}
		}
	}

	grid, err := timegrid.New(times)
	if err != nil {
		return nil, fmt.Errorf("building orientation grid: %w", err)
	}

	s := &Series{
		cfg:    cfg,
		logger: b.logger,
		grid:   grid,
		pos0:   b.records[0].Pos,
	}
	s.position, err = interp.New(ctx, cfg.Mode, grid, posFlat, 3, pool)
	if err != nil {
		return nil, fmt.Errorf("building orientation positions: %w", err)
	}
	if cfg.HasVelocity {
		s.velocity, err = interp.New(ctx, cfg.Mode, grid, velFlat, 3, pool)
		if err != nil {
			return nil, fmt.Errorf("building orientation velocities: %w", err)
		}
	}

	switch {
	case cfg.Extrapolation == ExtrapolateVelocity:
		fit, err := regression.Fit(times, pos, cfg.FitPoints)
		if err != nil {
			return nil, fmt.Errorf("fitting initial velocity: %w", err)
		}
		s.slope, s.hasSlope = fit.Slope, true
	case cfg.Extrapolation == ExtrapolateAccelerated:
		fit, err := regression.Fit(times, vel, cfg.FitPoints)
		if err != nil {
			return nil, fmt.Errorf("fitting initial acceleration: %w", err)
		}
		s.slope, s.intercept, s.hasSlope = fit.Slope, fit.Intercept, true
	case cfg.HasVelocity:
		s.slope, s.hasSlope = b.records[0].Vel, true
	}

	if cfg.Mode == interp.Spline {
		splines := 3
		if cfg.HasVelocity {
			splines = 6
		}
		metrics.Splines(seriesName, splines)
	}
	elapsed := time.Since(start)
	metrics.Loaded(seriesName, elapsed)
	b.logger.Info("orientation series built",
		"samples", n,
		"start", grid.Start(),
		"end", grid.End(),
		"evenly_spaced", grid.EvenlySpaced(),
		"mode", cfg.Mode.String(),
		"extrapolation", cfg.Extrapolation.String(),
		"has_velocity", cfg.HasVelocity,
		"duration_ms", elapsed.Milliseconds(),
	)
	return s, nil
}

// Series is an immutable, interpolated frame-center trajectory.
type Series struct {
	inertial bool
	cfg      Config
	logger   *slog.Logger

	grid     *timegrid.Grid
	pos0     [3]float64
	position interp.Strategy
	velocity interp.Strategy // nil without velocity columns

	// Pre-start extrapolation: x(t) = pos0 + Δt·slope, or in accelerated
	// mode x(t) = pos0 + Δt·(slope·Δt + intercept), with Δt = t − t[0].
	slope     [3]float64
	intercept [3]float64
	hasSlope  bool
}

// Inertial returns a series whose center and velocity are always zero.
func Inertial() *Series {
	return &Series{inertial: true}
}

// Inertial reports whether s is the fixed zero center.
func (s *Series) Inertial() bool { return s.inertial }

// CenterAt returns the frame center at time t.
func (s *Series) CenterAt(t float64) [3]float64 {
	if s.inertial {
		return [3]float64{}
	}
	s.countQuery(t)
	out, edge := s.center(t)
	s.warnClamped("center", t, edge)
	return out
}

// CenterVelocityAt returns the velocity of the frame center at time t.
// Without velocity columns the velocity is the time derivative of the
// position interpolant.
func (s *Series) CenterVelocityAt(t float64) [3]float64 {
	if s.inertial {
		return [3]float64{}
	}
	s.countQuery(t)
	out, edge := s.centerVelocity(t)
	s.warnClamped("velocity", t, edge)
	return out
}

// StateAt returns the center and its velocity at time t. A clamped query
// is logged and counted once, not once per quantity.
func (s *Series) StateAt(t float64) (pos, vel [3]float64) {
	if s.inertial {
		return pos, vel
	}
	s.countQuery(t)
	pos, edge := s.center(t)
	vel, velEdge := s.centerVelocity(t)
	if edge == timegrid.Inside {
		edge = velEdge
	}
	s.warnClamped("state", t, edge)
	return pos, vel
}

// countQuery records one query at t, and whether it was answered by
// pre-start extrapolation.
func (s *Series) countQuery(t float64) {
	metrics.Query(seriesName, s.cfg.Mode.String())
	if s.extrapolates(t) {
		metrics.Extrapolated(s.cfg.Extrapolation.String())
	}
}

func (s *Series) extrapolates(t float64) bool {
	return s.cfg.Mode == interp.Linear && s.hasSlope && t < s.grid.Start()
}

func (s *Series) center(t float64) ([3]float64, timegrid.Edge) {
	var out [3]float64
	if s.cfg.Mode == interp.Spline {
		s.position.Eval(t, out[:])
		return out, timegrid.Inside
	}

	if s.extrapolates(t) {
		dt := t - s.grid.Start()
		for k := range out {
			rate := s.slope[k]
			if s.cfg.Extrapolation == ExtrapolateAccelerated {
				rate = s.slope[k]*dt + s.intercept[k]
			}
			out[k] = s.pos0[k] + dt*rate
		}
		return out, timegrid.Inside
	}

	edge := s.position.Eval(t, out[:])
	return out, edge
}

func (s *Series) centerVelocity(t float64) ([3]float64, timegrid.Edge) {
	var out [3]float64
	if s.cfg.Mode == interp.Spline {
		if s.velocity != nil {
			s.velocity.Eval(t, out[:])
		} else {
			s.position.Derivative(t, out[:])
		}
		return out, timegrid.Inside
	}

	if s.extrapolates(t) {
		for k := range out {
			out[k] = s.slope[k]
			if s.cfg.Extrapolation == ExtrapolateAccelerated {
				out[k] = s.slope[k]*(t-s.grid.Start()) + s.intercept[k]
			}
		}
		return out, timegrid.Inside
	}

	var edge timegrid.Edge
	if s.velocity != nil {
		edge = s.velocity.Eval(t, out[:])
	} else {
		edge = s.position.Derivative(t, out[:])
	}
	return out, edge
}

func (s *Series) warnClamped(quantity string, t float64, edge timegrid.Edge) {
	if edge == timegrid.Inside {
		return
	}
	clampedTo := s.grid.Start()
	if edge == timegrid.After {
		clampedTo = s.grid.End()
	}
	metrics.Clamped(seriesName, edge.String())
	s.logger.Warn("orientation query outside sampled window; clamping",
		"quantity", quantity,
		"t", t,
		"edge", edge.String(),
		"clamped_to", clampedTo,
	)
}

// Info describes a series for diagnostics.
type Info struct {
	Inertial      bool    `json:"inertial"`
	Samples       int     `json:"samples"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	EvenlySpaced  bool    `json:"evenly_spaced"`
	Mode          string  `json:"mode"`
	Extrapolation string  `json:"extrapolation"`
	HasVelocity   bool    `json:"has_velocity"`
}

// Info returns the series metadata.
func (s *Series) Info() Info {
	if s.inertial {
		return Info{Inertial: true}
	}
	return Info{
		Samples:       s.grid.Len(),
		Start:         s.grid.Start(),
		End:           s.grid.End(),
		EvenlySpaced:  s.grid.EvenlySpaced(),
		Mode:          s.cfg.Mode.String(),
		Extrapolation: s.cfg.Extrapolation.String(),
		HasVelocity:   s.cfg.HasVelocity,
	}
}

// Times returns a copy of the sample times, or nil for an inertial series.
func (s *Series) Times() []float64 {
	if s.inertial {
		return nil
	}
	return s.grid.Times()
}
