// Package coefs interpolates a time series of spherical-harmonic expansion
// coefficient tensors. Each snapshot is a (LMAX+1)² × NMAX matrix of
// harmonic rows and radial-order columns.
package coefs

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/star/expseries/internal/interp"
	"github.com/star/expseries/internal/metrics"
	"github.com/star/expseries/internal/timegrid"
	"github.com/star/expseries/internal/workers"
)

const seriesName = "coefficients"

// Config fixes how a series is built.
type Config struct {
	Mode interp.Mode
	// ByteOrder of the binary stream; nil selects little-endian.
	ByteOrder binary.ByteOrder
}

// Builder accumulates snapshots and builds an immutable Series.
type Builder struct {
	cfg    Config
	logger *slog.Logger
	header Header
	times  []float64
	values []float64
}

// NewBuilder creates a Builder for snapshots of the given dimensions.
func NewBuilder(lmax, nmax int, cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		cfg:    cfg,
		logger: logger,
		header: Header{LMax: lmax, NMax: nmax},
	}
}

// AddFlat appends a snapshot given row-major as [harmonic][radial].
func (b *Builder) AddFlat(t float64, values []float64) error {
	if want := b.header.Cells(); len(values) != want {
		return fmt.Errorf("coefs: snapshot at t=%g has %d values, want %d", t, len(values), want)
	}
	b.times = append(b.times, t)
	b.values = append(b.values, values...)
	return nil
}

// Add appends a snapshot matrix of shape (LMAX+1)² × NMAX.
func (b *Builder) Add(t float64, snap mat.Matrix) error {
	r, c := snap.Dims()
	if r != b.header.Harmonics() || c != b.header.NMax {
		return fmt.Errorf("coefs: snapshot at t=%g is %d×%d, want %d×%d", t, r, c, b.header.Harmonics(), b.header.NMax)
	}
	flat := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			flat = append(flat, snap.At(i, j))
		}
	}
	return b.AddFlat(t, flat)
}

// Build fits the interpolation strategy. In spline mode one spline per
// (harmonic, radial) cell is fitted on pool.
func (b *Builder) Build(ctx context.Context, pool *workers.Pool) (*Series, error) {
	start := time.Now()
	h := b.header
	h.NumT = len(b.times)
	if err := h.validate(); err != nil {
		return nil, err
	}

	grid, err := timegrid.New(b.times)
	if err != nil {
		return nil, fmt.Errorf("building coefficient grid: %w", err)
	}
	strategy, err := interp.New(ctx, b.cfg.Mode, grid, b.values, h.Cells(), pool)
	if err != nil {
		return nil, fmt.Errorf("building coefficient interpolation: %w", err)
	}

	if b.cfg.Mode == interp.Spline {
		metrics.Splines(seriesName, h.Cells())
	}
	elapsed := time.Since(start)
	metrics.Loaded(seriesName, elapsed)
	b.logger.Info("coefficient series built",
		"numt", h.NumT,
		"lmax", h.LMax,
		"nmax", h.NMax,
		"start", grid.Start(),
		"end", grid.End(),
		"evenly_spaced", grid.EvenlySpaced(),
		"mode", b.cfg.Mode.String(),
		"duration_ms", elapsed.Milliseconds(),
	)

	return &Series{
		header:   h,
		mode:     b.cfg.Mode,
		logger:   b.logger,
		grid:     grid,
		strategy: strategy,
	}, nil
}

// Series is an immutable, interpolated coefficient tensor series. All
// methods are safe for concurrent use.
type Series struct {
	header   Header
	mode     interp.Mode
	logger   *slog.Logger
	grid     *timegrid.Grid
	strategy interp.Strategy
}

// Load decodes a coefficient stream from r and builds a Series.
func Load(ctx context.Context, r io.Reader, cfg Config, logger *slog.Logger, pool *workers.Pool) (*Series, error) {
	tab, err := Read(r, cfg.ByteOrder)
	if err != nil {
		return nil, err
	}
	return FromTable(ctx, tab, cfg, logger, pool)
}

// FromTable builds a Series from a decoded table.
func FromTable(ctx context.Context, tab *Table, cfg Config, logger *slog.Logger, pool *workers.Pool) (*Series, error) {
	b := NewBuilder(tab.LMax, tab.NMax, cfg, logger)
	for i, t := range tab.Times {
		if err := b.AddFlat(t, tab.Snapshot(i)); err != nil {
			return nil, err
		}
	}
	return b.Build(ctx, pool)
}

// CoefficientsAt returns a freshly allocated (LMAX+1)² × NMAX snapshot at t.
//
// In linear mode a t outside the sampled window is clamped to the nearest
// end, logged at WARN and counted. In spline mode the splines are evaluated
// directly.
func (s *Series) CoefficientsAt(t float64) *mat.Dense {
	metrics.Query(seriesName, s.mode.String())
	data := make([]float64, s.header.Cells())
	edge := s.strategy.Eval(t, data)
	if s.mode == interp.Linear && edge != timegrid.Inside {
		clampedTo := s.grid.Start()
		if edge == timegrid.After {
			clampedTo = s.grid.End()
		}
		metrics.Clamped(seriesName, edge.String())
		s.logger.Warn("coefficient query outside sampled window; clamping",
			"t", t,
			"edge", edge.String(),
			"clamped_to", clampedTo,
		)
	}
	return mat.NewDense(s.header.Harmonics(), s.header.NMax, data)
}

// LMax returns the maximum harmonic degree.
func (s *Series) LMax() int { return s.header.LMax }

// Harmonics returns (LMAX+1)², the row count of every snapshot.
func (s *Series) Harmonics() int { return s.header.Harmonics() }

// RadialOrders returns NMAX, the column count of every snapshot.
func (s *Series) RadialOrders() int { return s.header.NMax }

// Mode returns the interpolation mode.
func (s *Series) Mode() interp.Mode { return s.mode }

// Times returns a copy of the sample times.
func (s *Series) Times() []float64 { return s.grid.Times() }

// Info describes a series for diagnostics.
type Info struct {
	NumT         int     `json:"numt"`
	LMax         int     `json:"lmax"`
	NMax         int     `json:"nmax"`
	Harmonics    int     `json:"harmonics"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	EvenlySpaced bool    `json:"evenly_spaced"`
	Mode         string  `json:"mode"`
}

// Info returns the series metadata.
func (s *Series) Info() Info {
	return Info{
		NumT:         s.header.NumT,
		LMax:         s.header.LMax,
		NMax:         s.header.NMax,
		Harmonics:    s.header.Harmonics(),
		Start:        s.grid.Start(),
		End:          s.grid.End(),
		EvenlySpaced: s.grid.EvenlySpaced(),
		Mode:         s.mode.String(),
	}
}
