// Package session loads the orientation and coefficient series named by the
// configuration and publishes the result for concurrent readers.
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/star/expseries/internal/coefs"
	"github.com/star/expseries/internal/config"
	"github.com/star/expseries/internal/metrics"
	"github.com/star/expseries/internal/orient"
	"github.com/star/expseries/internal/workers"
)

// Session is one loaded, immutable pair of series.
type Session struct {
	// ID distinguishes successive loads, e.g. across reloads.
	ID          uuid.UUID
	Orientation *orient.Series
	// Coefficients is nil when no coefficient source is configured.
	Coefficients *coefs.Series
	Sources      Sources
	LoadedAt     time.Time
}

// Sources records where each series was read from.
type Sources struct {
	Orientation  string `json:"orientation"`
	Coefficients string `json:"coefficients"`
}

// Loader builds sessions from a fixed configuration.
type Loader struct {
	orientSource string
	orientCfg    orient.Config
	coefSource   string
	coefCfg      coefs.Config

	fetcher *Fetcher
	mirror  *Mirror // nil when mirroring is disabled
	pool    *workers.Pool
	logger  *slog.Logger
}

// NewLoader validates the series settings of cfg and returns a Loader.
func NewLoader(cfg config.Config, pool *workers.Pool, logger *slog.Logger) (*Loader, error) {
	oc, err := cfg.Orientation.Series()
	if err != nil {
		return nil, err
	}
	cc, err := cfg.Coefficients.Series()
	if err != nil {
		return nil, err
	}
	var mirror *Mirror
	if cfg.HTTP.MirrorDir != "" {
		mirror = NewMirror(cfg.HTTP.MirrorDir, cfg.HTTP.MirrorFiles)
	}
	return &Loader{
		orientSource: cfg.Orientation.Path,
		orientCfg:    oc,
		coefSource:   cfg.Coefficients.Path,
		coefCfg:      cc,
		fetcher:      NewFetcher(cfg.HTTP.FetchTimeout(), cfg.HTTP.MaxFetchBytes()),
		mirror:       mirror,
		pool:         pool,
		logger:       logger,
	}, nil
}

// Load reads and builds both series concurrently.
func (l *Loader) Load(ctx context.Context) (*Session, error) {
	start := time.Now()
	s := &Session{
		Sources: Sources{Orientation: l.orientSource, Coefficients: l.coefSource},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		series, err := l.loadOrientation(gctx)
		if err != nil {
			return err
		}
		s.Orientation = series
		return nil
	})
	g.Go(func() error {
		series, err := l.loadCoefficients(gctx)
		if err != nil {
			return err
		}
		s.Coefficients = series
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.ID = uuid.New()
	s.LoadedAt = time.Now()
	l.logger.Info("session loaded",
		"session_id", s.ID,
		"orientation", l.orientSource,
		"coefficients", l.coefSource,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s, nil
}

// open reads source. Remote downloads are copied to the mirror; when a
// download fails the newest mirrored copy of kind is used instead.
func (l *Loader) open(ctx context.Context, kind, source string) (io.ReadCloser, error) {
	if !IsRemote(source) || l.mirror == nil {
		return l.fetcher.Open(ctx, source)
	}

	body, err := l.fetcher.Fetch(ctx, source)
	if err != nil {
		data, ts, mirrorErr := l.mirror.LoadLatest(kind)
		if mirrorErr != nil {
			return nil, err
		}
		l.logger.Warn("remote fetch failed, using mirrored copy",
			"kind", kind,
			"source", source,
			"mirrored_at", ts.Format(time.RFC3339),
			"error", err,
		)
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	if err := l.mirror.Write(kind, body, time.Now()); err != nil {
		l.logger.Warn("failed to mirror download", "kind", kind, "error", err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (l *Loader) loadOrientation(ctx context.Context) (*orient.Series, error) {
	if l.orientSource == "" {
		l.logger.Info("no orientation source configured, using inertial center")
		return orient.Inertial(), nil
	}
	rc, err := l.open(ctx, "orientation", l.orientSource)
	if err != nil {
		return nil, fmt.Errorf("loading orientation: %w", err)
	}
	defer rc.Close()

	series, err := orient.Load(ctx, rc, l.orientCfg, l.logger, l.pool)
	if err != nil {
		return nil, fmt.Errorf("loading orientation from %s: %w", l.orientSource, err)
	}
	return series, nil
}

func (l *Loader) loadCoefficients(ctx context.Context) (*coefs.Series, error) {
	if l.coefSource == "" {
		l.logger.Info("no coefficient source configured")
		return nil, nil
	}
	rc, err := l.open(ctx, "coefficients", l.coefSource)
	if err != nil {
		return nil, fmt.Errorf("loading coefficients: %w", err)
	}
	defer rc.Close()

	series, err := coefs.Load(ctx, rc, l.coefCfg, l.logger, l.pool)
	if err != nil {
		return nil, fmt.Errorf("loading coefficients from %s: %w", l.coefSource, err)
	}
	return series, nil
}

// Store provides thread-safe access to the current session.
type Store struct {
	current atomic.Pointer[Session]
	mu      sync.Mutex // serializes reloads
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current session, or nil if none has been loaded.
func (s *Store) Get() *Session {
	return s.current.Load()
}

// Set atomically replaces the current session.
func (s *Store) Set(sess *Session) {
	s.current.Store(sess)
}

// AgeSeconds returns the age of the current session in seconds, or -1 if
// none is loaded.
func (s *Store) AgeSeconds() float64 {
	sess := s.current.Load()
	if sess == nil {
		return -1
	}
	return time.Since(sess.LoadedAt).Seconds()
}

// Reload loads a new session and publishes it. Concurrent reloads are
// serialized; on failure the current session is kept.
func (s *Store) Reload(ctx context.Context, l *Loader) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := l.Load(ctx)
	metrics.Reloaded(err == nil)
	if err != nil {
		return nil, err
	}
	s.Set(sess)
	metrics.SetSessionAge(0)
	return sess, nil
}
