// Package stream implements Server-Sent Events (SSE) sweeps over the loaded
// series. Clients connect via GET /api/v1/stream/centers and receive the
// frame center, its velocity and optionally the coefficient norm at each
// time of an evenly stepped range.
//
// SSE message format:
//
//	data: {"type":"sample","t":1.5,"center":[..],"velocity":[..]}\n\n
//
// The first message is always metadata and the last one is "done":
//
//	data: {"type":"metadata","from":0,"to":10,"step":0.5,"samples":21,...}\n\n
//	data: {"type":"done","samples":21}\n\n
//
// Paced sweeps (interval_ms > 0) send keep-alive comments (:\n\n) while
// idle for longer than KeepaliveInterval.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/star/expseries/internal/coefs"
	"github.com/star/expseries/internal/httputil"
	"github.com/star/expseries/internal/metrics"
	"github.com/star/expseries/internal/orient"
	"github.com/star/expseries/internal/session"
)

// maxIntervalMs bounds the pacing between sweep events.
const maxIntervalMs = 10000

// Config holds sweep configuration.
type Config struct {
	MaxConcurrentPerClient int           // Max concurrent sweeps per client (default: 10).
	KeepaliveInterval      time.Duration // Keep-alive ping interval for paced sweeps (default: 30s).
	MaxEvents              int           // Max samples per sweep.
	TrustProxy             bool          // Take the client address from proxy headers.
}

// Handler manages SSE sweep connections.
type Handler struct {
	store   *session.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new sweep handler.
func NewHandler(store *session.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerClient < 1 {
		config.MaxConcurrentPerClient = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.MaxEvents < 1 {
		config.MaxEvents = 100000
	}
	return &Handler{
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerClient, 0),
		logger:  logger,
	}
}

// sweep is a validated sweep request.
type sweep struct {
	from, to, step float64
	samples        int
	interval       time.Duration
	coefficients   bool
}

func (s sweep) at(i int) float64 { return s.from + float64(i)*s.step }

func (h *Handler) parseSweep(r *http.Request) (sweep, error) {
	var (
		sw  sweep
		err error
	)
	if sw.from, err = httputil.FloatParam(r, "from", nil); err != nil {
		return sw, err
	}
	if sw.to, err = httputil.FloatParam(r, "to", nil); err != nil {
		return sw, err
	}
	if sw.step, err = httputil.FloatParam(r, "step", nil); err != nil {
		return sw, err
	}
	if sw.step <= 0 {
		return sw, fmt.Errorf("invalid step parameter, must be positive")
	}
	if sw.to < sw.from {
		return sw, fmt.Errorf("invalid range, to must not precede from")
	}

	n := math.Floor((sw.to-sw.from)/sw.step+1e-9) + 1
	if n > float64(h.config.MaxEvents) {
		return sw, fmt.Errorf("sweep of %.0f samples exceeds the limit of %d", n, h.config.MaxEvents)
	}
	sw.samples = int(n)

	if v := r.URL.Query().Get("interval_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 || ms > maxIntervalMs {
			return sw, fmt.Errorf("invalid interval_ms parameter, must be 0-%d", maxIntervalMs)
		}
		sw.interval = time.Duration(ms) * time.Millisecond
	}

	if sw.coefficients, err = httputil.BoolParam(r, "coefficients"); err != nil {
		return sw, err
	}
	return sw, nil
}

// HandleCenters serves an SSE sweep.
// GET /api/v1/stream/centers?from=0&to=10&step=0.5&interval_ms=0&coefficients=true
func (h *Handler) HandleCenters(w http.ResponseWriter, r *http.Request) {
	sw, err := h.parseSweep(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := h.store.Get()
	if sess == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "no session loaded")
		return
	}
	if sw.coefficients && sess.Coefficients == nil {
		httputil.WriteError(w, http.StatusBadRequest, "no coefficient series loaded")
		return
	}

	// Enforce the concurrent sweep limit per client.
	addr := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(addr) {
		metrics.StreamRejected()
		h.logger.Warn("stream limit exceeded",
			"remote_ip", addr,
			"current_count", h.limiter.count(addr),
			"active_total", h.limiter.active(),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.StreamOpened()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", addr,
		"from", sw.from,
		"to", sw.to,
		"step", sw.step,
		"samples", sw.samples,
	)

	c := &client{
		w:      w,
		rc:     http.NewResponseController(w),
		addr:   addr,
		logger: h.logger,
	}
	defer func() {
		h.limiter.release(addr)
		metrics.StreamClosed()
		h.logger.Info("stream disconnected",
			"remote_ip", addr,
			"events", c.eventsSent,
			"bytes", c.bytesSent,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	c.flusher = flusher

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long sweeps outlive the server's WriteTimeout; deadlines are extended
	// per write instead.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(time.Duration(3000+rand.Intn(4000)) * time.Millisecond); err != nil {
		return
	}

	if err := h.run(r.Context(), c, sess, sw); err != nil {
		h.logger.Warn("stream send error", "remote_ip", addr, "error", err)
	}
}

func (h *Handler) run(ctx context.Context, c *client, sess *session.Session, sw sweep) error {
	if err := c.sendJSON(buildMetadata(sess, sw)); err != nil {
		return err
	}

	var tick <-chan time.Time
	if sw.interval > 0 {
		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	for i := 0; i < sw.samples; i++ {
		if err := h.wait(ctx, c, tick, keepalive); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.sendJSON(buildSample(sess, sw.at(i), sw.coefficients)); err != nil {
			return err
		}
		keepalive.Reset(h.config.KeepaliveInterval)
	}
	return c.sendJSON(doneMessage{Type: "done", Samples: sw.samples})
}

// wait blocks until the next pacing tick, sending keep-alives meanwhile.
// Unpaced sweeps only check for cancellation.
func (h *Handler) wait(ctx context.Context, c *client, tick <-chan time.Time, keepalive *time.Ticker) error {
	if tick == nil {
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			return nil
		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				return err
			}
		}
	}
}

func buildMetadata(sess *session.Session, sw sweep) metadataMessage {
	msg := metadataMessage{
		Type:        "metadata",
		From:        sw.from,
		To:          sw.to,
		Step:        sw.step,
		Samples:     sw.samples,
		SessionID:   sess.ID,
		LoadedAt:    sess.LoadedAt.UTC().Format(time.RFC3339),
		Orientation: sess.Orientation.Info(),
	}
	if sess.Coefficients != nil {
		info := sess.Coefficients.Info()
		msg.Coefficients = &info
	}
	return msg
}

// buildSample evaluates the session at t. The coefficient norm is the
// Frobenius norm of the snapshot.
func buildSample(sess *session.Session, t float64, withCoefs bool) sampleMessage {
	center, velocity := sess.Orientation.StateAt(t)
	msg := sampleMessage{
		Type:     "sample",
		T:        t,
		Center:   center,
		Velocity: velocity,
	}
	if withCoefs {
		norm := mat.Norm(sess.Coefficients.CoefficientsAt(t), 2)
		msg.CoefNorm = &norm
	}
	return msg
}

// SSE message payload types.

type metadataMessage struct {
	Type         string      `json:"type"`
	From         float64     `json:"from"`
	To           float64     `json:"to"`
	Step         float64     `json:"step"`
	Samples      int         `json:"samples"`
	SessionID    uuid.UUID   `json:"session_id"`
	LoadedAt     string      `json:"loaded_at"`
	Orientation  orient.Info `json:"orientation"`
	Coefficients *coefs.Info `json:"coefficients,omitempty"`
}

type sampleMessage struct {
	Type     string     `json:"type"`
	T        float64    `json:"t"`
	Center   [3]float64 `json:"center"`
	Velocity [3]float64 `json:"velocity"`
	CoefNorm *float64   `json:"coef_norm,omitempty"`
}

type doneMessage struct {
	Type    string `json:"type"`
	Samples int    `json:"samples"`
}
