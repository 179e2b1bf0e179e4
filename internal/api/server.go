// Package api serves the query endpoints over the loaded session.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/star/expseries/internal/auth"
	"github.com/star/expseries/internal/health"
	"github.com/star/expseries/internal/metrics"
	"github.com/star/expseries/internal/session"
	"github.com/star/expseries/internal/stream"
	"github.com/star/expseries/internal/transform"
)

// Reloads re-read every series, so they are throttled server-wide.
var (
	reloadRate  = rate.Every(time.Second)
	reloadBurst = 3
)

// requestIDHeader carries the per-request correlation ID.
const requestIDHeader = "X-Request-ID"

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. loader may be nil, which
// disables POST /api/v1/reload.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, store *session.Store, loader *session.Loader, batcher *transform.Batcher, streamHandler *stream.Handler) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() error {
		if store.Get() == nil {
			return errors.New("no session loaded")
		}
		return nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/center", centerHandler(store))
	mux.HandleFunc("GET /api/v1/velocity", velocityHandler(store))
	mux.HandleFunc("GET /api/v1/coefficients", coefficientsHandler(store))
	mux.HandleFunc("GET /api/v1/series", seriesHandler(store))
	mux.HandleFunc("POST /api/v1/reload", reloadHandler(logger, store, loader, rate.NewLimiter(reloadRate, reloadBurst)))

	mux.HandleFunc("GET /api/v1/transform/spherical", sphericalHandler())
	mux.HandleFunc("POST /api/v1/transform/spherical", sphericalBatchHandler(batcher))
	mux.HandleFunc("GET /api/v1/transform/cylindrical", cylindricalHandler())
	mux.HandleFunc("POST /api/v1/transform/forces", forcesBatchHandler(batcher))

	mux.HandleFunc("GET /api/v1/stream/centers", streamHandler.HandleCenters)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root handler including all middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// quietPath reports whether path is an operational endpoint that should not log at INFO.
func quietPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if quietPath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
				"request_id", requestID,
			)
		})
	}
}
