package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/star/expseries/internal/coefs"
	"github.com/star/expseries/internal/httputil"
	"github.com/star/expseries/internal/orient"
	"github.com/star/expseries/internal/session"
	"github.com/star/expseries/internal/transform"
)

// maxBatchBody bounds the JSON body of batched transform requests.
const maxBatchBody = 16 << 20

// current returns the loaded session or writes 503.
func current(w http.ResponseWriter, store *session.Store) *session.Session {
	sess := store.Get()
	if sess == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "no session loaded")
	}
	return sess
}

type centerResponse struct {
	T        float64     `json:"t"`
	Center   *[3]float64 `json:"center,omitempty"`
	Velocity [3]float64  `json:"velocity"`
}

// centerHandler serves GET /api/v1/center?t=.
func centerHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := httputil.FloatParam(r, "t", nil)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess := current(w, store)
		if sess == nil {
			return
		}
		center, velocity := sess.Orientation.StateAt(t)
		httputil.WriteJSON(w, http.StatusOK, centerResponse{
			T:        t,
			Center:   &center,
			Velocity: velocity,
		})
	}
}

// velocityHandler serves GET /api/v1/velocity?t=.
func velocityHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := httputil.FloatParam(r, "t", nil)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess := current(w, store)
		if sess == nil {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, centerResponse{
			T:        t,
			Velocity: sess.Orientation.CenterVelocityAt(t),
		})
	}
}

type coefficientsResponse struct {
	T         float64     `json:"t"`
	LMax      int         `json:"lmax"`
	NMax      int         `json:"nmax"`
	Harmonics int         `json:"harmonics"`
	Values    [][]float64 `json:"values"`
}

// coefficientsHandler serves GET /api/v1/coefficients?t=. Values are
// indexed [harmonic][radial].
func coefficientsHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := httputil.FloatParam(r, "t", nil)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess := current(w, store)
		if sess == nil {
			return
		}
		if sess.Coefficients == nil {
			httputil.WriteError(w, http.StatusNotFound, "no coefficient series loaded")
			return
		}

		snap := sess.Coefficients.CoefficientsAt(t)
		rows, _ := snap.Dims()
		values := make([][]float64, rows)
		for i := range values {
			values[i] = snap.RawRowView(i)
		}
		httputil.WriteJSON(w, http.StatusOK, coefficientsResponse{
			T:         t,
			LMax:      sess.Coefficients.LMax(),
			NMax:      sess.Coefficients.RadialOrders(),
			Harmonics: sess.Coefficients.Harmonics(),
			Values:    values,
		})
	}
}

type seriesResponse struct {
	SessionID    uuid.UUID       `json:"session_id"`
	LoadedAt     string          `json:"loaded_at"`
	Sources      session.Sources `json:"sources"`
	Orientation  orient.Info     `json:"orientation"`
	Coefficients *coefs.Info     `json:"coefficients,omitempty"`
}

func describe(sess *session.Session) seriesResponse {
	resp := seriesResponse{
		SessionID:   sess.ID,
		LoadedAt:    sess.LoadedAt.UTC().Format(time.RFC3339),
		Sources:     sess.Sources,
		Orientation: sess.Orientation.Info(),
	}
	if sess.Coefficients != nil {
		info := sess.Coefficients.Info()
		resp.Coefficients = &info
	}
	return resp
}

// seriesHandler serves GET /api/v1/series.
func seriesHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := current(w, store)
		if sess == nil {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, describe(sess))
	}
}

// reloadHandler serves POST /api/v1/reload. A failed reload keeps the
// current session.
func reloadHandler(logger *slog.Logger, store *session.Store, loader *session.Loader, limiter *rate.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if loader == nil {
			httputil.WriteError(w, http.StatusNotImplemented, "reload not configured")
			return
		}
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			httputil.WriteError(w, http.StatusTooManyRequests, "reload rate limit exceeded")
			return
		}
		sess, err := store.Reload(r.Context(), loader)
		if err != nil {
			logger.Error("reload failed", "error", err)
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, describe(sess))
	}
}

type sphericalResponse struct {
	R     float64 `json:"r"`
	Phi   float64 `json:"phi"`
	Theta float64 `json:"theta"`
}

// sphericalHandler serves GET /api/v1/transform/spherical?x=&y=&z=.
func sphericalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var xyz [3]float64
		for i, name := range []string{"x", "y", "z"} {
			v, err := httputil.FloatParam(r, name, nil)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			xyz[i] = v
		}
		rad, phi, theta := transform.CartesianToSpherical(xyz[0], xyz[1], xyz[2])
		httputil.WriteJSON(w, http.StatusOK, sphericalResponse{R: rad, Phi: phi, Theta: theta})
	}
}

type cylindricalResponse struct {
	R   float64 `json:"r"`
	Phi float64 `json:"phi"`
}

// cylindricalHandler serves GET /api/v1/transform/cylindrical?x=&y=.
func cylindricalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		x, err := httputil.FloatParam(r, "x", nil)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		y, err := httputil.FloatParam(r, "y", nil)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		rad, phi := transform.CartesianToCylindrical(x, y)
		httputil.WriteJSON(w, http.StatusOK, cylindricalResponse{R: rad, Phi: phi})
	}
}

type cartesianBatch struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	Z []float64 `json:"z"`
}

type sphericalBatch struct {
	R     []float64 `json:"r"`
	Phi   []float64 `json:"phi"`
	Theta []float64 `json:"theta"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeBatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, transform.ErrLengthMismatch) {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteError(w, http.StatusInternalServerError, err.Error())
}

// allFinite reports whether every element of cols is finite.
func allFinite(cols ...[]float64) bool {
	for _, col := range cols {
		for _, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// sphericalBatchHandler serves POST /api/v1/transform/spherical with a body
// of equal-length x, y, z arrays.
func sphericalBatchHandler(batcher *transform.Batcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in cartesianBatch
		if !decodeBody(w, r, &in) {
			return
		}
		rad, phi, theta, err := batcher.CartesianToSpherical(r.Context(), in.X, in.Y, in.Z)
		if err != nil {
			writeBatchError(w, err)
			return
		}
		if !allFinite(rad, phi, theta) {
			httputil.WriteError(w, http.StatusUnprocessableEntity, "result contains non-finite values")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sphericalBatch{R: rad, Phi: phi, Theta: theta})
	}
}

type forcesRequest struct {
	R      []float64 `json:"r"`
	Phi    []float64 `json:"phi"`
	Theta  []float64 `json:"theta"`
	Fr     []float64 `json:"fr"`
	Fp     []float64 `json:"fp"`
	Ft     []float64 `json:"ft"`
	Legacy bool      `json:"legacy"`
}

type forcesResponse struct {
	Fx []float64 `json:"fx"`
	Fy []float64 `json:"fy"`
	Fz []float64 `json:"fz"`
}

// forcesBatchHandler serves POST /api/v1/transform/forces, converting
// spherical force components to Cartesian. Inputs that produce non-finite
// components, such as r=0 in the legacy formula, are rejected with 422.
func forcesBatchHandler(batcher *transform.Batcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in forcesRequest
		if !decodeBody(w, r, &in) {
			return
		}
		forces := transform.SphericalForces{R: in.R, Phi: in.Phi, Theta: in.Theta, Fr: in.Fr, Fp: in.Fp, Ft: in.Ft}

		convert := batcher.SphericalForceToCartesian
		if in.Legacy {
			convert = batcher.SphericalForceToCartesianLegacy
		}
		fx, fy, fz, err := convert(r.Context(), forces)
		if err != nil {
			writeBatchError(w, err)
			return
		}
		if !allFinite(fx, fy, fz) {
			httputil.WriteError(w, http.StatusUnprocessableEntity, "result contains non-finite values")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, forcesResponse{Fx: fx, Fy: fy, Fz: fz})
	}
}
