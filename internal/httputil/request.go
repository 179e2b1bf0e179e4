// Package httputil holds the request parsing and JSON response helpers
// shared by the query API and the sweep stream.
package httputil

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ClientIP extracts the client IP address from the request.
// When trustProxy is true, X-Forwarded-For (first entry) and X-Real-IP
// headers are checked before falling back to RemoteAddr. Only enable
// trustProxy when the server is behind a trusted reverse proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FloatParam parses the named query parameter as a finite float64.
// A missing parameter is an error unless def is non-nil.
func FloatParam(r *http.Request, name string, def *float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		if def != nil {
			return *def, nil
		}
		return 0, fmt.Errorf("missing %s parameter", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s parameter %q, must be a finite number", name, v)
	}
	return f, nil
}

// BoolParam parses the named query parameter, returning false when absent.
func BoolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s parameter %q, must be a boolean", name, v)
	}
	return b, nil
}
