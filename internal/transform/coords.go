// Package transform converts positions and force vectors between Cartesian,
// cylindrical and spherical coordinates.
//
// Angles: phi is the azimuth in (-π, π], theta is the polar angle measured
// from +z (colatitude), except for the near-origin convention documented on
// CartesianToSpherical.
//
// Every conversion has a scalar form and a batched (...Batch) form. The
// batched forms apply the scalar arithmetic elementwise but do not apply the
// NaN force guards: a NaN input force component propagates to the output.
package transform

import (
	"errors"
	"math"
)

// EPS is the floor applied to radii before division.
const EPS = 1e-12

// REPS is the radius below which the polar angle is pinned to ±π/2.
const REPS = 1e-10

// ErrLengthMismatch is returned by batched conversions whose inputs differ in length.
var ErrLengthMismatch = errors.New("transform: input slices differ in length")

// CartesianToCylindrical returns the cylindrical radius and azimuth of (x, y).
func CartesianToCylindrical(x, y float64) (r, phi float64) {
	return math.Sqrt(x*x + y*y), math.Atan2(y, x)
}

// CylindricalToCartesian is the inverse of CartesianToCylindrical.
func CylindricalToCartesian(r, phi float64) (x, y float64) {
	return r * math.Cos(phi), r * math.Sin(phi)
}

// CartesianToSpherical returns (r, phi, theta) for a Cartesian position.
//
// r is floored to EPS so callers may divide by it. phi is computed as
// atan2(y+EPS, x+EPS), which removes the atan2(0, 0) ambiguity at the price of
// a tiny bias near the origin. When r < REPS the polar angle is set to +π/2
// (z >= 0) or -π/2 (z < 0) instead of evaluating acos.
func CartesianToSpherical(x, y, z float64) (r, phi, theta float64) {
	r = math.Max(math.Sqrt(x*x+y*y+z*z), EPS)
	phi = math.Atan2(y+EPS, x+EPS)

	if r < REPS {
		if z < 0 {
			return r, phi, -math.Pi / 2
		}
		return r, phi, math.Pi / 2
	}
	return r, phi, math.Acos(z / r)
}

// SphericalToCartesian is the forward spherical map.
func SphericalToCartesian(r, phi, theta float64) (x, y, z float64) {
	sinT, cosT := math.Sincos(theta)
	sinP, cosP := math.Sincos(phi)
	return r * sinT * cosP, r * sinT * sinP, r * cosT
}
