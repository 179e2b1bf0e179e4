package transform

import "math"

// CylindricalForceToCartesian rotates a force given as radial (fr) and
// azimuthal (fp) components at (r, phi) into Cartesian (fx, fy).
// If either component is NaN the result is (0, 0).
func CylindricalForceToCartesian(r, phi, fr, fp float64) (fx, fy float64) {
	if math.IsNaN(fr) || math.IsNaN(fp) {
		return 0, 0
	}
	return cylindricalForce(r, phi, fr, fp)
}

func cylindricalForce(r, phi, fr, fp float64) (fx, fy float64) {
	x, y := CylindricalToCartesian(r, phi)
	return (x*fr - y*fp) / r, (y*fr + x*fp) / r
}

// SphericalForceToCartesian converts a force with spherical components
// (fr radial, fp azimuthal, ft polar) at (r, phi, theta) to Cartesian.
//
// Both the spherical radius and the cylindrical radius derived from it are
// floored to EPS before any division, so the result stays finite at and near
// the origin. If fr is NaN the result is (0, 0, 0).
func SphericalForceToCartesian(r, phi, theta, fr, fp, ft float64) (fx, fy, fz float64) {
	if math.IsNaN(fr) {
		return 0, 0, 0
	}
	return sphericalForce(r, phi, theta, fr, fp, ft)
}

func sphericalForce(r3, phi, theta, fr, fp, ft float64) (fx, fy, fz float64) {
	r := math.Max(r3, EPS)
	x, y, z := SphericalToCartesian(r, phi, theta)
	r2 := math.Max(math.Sqrt(x*x+y*y+EPS), EPS)

	rCube := r * r * r
	r2Sq := r2 * r2

	fx = -((fr*(x/r) - ft*(x*z/rCube)) + fp*(y/r2Sq))
	fy = -((fr*(y/r) - ft*(y*z/rCube)) - fp*(x/r2Sq))
	fz = -(fr*(z/r) + ft*(r2Sq/rCube))
	return fx, fy, fz
}

// SphericalForceToCartesianLegacy is the older force convention retained for
// compatibility with coefficient sets generated against it. It applies no
// radius floor and no NaN guard; callers must not pass r == 0.
func SphericalForceToCartesianLegacy(r, phi, theta, fr, fp, ft float64) (fx, fy, fz float64) {
	x, y, z := SphericalToCartesian(r, phi, theta)
	r2 := math.Sqrt(x*x + y*y + EPS)

	fx = (x*(r2*fr+z*ft) - y*r*fp) / (r2 * r)
	fy = (y*(r2*fr+z*ft) + x*r*fp) / (r2 * r)
	fz = (z*fr - r2*ft) / r
	return fx, fy, fz
}
