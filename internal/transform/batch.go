package transform

func sameLength(n int, others ...[]float64) bool {
	for _, s := range others {
		if len(s) != n {
			return false
		}
	}
	return true
}

// CartesianToCylindricalBatch applies CartesianToCylindrical elementwise.
func CartesianToCylindricalBatch(x, y []float64) (r, phi []float64, err error) {
	if !sameLength(len(x), y) {
		return nil, nil, ErrLengthMismatch
	}
	r, phi = make([]float64, len(x)), make([]float64, len(x))
	cartesianToCylindricalInto(x, y, r, phi)
	return r, phi, nil
}

func cartesianToCylindricalInto(x, y, r, phi []float64) {
	for i := range x {
		r[i], phi[i] = CartesianToCylindrical(x[i], y[i])
	}
}

// CylindricalToCartesianBatch applies CylindricalToCartesian elementwise.
func CylindricalToCartesianBatch(r, phi []float64) (x, y []float64, err error) {
	if !sameLength(len(r), phi) {
		return nil, nil, ErrLengthMismatch
	}
	x, y = make([]float64, len(r)), make([]float64, len(r))
	cylindricalToCartesianInto(r, phi, x, y)
	return x, y, nil
}

func cylindricalToCartesianInto(r, phi, x, y []float64) {
	for i := range r {
		x[i], y[i] = CylindricalToCartesian(r[i], phi[i])
	}
}

// CylindricalForceToCartesianBatch converts cylindrical forces elementwise.
// Unlike the scalar form, NaN components are not replaced by zero.
func CylindricalForceToCartesianBatch(r, phi, fr, fp []float64) (fx, fy []float64, err error) {
	if !sameLength(len(r), phi, fr, fp) {
		return nil, nil, ErrLengthMismatch
	}
	fx, fy = make([]float64, len(r)), make([]float64, len(r))
	cylindricalForceInto(r, phi, fr, fp, fx, fy)
	return fx, fy, nil
}

func cylindricalForceInto(r, phi, fr, fp, fx, fy []float64) {
	for i := range r {
		fx[i], fy[i] = cylindricalForce(r[i], phi[i], fr[i], fp[i])
	}
}

// CartesianToSphericalBatch applies CartesianToSpherical elementwise.
func CartesianToSphericalBatch(x, y, z []float64) (r, phi, theta []float64, err error) {
	if !sameLength(len(x), y, z) {
		return nil, nil, nil, ErrLengthMismatch
	}
	n := len(x)
	r, phi, theta = make([]float64, n), make([]float64, n), make([]float64, n)
	cartesianToSphericalInto(x, y, z, r, phi, theta)
	return r, phi, theta, nil
}

func cartesianToSphericalInto(x, y, z, r, phi, theta []float64) {
	for i := range x {
		r[i], phi[i], theta[i] = CartesianToSpherical(x[i], y[i], z[i])
	}
}

// SphericalToCartesianBatch applies SphericalToCartesian elementwise.
func SphericalToCartesianBatch(r, phi, theta []float64) (x, y, z []float64, err error) {
	if !sameLength(len(r), phi, theta) {
		return nil, nil, nil, ErrLengthMismatch
	}
	n := len(r)
	x, y, z = make([]float64, n), make([]float64, n), make([]float64, n)
	sphericalToCartesianInto(r, phi, theta, x, y, z)
	return x, y, z, nil
}

func sphericalToCartesianInto(r, phi, theta, x, y, z []float64) {
	for i := range r {
		x[i], y[i], z[i] = SphericalToCartesian(r[i], phi[i], theta[i])
	}
}

// SphericalForces holds batched spherical force components.
type SphericalForces struct {
	R, Phi, Theta []float64 // evaluation points
	Fr, Fp, Ft    []float64 // radial, azimuthal, polar components
}

func (s SphericalForces) valid() bool {
	return sameLength(len(s.R), s.Phi, s.Theta, s.Fr, s.Fp, s.Ft)
}

// SphericalForceToCartesianBatch converts spherical forces elementwise with
// the radius floors of SphericalForceToCartesian. A NaN fr yields NaN output.
func SphericalForceToCartesianBatch(in SphericalForces) (fx, fy, fz []float64, err error) {
	if !in.valid() {
		return nil, nil, nil, ErrLengthMismatch
	}
	n := len(in.R)
	fx, fy, fz = make([]float64, n), make([]float64, n), make([]float64, n)
	sphericalForceInto(in, 0, n, fx, fy, fz, sphericalForce)
	return fx, fy, fz, nil
}

// SphericalForceToCartesianLegacyBatch applies SphericalForceToCartesianLegacy elementwise.
func SphericalForceToCartesianLegacyBatch(in SphericalForces) (fx, fy, fz []float64, err error) {
	if !in.valid() {
		return nil, nil, nil, ErrLengthMismatch
	}
	n := len(in.R)
	fx, fy, fz = make([]float64, n), make([]float64, n), make([]float64, n)
	sphericalForceInto(in, 0, n, fx, fy, fz, SphericalForceToCartesianLegacy)
	return fx, fy, fz, nil
}

type sphericalForceFunc func(r, phi, theta, fr, fp, ft float64) (fx, fy, fz float64)

func sphericalForceInto(in SphericalForces, lo, hi int, fx, fy, fz []float64, f sphericalForceFunc) {
	for i := lo; i < hi; i++ {
		fx[i], fy[i], fz[i] = f(in.R[i], in.Phi[i], in.Theta[i], in.Fr[i], in.Fp[i], in.Ft[i])
	}
}
