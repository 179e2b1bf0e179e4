package transform

import (
	"context"

	"github.com/star/expseries/internal/workers"
)

// Batcher runs batched conversions across a worker pool in contiguous
// chunks. Results are identical to the serial ...Batch functions.
type Batcher struct {
	pool *workers.Pool
}

// NewBatcher creates a Batcher. A nil pool runs serially.
func NewBatcher(pool *workers.Pool) *Batcher {
	return &Batcher{pool: pool}
}

// CartesianToSpherical is the chunked form of CartesianToSphericalBatch.
func (b *Batcher) CartesianToSpherical(ctx context.Context, x, y, z []float64) (r, phi, theta []float64, err error) {
	if !sameLength(len(x), y, z) {
		return nil, nil, nil, ErrLengthMismatch
	}
	n := len(x)
	r, phi, theta = make([]float64, n), make([]float64, n), make([]float64, n)
	err = b.pool.Chunks(ctx, n, func(lo, hi int) error {
		cartesianToSphericalInto(x[lo:hi], y[lo:hi], z[lo:hi], r[lo:hi], phi[lo:hi], theta[lo:hi])
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return r, phi, theta, nil
}

// SphericalToCartesian is the chunked form of SphericalToCartesianBatch.
func (b *Batcher) SphericalToCartesian(ctx context.Context, r, phi, theta []float64) (x, y, z []float64, err error) {
	if !sameLength(len(r), phi, theta) {
		return nil, nil, nil, ErrLengthMismatch
	}
	n := len(r)
	x, y, z = make([]float64, n), make([]float64, n), make([]float64, n)
	err = b.pool.Chunks(ctx, n, func(lo, hi int) error {
		sphericalToCartesianInto(r[lo:hi], phi[lo:hi], theta[lo:hi], x[lo:hi], y[lo:hi], z[lo:hi])
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return x, y, z, nil
}

// CartesianToCylindrical is the chunked form of CartesianToCylindricalBatch.
func (b *Batcher) CartesianToCylindrical(ctx context.Context, x, y []float64) (r, phi []float64, err error) {
	if !sameLength(len(x), y) {
		return nil, nil, ErrLengthMismatch
	}
	r, phi = make([]float64, len(x)), make([]float64, len(x))
	err = b.pool.Chunks(ctx, len(x), func(lo, hi int) error {
		cartesianToCylindricalInto(x[lo:hi], y[lo:hi], r[lo:hi], phi[lo:hi])
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return r, phi, nil
}

// CylindricalToCartesian is the chunked form of CylindricalToCartesianBatch.
func (b *Batcher) CylindricalToCartesian(ctx context.Context, r, phi []float64) (x, y []float64, err error) {
	if !sameLength(len(r), phi) {
		return nil, nil, ErrLengthMismatch
	}
	x, y = make([]float64, len(r)), make([]float64, len(r))
	err = b.pool.Chunks(ctx, len(r), func(lo, hi int) error {
		cylindricalToCartesianInto(r[lo:hi], phi[lo:hi], x[lo:hi], y[lo:hi])
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// CylindricalForceToCartesian is the chunked form of CylindricalForceToCartesianBatch.
func (b *Batcher) CylindricalForceToCartesian(ctx context.Context, r, phi, fr, fp []float64) (fx, fy []float64, err error) {
	if !sameLength(len(r), phi, fr, fp) {
		return nil, nil, ErrLengthMismatch
	}
	fx, fy = make([]float64, len(r)), make([]float64, len(r))
	err = b.pool.Chunks(ctx, len(r), func(lo, hi int) error {
		cylindricalForceInto(r[lo:hi], phi[lo:hi], fr[lo:hi], fp[lo:hi], fx[lo:hi], fy[lo:hi])
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return fx, fy, nil
}

// SphericalForceToCartesian is the chunked form of SphericalForceToCartesianBatch.
func (b *Batcher) SphericalForceToCartesian(ctx context.Context, in SphericalForces) (fx, fy, fz []float64, err error) {
	return b.sphericalForces(ctx, in, sphericalForce)
}

// SphericalForceToCartesianLegacy is the chunked form of SphericalForceToCartesianLegacyBatch.
func (b *Batcher) SphericalForceToCartesianLegacy(ctx context.Context, in SphericalForces) (fx, fy, fz []float64, err error) {
	return b.sphericalForces(ctx, in, SphericalForceToCartesianLegacy)
}

func (b *Batcher) sphericalForces(ctx context.Context, in SphericalForces, f sphericalForceFunc) (fx, fy, fz []float64, err error) {
	if !in.valid() {
		return nil, nil, nil, ErrLengthMismatch
	}
	n := len(in.R)
	fx, fy, fz = make([]float64, n), make([]float64, n), make([]float64, n)
	err = b.pool.Chunks(ctx, n, func(lo, hi int) error {
		sphericalForceInto(in, lo, hi, fx, fy, fz, f)
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return fx, fy, fz, nil
}
