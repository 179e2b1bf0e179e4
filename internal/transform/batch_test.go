package transform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/star/expseries/internal/workers"
)

func randomPoints(n int, seed int64) (x, y, z []float64) {
	rng := rand.New(rand.NewSource(seed))
	x, y, z = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64() * 10
		y[i] = rng.NormFloat64() * 10
		z[i] = rng.NormFloat64() * 10
	}
	return x, y, z
}

func TestBatchMatchesScalar(t *testing.T) {
	x, y, z := randomPoints(200, 1)

	r, phi, theta, err := CartesianToSphericalBatch(x, y, z)
	if err != nil {
		t.Fatal(err)
	}
	for i := range x {
		sr, sp, st := CartesianToSpherical(x[i], y[i], z[i])
		if r[i] != sr || phi[i] != sp || theta[i] != st {
			t.Fatalf("index %d: batch (%v, %v, %v) != scalar (%v, %v, %v)", i, r[i], phi[i], theta[i], sr, sp, st)
		}
	}

	bx, by, bz, err := SphericalToCartesianBatch(r, phi, theta)
	if err != nil {
		t.Fatal(err)
	}
	for i := range x {
		if math.Abs(bx[i]-x[i]) > 1e-8 || math.Abs(by[i]-y[i]) > 1e-8 || math.Abs(bz[i]-z[i]) > 1e-8 {
			t.Fatalf("index %d: round trip mismatch", i)
		}
	}

	cr, cphi, err := CartesianToCylindricalBatch(x, y)
	if err != nil {
		t.Fatal(err)
	}
	cx, cy, err := CylindricalToCartesianBatch(cr, cphi)
	if err != nil {
		t.Fatal(err)
	}
	for i := range x {
		if math.Abs(cx[i]-x[i]) > 1e-9 || math.Abs(cy[i]-y[i]) > 1e-9 {
			t.Fatalf("index %d: cylindrical round trip mismatch", i)
		}
	}
}

func TestBatchForcesDoNotGuardNaN(t *testing.T) {
	fx, fy, err := CylindricalForceToCartesianBatch([]float64{1}, []float64{0}, []float64{math.NaN()}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(fx[0]) {
		t.Errorf("batched cylindrical fx = %v, want NaN", fx[0])
	}
	_ = fy

	in := SphericalForces{
		R: []float64{1, 2}, Phi: []float64{0.1, 0}, Theta: []float64{1, math.Pi / 2},
		Fr: []float64{math.NaN(), 1}, Fp: []float64{1, 2}, Ft: []float64{1, 4},
	}
	sx, sy, sz, err := SphericalForceToCartesianBatch(in)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(sx[0]) {
		t.Errorf("batched spherical fx = %v, want NaN", sx[0])
	}
	if math.Abs(sx[1]+1) > 1e-6 || math.Abs(sy[1]-1) > 1e-6 || math.Abs(sz[1]+2) > 1e-6 {
		t.Errorf("batched spherical second element = (%v, %v, %v), want (-1, 1, -2)", sx[1], sy[1], sz[1])
	}

	lx, ly, lz, err := SphericalForceToCartesianLegacyBatch(in)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lx[1]-1) > 1e-6 || math.Abs(ly[1]-2) > 1e-6 || math.Abs(lz[1]+4) > 1e-6 {
		t.Errorf("legacy batch second element = (%v, %v, %v), want (1, 2, -4)", lx[1], ly[1], lz[1])
	}
}

func TestBatchLengthMismatch(t *testing.T) {
	if _, _, err := CartesianToCylindricalBatch([]float64{1, 2}, []float64{1}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("cylindrical: err = %v, want ErrLengthMismatch", err)
	}
	if _, _, _, err := CartesianToSphericalBatch([]float64{1}, []float64{1}, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("spherical: err = %v, want ErrLengthMismatch", err)
	}
	in := SphericalForces{R: []float64{1}, Phi: []float64{1}}
	if _, _, _, err := SphericalForceToCartesianBatch(in); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("spherical force: err = %v, want ErrLengthMismatch", err)
	}
}

func TestBatcherMatchesSerial(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	b := NewBatcher(workers.NewPool(3, logger))
	ctx := context.Background()
	x, y, z := randomPoints(1001, 7)

	r, phi, theta, err := b.CartesianToSpherical(ctx, x, y, z)
	if err != nil {
		t.Fatal(err)
	}
	sr, sphi, stheta, _ := CartesianToSphericalBatch(x, y, z)
	for i := range x {
		if r[i] != sr[i] || phi[i] != sphi[i] || theta[i] != stheta[i] {
			t.Fatalf("index %d differs between pooled and serial conversion", i)
		}
	}

	fr := make([]float64, len(x))
	for i := range fr {
		fr[i] = -1 / (r[i] * r[i])
	}
	in := SphericalForces{R: r, Phi: phi, Theta: theta, Fr: fr, Fp: make([]float64, len(x)), Ft: make([]float64, len(x))}
	fx, fy, fz, err := b.SphericalForceToCartesian(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range x {
		ex, ey, ez := SphericalForceToCartesian(r[i], phi[i], theta[i], fr[i], 0, 0)
		if fx[i] != ex || fy[i] != ey || fz[i] != ez {
			t.Fatalf("index %d: pooled force differs from scalar", i)
		}
	}

	cx, cy, err := b.CylindricalToCartesian(ctx, []float64{1, 2}, []float64{0, math.Pi})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cx[0]-1) > tol || math.Abs(cx[1]+2) > tol || math.Abs(cy[1]) > tol {
		t.Errorf("cylindrical pooled = (%v, %v)", cx, cy)
	}

	if _, _, err := b.CartesianToCylindrical(ctx, []float64{1}, []float64{}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("err = %v, want ErrLengthMismatch", err)
	}
}
