// Package regression fits an ordinary least-squares line, per axis, to the
// leading samples of a three-axis series. The fit is used to extrapolate a
// series backwards in time, before its first recorded sample.
package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultPoints is the sample count used when Fit is asked for nPoints <= 0.
	DefaultPoints = 2000

	// minDenominator bounds |ΣT² − ΣT·mean(T)| from below.
	minDenominator = 1e-7
)

// ErrDegenerateFit is returned when the sample times cannot support a fit.
var ErrDegenerateFit = errors.New("regression: degenerate fit")

// Result holds the per-axis slope and intercept of x(t) = Slope·t + Intercept.
type Result struct {
	Slope     [3]float64
	Intercept [3]float64
	// Samples is the number of leading samples that were used.
	Samples int
}

// At evaluates the fitted line of every axis at t.
func (f Result) At(t float64) [3]float64 {
	var out [3]float64
	for k := range out {
		out[k] = f.Slope[k]*t + f.Intercept[k]
	}
	return out
}

// Points returns the number of samples a fit over n available samples uses
// when nPoints are requested.
func Points(nPoints, n int) int {
	if nPoints <= 0 {
		nPoints = DefaultPoints
	}
	return min(nPoints, n)
}

// Fit fits each of the three series against times using the first
// Points(nPoints, len(times)) samples. Every series must be at least as long
// as times.
func Fit(times []float64, series [3][]float64, nPoints int) (Result, error) {
	n := Points(nPoints, len(times))
	if n < 2 {
		return Result{}, fmt.Errorf("%w: need at least 2 samples, have %d", ErrDegenerateFit, n)
	}
	for k, s := range series {
		if len(s) < n {
			return Result{}, fmt.Errorf("regression: axis %d has %d samples, need %d", k, len(s), n)
		}
	}

	ts := times[:n]
	sumT := floats.Sum(ts)
	meanT := sumT / float64(n)
	denom := floats.Dot(ts, ts) - sumT*meanT
	if math.Abs(denom) < minDenominator || math.IsNaN(denom) {
		return Result{}, fmt.Errorf("%w: denominator %g over %d samples", ErrDegenerateFit, denom, n)
	}

	fit := Result{Samples: n}
	for k, s := range series {
		xs := s[:n]
		meanX := floats.Sum(xs) / float64(n)
		fit.Slope[k] = (floats.Dot(ts, xs) - sumT*meanX) / denom
		fit.Intercept[k] = meanX - fit.Slope[k]*meanT
	}
	return fit, nil
}
