package orient

import (
	"fmt"
	"strings"

	"github.com/star/expseries/internal/interp"
)

// Extrapolation selects how a linear series answers queries earlier than its
// first sample.
type Extrapolation int

const (
	// ExtrapolateNone uses the first velocity sample as a constant slope when
	// velocity columns exist, and clamps to the first sample otherwise.
	ExtrapolateNone Extrapolation = iota
	// ExtrapolateVelocity fits a line to the leading positions and uses its
	// slope as a constant velocity.
	ExtrapolateVelocity
	// ExtrapolateAccelerated fits a line to the leading velocities, giving a
	// velocity that changes linearly with time.
	ExtrapolateAccelerated
)

func (e Extrapolation) String() string {
	switch e {
	case ExtrapolateVelocity:
		return "velocity"
	case ExtrapolateAccelerated:
		return "accelerated"
	default:
		return "none"
	}
}

// ParseExtrapolation parses "none", "velocity" or "accelerated". The empty
// string selects ExtrapolateNone.
func ParseExtrapolation(s string) (Extrapolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ExtrapolateNone, nil
	case "velocity":
		return ExtrapolateVelocity, nil
	case "accelerated":
		return ExtrapolateAccelerated, nil
	default:
		return ExtrapolateNone, fmt.Errorf("orient: unknown extrapolation %q (want none, velocity or accelerated)", s)
	}
}

// Config fixes how a series is built and queried.
type Config struct {
	Mode          interp.Mode
	Extrapolation Extrapolation
	// HasVelocity reports that samples carry u,v,w velocity columns.
	HasVelocity bool
	// FitPoints is the number of leading samples used by the regression;
	// <= 0 selects regression.DefaultPoints.
	FitPoints int
}
