// Package svm computes three-phase PWM on-times from a voltage
// command in the alpha-beta frame (space-vector modulation). Modulate
// is a pure function; it holds no state between ticks.
package svm

import (
	"fmt"
	"math"
)

// Method selects how the zero vector is distributed over a switching
// period.
type Method int

const (
	// Symmetric splits the zero vector evenly on both sides of the
	// period.
	Symmetric Method = 1 + iota
	// BusClampOdd clamps one phase to a bus rail in the odd 60°
	// regions.
	BusClampOdd
	// BusClampEven clamps one phase to a bus rail in the even 60°
	// regions.
	BusClampEven
)

// Times is the per-period modulator output. OnA/OnB/OnC are duty
// register counts. Scale is the magnitude rescale applied when the
// command exceeds the hexagon boundary; 1 when Clipped is false.
type Times struct {
	OnA, OnB, OnC float32
	Sector        int
	Clipped       bool
	Scale         float32
}

const recipSqrt3 = 1 / 1.7320508075688772

// Modulate converts the normalized alpha-beta voltage command into
// on-times for a switching period of period counts. Overmodulation is
// not an error: the command's angle is kept and its magnitude is
// clipped to the hexagon boundary, reported through Clipped and
// Scale. An unknown method is rejected rather than producing zero
// on-times.
func Modulate(alpha, beta, period float32, method Method) (Times, error) {
	betaScaled := beta * recipSqrt3
	absAlpha := float32(math.Abs(float64(alpha)))
	absBeta := float32(math.Abs(float64(betaScaled)))

	// Sector from signs and magnitudes only; no trigonometry.
	var sector int
	if beta >= 0 {
		switch {
		case absAlpha < absBeta:
			sector = 2
		case alpha >= 0:
			sector = 1
		default:
			sector = 3
		}
	} else {
		switch {
		case absAlpha < absBeta:
			sector = 5
		case alpha >= 0:
			sector = 6
		default:
			sector = 4
		}
	}

	// Active-vector durations.
	var tx, ty float32
	if sector == 2 || sector == 5 {
		tx = alpha + absBeta
		ty = -alpha + absBeta
	} else {
		tx = absAlpha - absBeta
		ty = 2 * absBeta
	}

	// Zero-vector duration; clip proportionally in overmodulation
	// so the command's angle survives.
	t0 := 1 - tx - ty
	out := Times{Sector: sector, Scale: 1}
	if t0 < 0 {
		t0 = 0
		out.Clipped = true
		out.Scale = 1 / (tx + ty)
		tx *= out.Scale
		ty *= out.Scale
	}

	switch method {
	case Symmetric:
		t02 := t0 / 2
		// The row order is load-bearing: swapping two rows
		// silently inverts two line-to-line voltages.
		switch sector {
		case 1:
			out.OnA, out.OnB, out.OnC = tx+ty+t02, ty+t02, t02
		case 2:
			out.OnA, out.OnB, out.OnC = tx+t02, tx+ty+t02, t02
		case 3:
			out.OnA, out.OnB, out.OnC = t02, tx+ty+t02, tx+t02
		case 4:
			out.OnA, out.OnB, out.OnC = t02, tx+t02, tx+ty+t02
		case 5:
			out.OnA, out.OnB, out.OnC = tx+t02, t02, tx+ty+t02
		case 6:
			out.OnA, out.OnB, out.OnC = tx+ty+t02, t02, ty+t02
		}
	case BusClampOdd:
		switch sector {
		case 1:
			out.OnA, out.OnB, out.OnC = 1, ty+t0, t0
		case 2:
			out.OnA, out.OnB, out.OnC = tx, tx+ty, 0
		case 3:
			out.OnA, out.OnB, out.OnC = t0, 1, tx+t0
		case 4:
			out.OnA, out.OnB, out.OnC = 0, tx, tx+ty
		case 5:
			out.OnA, out.OnB, out.OnC = tx+t0, t0, 1
		case 6:
			out.OnA, out.OnB, out.OnC = tx+ty, 0, ty
		}
	case BusClampEven:
		switch sector {
		case 1:
			out.OnA, out.OnB, out.OnC = tx+ty, ty, 0
		case 2:
			out.OnA, out.OnB, out.OnC = tx+t0, 1, t0
		case 3:
			out.OnA, out.OnB, out.OnC = 0, tx+ty, tx
		case 4:
			out.OnA, out.OnB, out.OnC = t0, tx+t0, 1
		case 5:
			out.OnA, out.OnB, out.OnC = tx, 0, tx+ty
		case 6:
			out.OnA, out.OnB, out.OnC = 1, t0, ty+t0
		}
	default:
		return Times{}, fmt.Errorf("svm: unknown method %d", method)
	}

	out.OnA *= period
	out.OnB *= period
	out.OnC *= period
	return out, nil
}
