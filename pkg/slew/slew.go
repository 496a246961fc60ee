package slew

import (
	"time"

	"github.com/vnykmshr/goslew/pkg/common/errors"
)

// Update advances the limiter by one period and returns the limited output.
//
// On an invalid limiter Update returns 0 and changes nothing. Callers that
// need to tell that case apart from a genuine 0 output should use TryUpdate.
func (l *Limiter) Update(x float64) float64 {
	y, _ := l.Step(x)
	return y
}

// Step is Update that also reports which branch limited the output.
// An exact tie with a factor counts as clamped.
func (l *Limiter) Step(x float64) (float64, Clamp) {
	if !l.Valid() {
		return 0, ClampNone
	}

	var (
		y     float64
		clamp Clamp
	)

	dx := x - l.prev
	switch {
	case dx >= l.kRise:
		y = l.prev + l.kRise
		clamp = ClampRise
	case dx <= -l.kFall:
		y = l.prev - l.kFall
		clamp = ClampFall
	default:
		// NaN also lands here and propagates to the output.
		y = x
	}

	l.prev = y
	return y, clamp
}

// TryUpdate is Update with an explicit error for invalid limiters.
func (l *Limiter) TryUpdate(x float64) (float64, error) {
	if !l.Valid() {
		return 0, errors.ErrInvalidLimiter
	}
	return l.Update(x), nil
}

// ProcessBlock runs Update over consecutive samples of one channel in place,
// one period per sample, and returns the number of samples processed.
func (l *Limiter) ProcessBlock(block []float64) int {
	if !l.Valid() {
		return 0
	}
	for i, x := range block {
		block[i] = l.Update(x)
	}
	return len(block)
}

// Valid reports whether the limiter was successfully constructed.
func (l *Limiter) Valid() bool {
	return l != nil && l.valid
}

// SetRates recomputes the rise and fall factors from the fixed period.
// The current output is kept, so the next Update continues from it.
func (l *Limiter) SetRates(riseRate, fallRate float64) error {
	if !l.Valid() {
		return errors.NewOperationError("slew", "SetRates", errors.ErrInvalidLimiter)
	}
	l.setFactors(riseRate, fallRate)
	return nil
}

// Output returns the most recent output, or 0 before the first update.
func (l *Limiter) Output() float64 {
	if !l.Valid() {
		return 0
	}
	return l.prev
}

// RiseFactor returns the maximum increase per update step.
func (l *Limiter) RiseFactor() float64 {
	if !l.Valid() {
		return 0
	}
	return l.kRise
}

// FallFactor returns the maximum decrease per update step.
func (l *Limiter) FallFactor() float64 {
	if !l.Valid() {
		return 0
	}
	return l.kFall
}

// Period returns the update period in seconds.
func (l *Limiter) Period() float64 {
	if !l.Valid() {
		return 0
	}
	return l.period
}

// Interval returns the update period as a time.Duration.
func (l *Limiter) Interval() time.Duration {
	return time.Duration(l.Period() * float64(time.Second))
}

// Rates returns the rise and fall rates in signal units per second.
func (l *Limiter) Rates() (riseRate, fallRate float64) {
	if !l.Valid() {
		return 0, 0
	}
	return l.kRise / l.period, l.kFall / l.period
}
