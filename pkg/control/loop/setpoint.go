package loop

import (
	"context"
	"math"
	"sync/atomic"
)

// Setpoint is a raw target value that may be changed from any goroutine
// and read by a Loop through its Source.
type Setpoint struct {
	bits atomic.Uint64
}

// NewSetpoint creates a Setpoint holding v.
func NewSetpoint(v float64) *Setpoint {
	s := &Setpoint{}
	s.Set(v)
	return s
}

// Set replaces the target value.
func (s *Setpoint) Set(v float64) {
	s.bits.Store(math.Float64bits(v))
}

// Get returns the target value.
func (s *Setpoint) Get() float64 {
	return math.Float64frombits(s.bits.Load())
}

// Source returns a Source that always succeeds with the current value.
func (s *Setpoint) Source() Source {
	return func(context.Context) (float64, error) {
		return s.Get(), nil
	}
}
