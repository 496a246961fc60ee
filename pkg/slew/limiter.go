package slew

import (
	"time"

	"github.com/vnykmshr/goslew/pkg/common/validation"
)

// Filter is the contract shared by Limiter and MetricsLimiter. Consumers
// that only drive a limiter, such as a control loop, should accept a Filter.
type Filter interface {
	// Update advances the filter by one period and returns the limited output.
	Update(x float64) float64

	// SetRates changes the rise and fall rates, keeping the current output.
	SetRates(riseRate, fallRate float64) error

	// Period returns the fixed update period in seconds.
	Period() float64

	// Valid reports whether the filter was successfully constructed.
	Valid() bool
}

// Clamp identifies which branch of the update recurrence produced an output.
type Clamp int

const (
	// ClampNone means the input passed through unchanged.
	ClampNone Clamp = iota

	// ClampRise means the output was limited by the rise factor.
	ClampRise

	// ClampFall means the output was limited by the fall factor.
	ClampFall
)

func (c Clamp) String() string {
	switch c {
	case ClampNone:
		return "none"
	case ClampRise:
		return "rise"
	case ClampFall:
		return "fall"
	default:
		return "unknown"
	}
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// RiseRate is the maximum increase of the output in signal units per second.
	RiseRate float64

	// FallRate is the maximum decrease of the output in signal units per second.
	FallRate float64

	// Period is the fixed interval between Update calls, in seconds.
	// It must be positive.
	Period float64
}

// Limiter bounds how fast a single scalar signal may change per update step.
//
// A Limiter is not safe for concurrent use; callers sharing one between
// goroutines must serialize access. The zero value and a nil *Limiter are
// invalid instances: Update returns 0, Valid returns false and SetRates
// fails.
type Limiter struct {
	prev   float64
	kRise  float64
	kFall  float64
	period float64
	valid  bool
}

var _ Filter = (*Limiter)(nil)

// New creates a slew rate limiter. riseRate and fallRate are in signal units
// per second and are not validated; period is the update interval in seconds
// and must be positive.
func New(riseRate, fallRate, period float64) (*Limiter, error) {
	return NewWithConfig(Config{
		RiseRate: riseRate,
		FallRate: fallRate,
		Period:   period,
	})
}

// NewEvery creates a slew rate limiter updated once per interval.
func NewEvery(riseRate, fallRate float64, interval time.Duration) (*Limiter, error) {
	if err := validation.ValidatePositiveDuration("slew", "interval", interval); err != nil {
		return nil, err
	}
	return New(riseRate, fallRate, interval.Seconds())
}

// NewWithConfig creates a slew rate limiter from config.
func NewWithConfig(config Config) (*Limiter, error) {
	if err := validation.ValidatePositiveFloat("slew", "period", config.Period); err != nil {
		return nil, err
	}

	l := &Limiter{
		period: config.Period,
		valid:  true,
	}
	l.setFactors(config.RiseRate, config.FallRate)
	return l, nil
}

func (l *Limiter) setFactors(riseRate, fallRate float64) {
	l.kRise = riseRate * l.period
	l.kFall = fallRate * l.period
}
