/*
Package slew provides a slew rate limiter for a single scalar signal.

A slew rate limiter bounds how fast its output may change per update step,
independently for rising and falling directions. It is meant to sit in a
fixed-period control loop and smooth a raw setpoint or sensor value so that
downstream actuators never see a step larger than rate times period.

Basic usage:

	limiter, err := slew.New(2, 4, 0.01) // 2 units/s up, 4 units/s down, 10ms period
	if err != nil {
		// period was not positive
	}
	y := limiter.Update(x) // call once per period

Update Recurrence:

Each Update computes dx = x - previous output, then:
  - dx >= riseRate*period: the output rises by exactly riseRate*period
  - dx <= -fallRate*period: the output falls by exactly fallRate*period
  - otherwise the input passes through unchanged

Ties with a limit count as clamped. Step returns the same output together
with the Clamp branch that produced it.

Rates are not validated. A negative rate inverts the direction of its clamp
and a zero rate freezes the output against change in that direction.

Invalid Limiters:

A nil *Limiter (as returned by a failed New) and the zero value Limiter are
invalid. Invalidity is reported differently per operation:

	limiter.Update(x)          // returns 0, changes nothing
	limiter.TryUpdate(x)       // returns 0, errors.ErrInvalidLimiter
	limiter.SetRates(r, f)     // returns an error wrapping errors.ErrInvalidLimiter
	limiter.Valid()            // returns false

Reconfiguration:

SetRates recomputes the clamp factors from the fixed period and keeps the
current output, so the next Update continues from the last emitted value:

	limiter.SetRates(10, 10)

Metrics:

NewWithMetrics returns a MetricsLimiter that records steps by clamp branch,
the last input and output, and the current factors to Prometheus.

Thread Safety:

Limiter and MetricsLimiter are not safe for concurrent use. Give each
control loop its own instance or drive it through loop.Loop, which
serializes steps and rate changes.
*/
package slew
