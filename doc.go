/*
Package goslew provides slew-rate limiting for sampled control signals.

A slew-rate limiter bounds how fast a signal may change: the output follows
the input, but never rises faster than a rise rate or falls faster than a
fall rate, in units per second, when updated at a fixed period.

Slew limiting (pkg/slew):
  - Limiter: the fixed-period rate limiter
  - MetricsLimiter: a Limiter with Prometheus instrumentation

Control (pkg/control):
  - loop: drives a limiter from a source to a sink at its period
  - profile: switches rates on cron schedules

Example usage:

	import "github.com/vnykmshr/goslew/pkg/slew"

	limiter, _ := slew.New(5, 10, 0.01) // 5 units/s up, 10 down, 100 Hz

	for range ticker.C {
		actuator.Write(limiter.Update(sensor.Read()))
	}
*/
package goslew
