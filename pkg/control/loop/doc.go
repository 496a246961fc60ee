/*
Package loop drives a slew limiter at its fixed update period.

A slew.Limiter performs no timing of its own: the caller commits to calling
Update once per period. Loop is that caller. It owns a ticker running at the
filter's period, reads a Source on every tick, steps the filter and hands
the result to a Sink.

Basic usage:

	limiter, _ := slew.New(5, 10, 0.02) // 20ms period
	target := loop.NewSetpoint(0)

	l, err := loop.New(loop.Config{
		Name:   "throttle",
		Filter: limiter,
		Source: target.Source(),
		Sink: func(ctx context.Context, y float64) error {
			return actuator.Write(y)
		},
	})
	if err != nil {
		return err
	}
	go l.Run(ctx)

	target.Set(80) // the output ramps towards 80 at 5 units/s

Ownership:

Loop is the single owner of its filter. Rate changes made with
Loop.SetRates are applied on the loop goroutine between two ticks, so they
never race with a step. Do not call the filter directly while Run is
active.

Failures:

A failing Source skips the step and the output holds. A failing Sink is
reported after the step. Both are logged and counted; with StopOnError the
first failure ends Run with an *errors.OperationError wrapping the cause.
*/
package loop
