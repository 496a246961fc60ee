package loop

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/goslew/pkg/common/errors"
	"github.com/vnykmshr/goslew/pkg/common/validation"
	"github.com/vnykmshr/goslew/pkg/metrics"
	"github.com/vnykmshr/goslew/pkg/slew"
)

// Source produces the raw input for one period.
type Source func(ctx context.Context) (float64, error)

// Sink consumes the limited output of one period.
type Sink func(ctx context.Context, y float64) error

// Config holds configuration options for creating a new Loop.
type Config struct {
	// Name identifies the loop in logs and metrics. Defaults to "loop".
	Name string

	// Filter is stepped once per tick. Its Period sets the tick interval.
	Filter slew.Filter

	// Source is read once per tick.
	Source Source

	// Sink receives every output.
	Sink Sink

	// Ticker creates the timing source. If nil, SystemTicker is used.
	Ticker TickerFunc

	// Logger receives lifecycle and failure events. If nil, nothing is logged.
	Logger *zerolog.Logger

	// Metrics configures Prometheus collection.
	Metrics metrics.Config

	// StopOnError makes Run return on the first source or sink failure
	// instead of logging it and waiting for the next tick.
	StopOnError bool
}

type rateRequest struct {
	rise, fall float64
	done       chan error
}

// Loop drives a slew.Filter at its fixed period. It is the single owner of
// the filter: steps and rate changes are serialized, so Loop methods are
// safe for concurrent use.
type Loop struct {
	name        string
	filter      slew.Filter
	source      Source
	sink        Sink
	newTicker   TickerFunc
	interval    time.Duration
	logger      zerolog.Logger
	registry    *metrics.Registry
	stopOnError bool

	mu       sync.Mutex
	running  bool
	stopped  chan struct{}
	requests chan rateRequest

	ticks  atomic.Uint64
	output atomic.Uint64
}

// New creates a Loop from config.
func New(config Config) (*Loop, error) {
	if err := validation.ValidateNotNil("loop", "filter", config.Filter); err != nil {
		return nil, err
	}
	if !config.Filter.Valid() {
		return nil, errors.NewValidationError("loop", "filter", config.Filter, "filter is not initialized").
			WithHint("construct the filter with slew.New and check its error")
	}
	if config.Source == nil {
		return nil, errors.NewValidationError("loop", "source", nil, "cannot be nil").
			WithHint("provide a valid source")
	}
	if config.Sink == nil {
		return nil, errors.NewValidationError("loop", "sink", nil, "cannot be nil").
			WithHint("provide a valid sink")
	}

	interval := time.Duration(config.Filter.Period() * float64(time.Second))
	if err := validation.ValidatePositiveDuration("loop", "interval", interval); err != nil {
		return nil, err
	}

	if config.Name == "" {
		config.Name = "loop"
	}
	if config.Ticker == nil {
		config.Ticker = SystemTicker
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	l := &Loop{
		name:        config.Name,
		filter:      config.Filter,
		source:      config.Source,
		sink:        config.Sink,
		newTicker:   config.Ticker,
		interval:    interval,
		logger:      logger.With().Str("loop", config.Name).Logger(),
		stopOnError: config.StopOnError,
		requests:    make(chan rateRequest),
	}
	if config.Metrics.Enabled {
		l.registry = metrics.For(config.Metrics)
	}
	return l, nil
}

// Run steps the filter once per tick until ctx is done or, with
// StopOnError, a source or sink fails. It returns ctx.Err() on
// cancellation and ErrAlreadyRunning if the loop is already running.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.ErrAlreadyRunning
	}
	l.running = true
	l.stopped = make(chan struct{})
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		close(l.stopped)
		l.mu.Unlock()
	}()

	ticker := l.newTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info().Dur("interval", l.interval).Msg("control loop started")

	for {
		// Cancellation wins over a pending tick
		if ctx.Err() != nil {
			l.logger.Info().Uint64("ticks", l.Ticks()).Msg("control loop stopped")
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			continue

		case req := <-l.requests:
			req.done <- l.applyRates(req.rise, req.fall)

		case <-ticker.C():
			if err := l.tick(ctx); err != nil && l.stopOnError {
				l.logger.Error().Err(err).Msg("control loop aborted")
				return err
			}
		}
	}
}

// SetRates changes the filter's rates between two ticks. While Run is
// active the change is handed to the loop goroutine; otherwise it is
// applied directly.
func (l *Loop) SetRates(ctx context.Context, riseRate, fallRate float64) error {
	l.mu.Lock()
	if !l.running {
		defer l.mu.Unlock()
		return l.applyRates(riseRate, fallRate)
	}
	stopped := l.stopped
	l.mu.Unlock()

	req := rateRequest{rise: riseRate, fall: fallRate, done: make(chan error, 1)}

	select {
	case l.requests <- req:
		return <-req.done
	case <-stopped:
		return l.SetRates(ctx, riseRate, fallRate)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Output returns the most recent output, or 0 before the first tick.
func (l *Loop) Output() float64 {
	return math.Float64frombits(l.output.Load())
}

// Ticks returns the number of completed filter steps.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Interval returns the tick interval derived from the filter period.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) applyRates(riseRate, fallRate float64) error {
	if err := l.filter.SetRates(riseRate, fallRate); err != nil {
		return err
	}
	l.logger.Info().Float64("rise_rate", riseRate).Float64("fall_rate", fallRate).Msg("rates changed")
	return nil
}

// tick reads the source, steps the filter and writes the sink. A source
// failure skips the step so the output holds its last value.
func (l *Loop) tick(ctx context.Context) error {
	x, err := l.source(ctx)
	if err != nil {
		return l.fail("source", err)
	}

	y := l.filter.Update(x)
	l.output.Store(math.Float64bits(y))
	l.ticks.Add(1)

	if l.registry != nil {
		l.registry.LoopTicks.WithLabelValues(l.name).Inc()
	}

	if err := l.sink(ctx, y); err != nil {
		return l.fail("sink", err)
	}
	return nil
}

func (l *Loop) fail(stage string, err error) error {
	if l.registry != nil {
		l.registry.LoopErrors.WithLabelValues(l.name, stage).Inc()
	}
	l.logger.Warn().Err(err).Str("stage", stage).Msg("control loop step failed")

	return errors.NewOperationError("loop", "Run", err).WithContext("stage=" + stage)
}
