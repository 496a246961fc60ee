package loop

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/goslew/internal/testutil"
	"github.com/vnykmshr/goslew/pkg/common/errors"
	"github.com/vnykmshr/goslew/pkg/metrics"
	"github.com/vnykmshr/goslew/pkg/slew"
)

type harness struct {
	loop     *Loop
	ticker   *testutil.ManualTicker
	tickerCh chan *testutil.ManualTicker
	outputs  *testutil.Recorder
	cancel   context.CancelFunc
	errCh    chan error
}

func newLimiter(t *testing.T, rise, fall, period float64) *slew.Limiter {
	t.Helper()
	limiter, err := slew.New(rise, fall, period)
	testutil.AssertNoError(t, err)
	return limiter
}

func newHarness(t *testing.T, config Config) *harness {
	t.Helper()

	h := &harness{
		outputs:  testutil.NewRecorder(),
		tickerCh: make(chan *testutil.ManualTicker, 1),
	}
	if config.Sink == nil {
		config.Sink = func(_ context.Context, y float64) error {
			h.outputs.Record(y)
			return nil
		}
	}
	config.Ticker = func(interval time.Duration) Ticker {
		ticker := testutil.NewManualTicker(interval)
		h.tickerCh <- ticker
		return ticker
	}

	l, err := New(config)
	testutil.AssertNoError(t, err)
	h.loop = l
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()

	ctx, cancel := testutil.WithTimeout(t)
	h.cancel = cancel
	h.errCh = make(chan error, 1)
	go func() { h.errCh <- h.loop.Run(ctx) }()

	select {
	case h.ticker = <-h.tickerCh:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("Run did not create a ticker")
	}
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.errCh:
		return err
	case <-time.After(testutil.TestTimeout):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestNewValidation(t *testing.T) {
	valid := newLimiter(t, 1, 1, 0.1)
	var invalid *slew.Limiter
	source := NewSetpoint(0).Source()
	sink := func(context.Context, float64) error { return nil }

	tests := []struct {
		name   string
		config Config
	}{
		{"nil filter", Config{Source: source, Sink: sink}},
		{"invalid filter", Config{Filter: invalid, Source: source, Sink: sink}},
		{"zero-value filter", Config{Filter: &slew.Limiter{}, Source: source, Sink: sink}},
		{"nil source", Config{Filter: valid, Sink: sink}},
		{"nil sink", Config{Filter: valid, Source: source}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if !errors.IsValidationError(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if l != nil {
				t.Error("expected nil loop on error")
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	l, err := New(Config{
		Filter: newLimiter(t, 1, 1, 0.25),
		Source: NewSetpoint(0).Source(),
		Sink:   func(context.Context, float64) error { return nil },
	})
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, l.Interval(), 250*time.Millisecond)
	testutil.AssertEqual(t, l.name, "loop")
	testutil.AssertEqual(t, l.Output(), 0.0)
	testutil.AssertEqual(t, l.Running(), false)
}

func TestRunStepsFilterEachTick(t *testing.T) {
	setpoint := NewSetpoint(1)
	h := newHarness(t, Config{
		Filter: newLimiter(t, 1, 1, 0.1),
		Source: setpoint.Source(),
	})
	h.start(t)

	testutil.AssertEqual(t, h.ticker.Interval(), 100*time.Millisecond)

	reference := newLimiter(t, 1, 1, 0.1)
	var want []float64
	for i := 0; i < 3; i++ {
		h.ticker.Tick()
		want = append(want, reference.Update(1))
	}
	testutil.AssertEventually(t, func() bool { return h.outputs.Len() == 3 })

	got := h.outputs.Values()
	for i := range want {
		testutil.AssertEqual(t, got[i], want[i])
	}
	testutil.AssertEqual(t, h.loop.Output(), want[2])
	testutil.AssertEqual(t, h.loop.Ticks(), uint64(3))

	err := h.stop(t)
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if !h.ticker.Stopped() {
		t.Error("ticker should be stopped after Run returns")
	}
	testutil.AssertEqual(t, h.loop.Running(), false)
}

func TestSetRatesWhileRunning(t *testing.T) {
	h := newHarness(t, Config{
		Filter: newLimiter(t, 10, 10, 0.5), // factor 5
		Source: NewSetpoint(100).Source(),
	})
	h.start(t)
	defer h.stop(t)

	h.ticker.Tick()
	testutil.AssertEventually(t, func() bool { return h.outputs.Len() == 1 })
	testutil.AssertEqual(t, h.loop.Output(), 5.0)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, h.loop.SetRates(ctx, 40, 10)) // factor 20

	h.ticker.Tick()
	testutil.AssertEventually(t, func() bool { return h.outputs.Len() == 2 })
	testutil.AssertEqual(t, h.loop.Output(), 25.0)
}

func TestSetRatesBeforeRun(t *testing.T) {
	limiter := newLimiter(t, 1, 1, 1)
	h := newHarness(t, Config{
		Filter: limiter,
		Source: NewSetpoint(10).Source(),
	})

	testutil.AssertNoError(t, h.loop.SetRates(context.Background(), 4, 4))
	testutil.AssertEqual(t, limiter.RiseFactor(), 4.0)

	h.start(t)
	defer h.stop(t)

	h.ticker.Tick()
	testutil.AssertEventually(t, func() bool { return h.outputs.Len() == 1 })
	testutil.AssertEqual(t, h.loop.Output(), 4.0)
}

func TestSetRatesCanceledContext(t *testing.T) {
	h := newHarness(t, Config{
		Filter: newLimiter(t, 1, 1, 1),
		Source: NewSetpoint(0).Source(),
		Sink: func(ctx context.Context, _ float64) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	h.start(t)

	// The loop is stuck in the sink, so the request cannot be delivered.
	h.ticker.Tick()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := h.loop.SetRates(ctx, 2, 2)
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SetRates error = %v, want context.DeadlineExceeded", err)
	}

	h.stop(t)
}

func TestRunTwice(t *testing.T) {
	h := newHarness(t, Config{
		Filter: newLimiter(t, 1, 1, 1),
		Source: NewSetpoint(0).Source(),
	})
	h.start(t)
	defer h.stop(t)

	err := h.loop.Run(context.Background())
	if !stderrors.Is(err, errors.ErrAlreadyRunning) {
		t.Errorf("second Run error = %v, want ErrAlreadyRunning", err)
	}
}

func TestSourceErrorSkipsStep(t *testing.T) {
	reg := prometheus.NewRegistry()
	calls := testutil.NewCallbackTracker()
	sensorErr := stderrors.New("sensor offline")

	h := newHarness(t, Config{
		Name:   "pressure",
		Filter: newLimiter(t, 1, 1, 1),
		Source: func(context.Context) (float64, error) {
			calls.Mark()
			if calls.CallCount() == 1 {
				return 0, sensorErr
			}
			return 3, nil
		},
		Metrics: metrics.Config{Enabled: true, Registry: reg},
	})
	h.start(t)
	defer h.stop(t)

	h.ticker.Tick()
	h.ticker.Tick()
	testutil.AssertEventually(t, func() bool { return h.outputs.Len() == 1 })

	testutil.AssertEqual(t, h.outputs.Values()[0], 1.0)
	testutil.AssertEqual(t, h.loop.Ticks(), uint64(1))

	registry := metrics.For(metrics.Config{Registry: reg})
	testutil.AssertEqual(t, promtest.ToFloat64(registry.LoopErrors.WithLabelValues("pressure", "source")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(registry.LoopTicks.WithLabelValues("pressure")), 1.0)
}

func TestStopOnError(t *testing.T) {
	actuatorErr := stderrors.New("actuator fault")
	h := newHarness(t, Config{
		Filter:      newLimiter(t, 1, 1, 1),
		Source:      NewSetpoint(2).Source(),
		Sink:        func(context.Context, float64) error { return actuatorErr },
		StopOnError: true,
	})
	h.start(t)

	h.ticker.Tick()

	var err error
	select {
	case err = <-h.errCh:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("Run did not return after sink failure")
	}
	h.cancel()

	if !stderrors.Is(err, actuatorErr) {
		t.Fatalf("Run error = %v, want wrapped actuator fault", err)
	}
	var opErr *errors.OperationError
	if !stderrors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	testutil.AssertEqual(t, opErr.Context, "stage=sink")

	// The step still happened before the sink failed.
	testutil.AssertEqual(t, h.loop.Output(), 1.0)
}

func TestRunLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := newHarness(t, Config{
		Name:   "valve",
		Filter: newLimiter(t, 1, 1, 1),
		Source: NewSetpoint(0).Source(),
		Logger: &logger,
	})
	h.start(t)
	testutil.AssertNoError(t, h.loop.SetRates(context.Background(), 2, 2))
	h.stop(t)

	out := buf.String()
	for _, want := range []string{`"loop":"valve"`, "control loop started", "rates changed", "control loop stopped"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestWithMetricsLimiter(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc := metrics.Config{Enabled: true, Registry: reg}

	filter, err := slew.NewWithMetrics(slew.Config{RiseRate: 2, FallRate: 2, Period: 0.5}, "heater", mc)
	testutil.AssertNoError(t, err)

	h := newHarness(t, Config{
		Filter:  filter,
		Source:  NewSetpoint(5).Source(),
		Metrics: mc,
	})
	h.start(t)
	defer h.stop(t)

	h.ticker.Tick()
	h.ticker.Tick()
	testutil.AssertEventually(t, func() bool { return h.outputs.Len() == 2 })

	registry := metrics.For(mc)
	testutil.AssertEqual(t, promtest.ToFloat64(registry.SlewSteps.WithLabelValues("heater", "rise")), 2.0)
	testutil.AssertEqual(t, promtest.ToFloat64(registry.SlewOutput.WithLabelValues("heater")), 2.0)
}

func TestSetpoint(t *testing.T) {
	s := NewSetpoint(1.5)
	testutil.AssertEqual(t, s.Get(), 1.5)

	s.Set(-7.25)
	v, err := s.Source()(context.Background())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, -7.25)
}
