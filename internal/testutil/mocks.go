package testutil

import (
	"sync"
	"time"
)

// ManualTicker is a ticker driven by the test instead of the wall clock.
// It satisfies the loop package's Ticker interface.
type ManualTicker struct {
	ch       chan time.Time
	mu       sync.Mutex
	stopped  bool
	interval time.Duration
	now      time.Time
}

// NewManualTicker creates a ManualTicker that reports the given interval.
func NewManualTicker(interval time.Duration) *ManualTicker {
	return &ManualTicker{
		ch:       make(chan time.Time),
		interval: interval,
		now:      time.Unix(0, 0),
	}
}

// C returns the tick channel.
func (m *ManualTicker) C() <-chan time.Time {
	return m.ch
}

// Stop marks the ticker stopped. Pending Tick calls are not affected.
func (m *ManualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Stopped reports whether Stop was called.
func (m *ManualTicker) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Interval returns the interval the ticker was created with.
func (m *ManualTicker) Interval() time.Duration {
	return m.interval
}

// Tick delivers one tick, blocking until the receiver takes it.
func (m *ManualTicker) Tick() {
	m.mu.Lock()
	m.now = m.now.Add(m.interval)
	now := m.now
	m.mu.Unlock()

	m.ch <- now
}

// Recorder collects float64 values from concurrent producers.
type Recorder struct {
	mu     sync.Mutex
	values []float64
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a value.
func (r *Recorder) Record(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

// Values returns a copy of the recorded values.
func (r *Recorder) Values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of recorded values.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// CallbackTracker counts invocations of a callback and keeps the last value.
type CallbackTracker struct {
	mu    sync.Mutex
	count int
	value interface{}
}

// NewCallbackTracker creates a new CallbackTracker.
func NewCallbackTracker() *CallbackTracker {
	return &CallbackTracker{}
}

// Mark records one call, optionally with a value.
func (c *CallbackTracker) Mark(value ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if len(value) > 0 {
		c.value = value[0]
	}
}

// Called reports whether Mark was called at least once.
func (c *CallbackTracker) Called() bool {
	return c.CallCount() > 0
}

// CallCount returns the number of Mark calls.
func (c *CallbackTracker) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Value returns the last value passed to Mark.
func (c *CallbackTracker) Value() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
