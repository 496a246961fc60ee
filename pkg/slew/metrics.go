package slew

import (
	"github.com/vnykmshr/goslew/pkg/common/errors"
	"github.com/vnykmshr/goslew/pkg/common/validation"
	"github.com/vnykmshr/goslew/pkg/metrics"
)

// MetricsLimiter wraps a Limiter with Prometheus metrics collection.
// Like Limiter it is not safe for concurrent use.
type MetricsLimiter struct {
	limiter  *Limiter
	name     string
	registry *metrics.Registry
	enabled  bool
}

var _ Filter = (*MetricsLimiter)(nil)

// NewWithMetrics creates a slew rate limiter that reports under name.
func NewWithMetrics(config Config, name string, metricsConfig metrics.Config) (*MetricsLimiter, error) {
	if err := validation.ValidateNotEmpty("slew", "name", name); err != nil {
		return nil, err
	}

	base, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}

	ml := &MetricsLimiter{
		limiter: base,
		name:    name,
	}
	if err := ml.EnableMetrics(metricsConfig); err != nil {
		return nil, err
	}
	return ml, nil
}

// Update advances the limiter by one period and returns the limited output.
func (ml *MetricsLimiter) Update(x float64) float64 {
	y, _ := ml.Step(x)
	return y
}

// Step is Update that also reports which branch limited the output.
func (ml *MetricsLimiter) Step(x float64) (float64, Clamp) {
	y, clamp := ml.limiter.Step(x)

	if ml.enabled {
		ml.registry.SlewSteps.WithLabelValues(ml.name, clamp.String()).Inc()
		ml.registry.SlewInput.WithLabelValues(ml.name).Set(x)
		ml.registry.SlewOutput.WithLabelValues(ml.name).Set(y)
	}

	return y, clamp
}

// TryUpdate is Update with an explicit error for invalid limiters.
func (ml *MetricsLimiter) TryUpdate(x float64) (float64, error) {
	if !ml.Valid() {
		return 0, errors.ErrInvalidLimiter
	}
	return ml.Update(x), nil
}

// SetRates changes the rise and fall rates, keeping the current output.
func (ml *MetricsLimiter) SetRates(riseRate, fallRate float64) error {
	if err := ml.limiter.SetRates(riseRate, fallRate); err != nil {
		return err
	}

	if ml.enabled {
		ml.registry.SlewReconfigurations.WithLabelValues(ml.name).Inc()
		ml.recordFactors()
	}
	return nil
}

// Valid reports whether the wrapped limiter is valid.
func (ml *MetricsLimiter) Valid() bool {
	return ml != nil && ml.limiter.Valid()
}

// Period returns the update period in seconds.
func (ml *MetricsLimiter) Period() float64 {
	return ml.limiter.Period()
}

// Output returns the most recent output.
func (ml *MetricsLimiter) Output() float64 {
	return ml.limiter.Output()
}

// Limiter returns the wrapped limiter.
func (ml *MetricsLimiter) Limiter() *Limiter {
	return ml.limiter
}

// Name returns the limiter_name label value.
func (ml *MetricsLimiter) Name() string {
	return ml.name
}

// EnableMetrics enables metrics collection.
func (ml *MetricsLimiter) EnableMetrics(config metrics.Config) error {
	ml.enabled = config.Enabled
	if !config.Enabled {
		return nil
	}

	ml.registry = metrics.For(config)
	ml.recordFactors()
	return nil
}

// DisableMetrics disables metrics collection.
func (ml *MetricsLimiter) DisableMetrics() {
	ml.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ml *MetricsLimiter) MetricsEnabled() bool {
	return ml.enabled
}

func (ml *MetricsLimiter) recordFactors() {
	ml.registry.SlewRiseFactor.WithLabelValues(ml.name).Set(ml.limiter.RiseFactor())
	ml.registry.SlewFallFactor.WithLabelValues(ml.name).Set(ml.limiter.FallFactor())
}
