// Package metrics provides Prometheus instrumentation for goslew components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for goslew components.
type Registry struct {
	// Slew limiter metrics
	SlewSteps            *prometheus.CounterVec
	SlewInput            *prometheus.GaugeVec
	SlewOutput           *prometheus.GaugeVec
	SlewRiseFactor       *prometheus.GaugeVec
	SlewFallFactor       *prometheus.GaugeVec
	SlewReconfigurations *prometheus.CounterVec

	// Control loop metrics
	LoopTicks  *prometheus.CounterVec
	LoopErrors *prometheus.CounterVec

	// Rate profile metrics
	ProfileSwitches *prometheus.CounterVec
	ProfileFailures *prometheus.CounterVec
}

type registryKey struct {
	reg       prometheus.Registerer
	namespace string
}

var (
	registriesMu sync.Mutex
	registries   = make(map[registryKey]*Registry)
)

// Default returns the registry bound to prometheus.DefaultRegisterer.
func Default() *Registry {
	return For(DefaultConfig())
}

// For returns the registry for cfg.Registry and cfg.Namespace, creating and
// registering the collectors on first use. Components sharing a registerer
// share collectors and are told apart by their name labels. A nil
// cfg.Registry selects prometheus.DefaultRegisterer.
func For(cfg Config) *Registry {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	key := registryKey{reg: cfg.Registry, namespace: cfg.Namespace}

	registriesMu.Lock()
	defer registriesMu.Unlock()

	if r, ok := registries[key]; ok {
		return r
	}
	r := NewRegistryWithConfig(cfg)
	registries[key] = r
	return r
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
// Registering twice on the same registerer panics; use For to share.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig creates a registry honouring the namespace and
// constant labels of cfg.
func NewRegistryWithConfig(cfg Config) *Registry {
	factory := promauto.With(cfg.Registry)

	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	labels := cfg.Labels

	return &Registry{
		SlewSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "slew",
				Name:        "steps_total",
				Help:        "Total number of limiter update steps by clamp branch",
				ConstLabels: labels,
			},
			[]string{"limiter_name", "clamp"},
		),

		SlewInput: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "slew",
				Name:        "input",
				Help:        "Raw input of the most recent update step",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		SlewOutput: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "slew",
				Name:        "output",
				Help:        "Limited output of the most recent update step",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		SlewRiseFactor: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "slew",
				Name:        "rise_factor",
				Help:        "Maximum permitted increase per update step",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		SlewFallFactor: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "slew",
				Name:        "fall_factor",
				Help:        "Maximum permitted decrease per update step",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		SlewReconfigurations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "slew",
				Name:        "reconfigurations_total",
				Help:        "Total number of successful rate reconfigurations",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		LoopTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "loop",
				Name:        "ticks_total",
				Help:        "Total number of control loop ticks processed",
				ConstLabels: labels,
			},
			[]string{"loop_name"},
		),

		LoopErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "loop",
				Name:        "errors_total",
				Help:        "Total number of source or sink failures",
				ConstLabels: labels,
			},
			[]string{"loop_name", "stage"},
		),

		ProfileSwitches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "profile",
				Name:        "switches_total",
				Help:        "Total number of rate profiles applied",
				ConstLabels: labels,
			},
			[]string{"scheduler_name", "profile"},
		),

		ProfileFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "profile",
				Name:        "failures_total",
				Help:        "Total number of rate profiles that failed to apply",
				ConstLabels: labels,
			},
			[]string{"scheduler_name", "profile"},
		),
	}
}
