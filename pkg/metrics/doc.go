// Package metrics provides Prometheus instrumentation for goslew components.
//
// # Overview
//
// The metrics package backs the instrumented variants of:
//   - Slew limiters (steps by clamp branch, last input and output, factors)
//   - Control loops (ticks, source and sink failures)
//   - Rate profile schedulers (profile switches and failures)
//
// # Quick Start
//
//	registry := prometheus.NewRegistry()
//	limiter, err := slew.NewWithMetrics(
//		slew.Config{RiseRate: 2, FallRate: 4, Period: 0.01},
//		"throttle",
//		metrics.Config{Enabled: true, Registry: registry},
//	)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// # Available Metrics
//
//   - goslew_slew_steps_total: update steps, labelled by clamp ("none", "rise", "fall")
//   - goslew_slew_input: raw input of the last step
//   - goslew_slew_output: limited output of the last step
//   - goslew_slew_rise_factor, goslew_slew_fall_factor: per-step clamp factors
//   - goslew_slew_reconfigurations_total: successful SetRates calls
//   - goslew_loop_ticks_total: processed control loop ticks
//   - goslew_loop_errors_total: source/sink failures, labelled by stage
//   - goslew_profile_switches_total, goslew_profile_failures_total
//
// # Sharing
//
// For caches one Registry per (registerer, namespace) pair, so any number of
// limiters may report into the same prometheus.Registry. Instances are told
// apart by their limiter_name, loop_name and scheduler_name labels.
package metrics
