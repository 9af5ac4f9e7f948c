// Package metrics counts round-trip operations and scenarios in Prometheus
// form.
//
// A Collector implements harness.Observer. Its series live on a private
// registry so several collectors can coexist in one process (tests do).
// The text exposition can be written to a file for the node-exporter
// textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roundtrip"

// Collector records harness observations.
type Collector struct {
	registry  *prometheus.Registry
	ops       *prometheus.CounterVec
	durations *prometheus.HistogramVec
	scenarios *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Counts store operations by operation and outcome",
		}, []string{"op", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of store operations by operation",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"op"}),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Counts finished scenarios by result",
		}, []string{"result"}),
	}
	c.registry.MustRegister(c.ops, c.durations, c.scenarios)
	return c
}

// ObserveOp counts one finished operation.
func (c *Collector) ObserveOp(op, outcome string, elapsed time.Duration) {
	c.ops.WithLabelValues(op, outcome).Inc()
	c.durations.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveScenario counts one finished scenario as pass or fail.
func (c *Collector) ObserveScenario(_ string, pass bool) {
	result := "fail"
	if pass {
		result = "pass"
	}
	c.scenarios.WithLabelValues(result).Inc()
}

// Registry exposes the collector's registry, e.g. for promhttp.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteFile writes the current values in text exposition format to path.
// The file is replaced atomically.
func (c *Collector) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
