package ecs

// The runner optionally reports into a Prometheus registry. The sink
// interface keeps the hot path free of metric updates when no registry is
// configured.

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
	observeTick(runner string, d time.Duration, ran, skipped int)
	addCommandFailures(runner string, n int)
	setComputePending(runner string, n int)
}

type noopMetrics struct{}

func (noopMetrics) observeTick(string, time.Duration, int, int) {}
func (noopMetrics) addCommandFailures(string, int)              {}
func (noopMetrics) setComputePending(string, int)               {}

type promMetrics struct {
	ticks           *prometheus.HistogramVec
	systems         *prometheus.CounterVec
	commandFailures *prometheus.CounterVec
	computePending  *prometheus.GaugeVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	m := &promMetrics{
		ticks: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lattice",
				Name:      "tick_duration_seconds",
				Help:      "Duration of runner ticks.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			}, []string{"runner"}),
		systems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lattice",
				Name:      "systems_total",
				Help:      "Number of systems executed and skipped.",
			}, []string{"runner", "outcome"}),
		commandFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lattice",
				Name:      "command_failures_total",
				Help:      "Number of deferred commands dropped on apply.",
			}, []string{"runner"}),
		computePending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "lattice",
				Name:      "compute_pending_tasks",
				Help:      "Tasks pending in the compute pool after the tick.",
			}, []string{"runner"}),
	}
	reg.MustRegister(m.ticks, m.systems, m.commandFailures, m.computePending)
	return m
}

func (m *promMetrics) observeTick(runner string, d time.Duration, ran, skipped int) {
	m.ticks.WithLabelValues(runner).Observe(d.Seconds())
	m.systems.WithLabelValues(runner, "ran").Add(float64(ran))
	m.systems.WithLabelValues(runner, "skipped").Add(float64(skipped))
}

func (m *promMetrics) addCommandFailures(runner string, n int) {
	if n > 0 {
		m.commandFailures.WithLabelValues(runner).Add(float64(n))
	}
}

func (m *promMetrics) setComputePending(runner string, n int) {
	m.computePending.WithLabelValues(runner).Set(float64(n))
}

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
