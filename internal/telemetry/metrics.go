// Package telemetry exports engine outcomes as Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mattercore"

// Metrics implements matter.Metrics over a private Prometheus registry.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	live       *prometheus.GaugeVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		live: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_instances",
			Help:      "Instances alive per world.",
		}, []string{"world"}),
	}
	reg.MustRegister(
		m.operations,
		m.live,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe counts one operation outcome.
func (m *Metrics) Observe(operation, outcome string) {
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// SetLiveInstances records the live instance count of a world.
func (m *Metrics) SetLiveInstances(world string, n int) {
	m.live.WithLabelValues(world).Set(float64(n))
}

// ForgetWorld drops the series of a deleted world.
func (m *Metrics) ForgetWorld(world string) {
	m.live.DeleteLabelValues(world)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
