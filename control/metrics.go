// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics registry with dynamic counter registration, backed by
// VictoriaMetrics so snapshots come out in Prometheus exposition format.

package control

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// MetricsRegistry holds the transport layer's counters.
type MetricsRegistry struct {
	set *metrics.Set
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{set: metrics.NewSet()}
}

// Counter returns the named counter, registering it on first use.
func (mr *MetricsRegistry) Counter(name string) *metrics.Counter {
	return mr.set.GetOrCreateCounter(name)
}

// Gauge returns the named gauge, registering it on first use.
func (mr *MetricsRegistry) Gauge(name string, f func() float64) *metrics.Gauge {
	return mr.set.GetOrCreateGauge(name, f)
}

// WritePrometheus dumps the current snapshot.
func (mr *MetricsRegistry) WritePrometheus(w io.Writer) {
	mr.set.WritePrometheus(w)
}

// defaultRegistry collects the package-wide counters incremented by the
// facade, the bridge and the reactors.
var defaultRegistry = NewMetricsRegistry()

// Default returns the process-wide registry.
func Default() *MetricsRegistry { return defaultRegistry }

// Counter is shorthand for Default().Counter.
func Counter(name string) *metrics.Counter {
	return defaultRegistry.Counter(name)
}

// WritePrometheus dumps the process-wide registry snapshot.
func WritePrometheus(w io.Writer) {
	defaultRegistry.WritePrometheus(w)
}
