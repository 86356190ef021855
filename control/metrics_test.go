// control/metrics_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterRegisteredOnFirstUse(t *testing.T) {
	mr := NewMetricsRegistry()
	c := mr.Counter(`test_streams_opened_total{engine="socket"}`)
	c.Inc()
	c.Inc()

	var buf bytes.Buffer
	mr.WritePrometheus(&buf)
	require.Contains(t, buf.String(), `test_streams_opened_total{engine="socket"} 2`)
}

func TestCounterSameNameSameInstance(t *testing.T) {
	mr := NewMetricsRegistry()
	a := mr.Counter("test_dials_total")
	b := mr.Counter("test_dials_total")
	require.Same(t, a, b)
	a.Inc()
	require.Equal(t, uint64(1), b.Get())
}

func TestGaugeSnapshot(t *testing.T) {
	mr := NewMetricsRegistry()
	depth := 3.0
	mr.Gauge("test_queue_depth", func() float64 { return depth })

	var buf bytes.Buffer
	mr.WritePrometheus(&buf)
	require.Contains(t, buf.String(), "test_queue_depth 3")

	depth = 7
	buf.Reset()
	mr.WritePrometheus(&buf)
	require.Contains(t, buf.String(), "test_queue_depth 7")
}

func TestDefaultRegistryShared(t *testing.T) {
	Counter("test_default_total").Inc()

	var buf bytes.Buffer
	WritePrometheus(&buf)
	require.True(t, strings.Contains(buf.String(), "test_default_total 1"))
	require.Same(t, Default().Counter("test_default_total"), Counter("test_default_total"))
}
