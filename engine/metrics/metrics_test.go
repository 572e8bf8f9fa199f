package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDispatch(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDispatch("tesselate_sphere", 2*time.Millisecond, nil)
	m.ObserveDispatch("tesselate_sphere", 0, errors.New("lost device"))
	m.ObserveDispatch("tesselate_sphere", time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.KernelDispatches.WithLabelValues("tesselate_sphere", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KernelDispatches.WithLabelValues("tesselate_sphere", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TesselationDuration))
}

func TestGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetGeometryState("sphere", 2)
	m.SetFrameStats(59.5, 4096)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GeometryState.WithLabelValues("sphere")))
	assert.Equal(t, 59.5, testutil.ToFloat64(m.FramesPerSecond))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.HeapAllocBytes))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDispatch("k", time.Second, nil)
		m.SetGeometryState("sphere", 1)
		m.SetFrameStats(1, 1)
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
