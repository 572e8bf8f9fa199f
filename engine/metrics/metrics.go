// Package metrics holds the prometheus instruments of the engine. A nil *Metrics is valid and
// records nothing, so components take one optionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the engine's instruments, registered on one registerer.
type Metrics struct {
	// KernelDispatches counts kernel dispatches by kernel and result ("ok" or "error").
	KernelDispatches *prometheus.CounterVec

	// TesselationDuration tracks acquire-to-finish time of a tesselation by kernel.
	TesselationDuration *prometheus.HistogramVec

	// GeometryState is the current GeometryState of each mapper.
	GeometryState *prometheus.GaugeVec

	// FramesPerSecond is the frame rate over the last profiling interval.
	FramesPerSecond prometheus.Gauge

	// HeapAllocBytes is the Go heap in use at the last profiling interval.
	HeapAllocBytes prometheus.Gauge
}

// New creates and registers the instruments on reg.
//
// Parameters:
//   - reg: the registerer, e.g. prometheus.DefaultRegisterer or a test registry
//
// Returns:
//   - *Metrics: the registered instruments
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		KernelDispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxy_kernel_dispatches_total",
				Help: "Kernel dispatches by kernel and result",
			},
			[]string{"kernel", "result"},
		),
		TesselationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oxy_tesselation_duration_seconds",
				Help:    "Time from acquire to finished release of a tesselation",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"kernel"},
		),
		GeometryState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oxy_geometry_state",
				Help: "Geometry state by mapper: 0 uninitialized, 1 initialized, 2 tesselated",
			},
			[]string{"mapper"},
		),
		FramesPerSecond: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oxy_frames_per_second",
			Help: "Frames rendered per second",
		}),
		HeapAllocBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oxy_heap_alloc_bytes",
			Help: "Go heap bytes allocated",
		}),
	}
}

// ObserveDispatch records one dispatch of kernel and, when it succeeded, its duration.
func (m *Metrics) ObserveDispatch(kernel string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.KernelDispatches.WithLabelValues(kernel, "error").Inc()
		return
	}
	m.KernelDispatches.WithLabelValues(kernel, "ok").Inc()
	m.TesselationDuration.WithLabelValues(kernel).Observe(d.Seconds())
}

// SetGeometryState records the state of a mapper.
func (m *Metrics) SetGeometryState(mapper string, state int) {
	if m == nil {
		return
	}
	m.GeometryState.WithLabelValues(mapper).Set(float64(state))
}

// SetFrameStats records the frame rate and heap size.
func (m *Metrics) SetFrameStats(fps float64, heapAlloc uint64) {
	if m == nil {
		return
	}
	m.FramesPerSecond.Set(fps)
	m.HeapAllocBytes.Set(float64(heapAlloc))
}
