package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-sphere/engine/metrics"
	"go.uber.org/zap"
)

// Stats is one profiling interval's summary.
type Stats struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Every interval it logs a summary and publishes the frame rate and heap size to the metrics.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// ProfilerOption is a functional option for configuring a Profiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often statistics are summarized. Defaults to 1 second.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithLogger sets the logger the summary is written to. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ProfilerOption {
	return func(p *Profiler) {
		p.logger = logger
	}
}

// WithMetrics publishes each summary to m.
func WithMetrics(m *metrics.Metrics) ProfilerOption {
	return func(p *Profiler) {
		p.metrics = m
	}
}

// NewProfiler creates a new Profiler.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame to track frame timing.
// When the update interval has elapsed it logs FPS, heap usage, allocation rate, GC count/pause times
// and total memory, and records FPS and heap size on the metrics.
//
// Returns:
//   - bool: true if stats were summarized this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	stats := Stats{
		FPS:     float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:  float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:   float64(p.memStats.Sys) / 1024 / 1024,
		GCCount: p.memStats.NumGC,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	stats.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	if gcCount := stats.GCCount; gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		stats.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			stats.MaxPauseUs = max(stats.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Debug("frame stats",
		zap.Float64("fps", stats.FPS),
		zap.Float64("heap_mb", stats.HeapMB),
		zap.Float64("alloc_rate_mb_s", stats.AllocRateMB),
		zap.Uint32("gc", stats.GCCount),
		zap.Uint64("gc_last_pause_us", stats.LastPauseUs),
		zap.Uint64("gc_max_pause_us", stats.MaxPauseUs),
		zap.Float64("sys_mb", stats.SysMB),
	)
	p.metrics.SetFrameStats(stats.FPS, p.memStats.Alloc)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = stats.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.last = stats
	return true
}

// Last returns the most recent summary, zero before the first interval elapses.
func (p *Profiler) Last() Stats {
	return p.last
}
