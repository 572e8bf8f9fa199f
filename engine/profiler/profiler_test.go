package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-sphere/engine/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestProfilerSummarizesEachInterval(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New(prometheus.NewRegistry())
	clock := &fakeClock{t: time.Unix(100, 0)}

	p := NewProfiler(WithInterval(time.Second), WithLogger(zap.New(core)), WithMetrics(m))
	p.now = clock.now
	p.lastTime = clock.t

	for range 29 {
		clock.t = clock.t.Add(10 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	assert.Zero(t, p.Last().FPS)

	clock.t = time.Unix(102, 0)
	require.True(t, p.Tick())
	assert.InDelta(t, 15, p.Last().FPS, 1e-9)
	assert.InDelta(t, 15, testutil.ToFloat64(m.FramesPerSecond), 1e-9)
	assert.Positive(t, testutil.ToFloat64(m.HeapAllocBytes))

	entries := logs.FilterMessage("frame stats").All()
	require.Len(t, entries, 1)
	assert.InDelta(t, 15, entries[0].ContextMap()["fps"], 1e-9)

	// counting restarts after a summary
	clock.t = clock.t.Add(time.Second)
	require.True(t, p.Tick())
	assert.InDelta(t, 1, p.Last().FPS, 1e-9)
}

func TestProfilerWithoutMetrics(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithInterval(time.Millisecond))
	p.now = clock.now
	p.lastTime = clock.t

	clock.t = clock.t.Add(time.Second)
	assert.True(t, p.Tick())
}
