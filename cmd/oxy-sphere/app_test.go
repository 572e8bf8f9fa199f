package main

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-sphere/engine/config"
	"github.com/Carmen-Shannon/oxy-sphere/engine/geometry"
	"github.com/Carmen-Shannon/oxy-sphere/engine/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func headlessConfig() config.Config {
	cfg := config.Default()
	cfg.Renderer.Backend = "headless"
	cfg.Sphere = geometry.Parameters{Radius: 5, PhiSlices: 8, ThetaSlices: 8}
	cfg.Compute.Workers = 2
	return cfg
}

func TestAppRendersHeadless(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	a, err := newApp(headlessConfig(), zap.NewNop(), m)
	require.NoError(t, err)
	defer a.close()

	require.NoError(t, a.run(2))
	assert.Equal(t, geometry.StateTesselated, a.sphere.State())
	assert.Equal(t, 1, a.sphere.DispatchCount())
	assert.Equal(t, float64(geometry.StateTesselated), testutil.ToFloat64(m.GeometryState.WithLabelValues("sphere")))

	records := a.renderer.DrawRecords()
	require.Len(t, records, 2)
	assert.Equal(t, uint32(64), records[1].Count)

	// the default camera looks up at the sphere from below
	x, y, z := a.engine.Camera().Controller().Position()
	assert.InDelta(t, 0, x, 1e-3)
	assert.Less(t, y, float32(-5))
	assert.InDelta(t, 0, z, 1e-3)
}

func TestAppAppliesReloadedConfig(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	a, err := newApp(headlessConfig(), zap.New(core), nil)
	require.NoError(t, err)
	defer a.close()
	require.NoError(t, a.run(1))
	radiusBefore := a.engine.Camera().Controller().Radius()

	cfg := headlessConfig()
	cfg.Sphere = geometry.Parameters{Radius: 10, PhiSlices: 4, ThetaSlices: 4}
	cfg.Renderer.PointColor = [4]float32{1, 0, 0, 1}
	a.submit(cfg)

	require.NoError(t, a.run(1))
	assert.Equal(t, cfg.Sphere, a.sphere.Parameters())
	assert.Equal(t, 2, a.sphere.DispatchCount())
	assert.Equal(t, [4]float32{1, 0, 0, 1}, a.actor.Color)
	assert.Greater(t, a.engine.Camera().Controller().Radius(), radiusBefore)
	assert.Equal(t, 1, logs.FilterMessage("config applied").Len())

	records := a.renderer.DrawRecords()
	assert.Equal(t, uint32(16), records[len(records)-1].Count)

	// invalid parameters keep the current sphere
	bad := cfg
	bad.Sphere.Radius = -1
	a.submit(bad)
	require.NoError(t, a.run(1))
	assert.Equal(t, cfg.Sphere, a.sphere.Parameters())
	assert.Equal(t, 1, logs.FilterMessage("ignoring sphere parameters").Len())
}

func TestLoadConfigDefault(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = loadConfig("missing.toml")
	assert.Error(t, err)

	sample, err := loadConfig("sphere.toml")
	require.NoError(t, err)
	assert.Equal(t, geometry.DefaultParameters(), sample.Sphere)
	assert.Equal(t, "127.0.0.1:9090", sample.Metrics.Addr)
}

func TestServeMetricsStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, serveMetrics(ctx, "127.0.0.1:0", newRegistry(), zap.NewNop()))
}
