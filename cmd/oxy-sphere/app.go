package main

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-sphere/common"
	"github.com/Carmen-Shannon/oxy-sphere/engine"
	"github.com/Carmen-Shannon/oxy-sphere/engine/camera"
	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
	"github.com/Carmen-Shannon/oxy-sphere/engine/config"
	"github.com/Carmen-Shannon/oxy-sphere/engine/geometry"
	"github.com/Carmen-Shannon/oxy-sphere/engine/metrics"
	"github.com/Carmen-Shannon/oxy-sphere/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sphere/engine/window"
	"github.com/chewxy/math32"
	"go.uber.org/zap"
)

const defaultTitle = "oxy-sphere"

// app is the demo scene: one sphere drawn as points, viewed by an orbit camera.
type app struct {
	logger   *zap.Logger
	window   window.Window
	renderer renderer.Renderer
	sphere   geometry.Sphere
	actor    *geometry.Actor
	engine   engine.Engine

	// pending is the latest reloaded config, applied on the render thread.
	pending atomic.Pointer[config.Config]
}

func radians(degrees float32) float32 {
	return degrees * math32.Pi / 180
}

func clearColor(bg [3]float64) [4]float64 {
	return [4]float64{bg[0], bg[1], bg[2], 1}
}

func presentMode(name string) renderer.PresentMode {
	if name == "uncapped" {
		return renderer.PresentModeUncapped
	}
	return renderer.PresentModeVSync
}

// newApp builds the window, renderer, sphere, camera and engine described by cfg.
// The wgpu backend opens a window; the headless backend runs on the software compute backend.
func newApp(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{logger: logger}

	backend := renderer.BackendTypeWGPU
	if cfg.Renderer.Backend == "headless" {
		backend = renderer.BackendTypeHeadless
	} else {
		w, err := window.NewWindow(
			window.WithTitle(common.Coalesce(cfg.Window.Title, defaultTitle)),
			window.WithSize(cfg.Window.Width, cfg.Window.Height),
			window.WithResizable(cfg.Window.Resizable),
			window.WithLogger(logger.Named("window")),
		)
		if err != nil {
			return nil, err
		}
		a.window = w
	}

	a.renderer = renderer.NewRenderer(backend, a.window,
		renderer.WithPresentMode(presentMode(cfg.Renderer.PresentMode)),
		renderer.WithMSAA(renderer.MSAASampleCount(cfg.Renderer.MSAA)),
		renderer.WithForceSoftwareRenderer(cfg.Renderer.ForceFallbackAdapter),
		renderer.WithClearColor(clearColor(cfg.Renderer.Background)),
		renderer.WithHeadlessSize(cfg.Window.Width, cfg.Window.Height),
		renderer.WithSoftwareCompute(compute.WithWorkers(cfg.Compute.Workers)),
		renderer.WithLogger(logger.Named("renderer")),
	)

	points, err := geometry.NewPointsPipeline(geometry.PointsPipelineKey)
	if err != nil {
		return nil, err
	}
	if err := a.renderer.RegisterPipelines(points); err != nil {
		return nil, fmt.Errorf("register points pipeline: %w", err)
	}

	selector := compute.NewDeviceSelector(a.renderer.ComputeBackend(), compute.WithSelectorLogger(logger.Named("compute")))
	a.sphere = geometry.NewSphere(selector,
		geometry.WithParameters(cfg.Sphere),
		geometry.WithLogger(logger.Named("sphere")),
		geometry.WithMetrics(m),
	)
	a.actor = geometry.NewActor()
	a.actor.Color = cfg.Renderer.PointColor

	controller := camera.NewCameraController(
		camera.WithElevationDegrees(cfg.Camera.Elevation),
		camera.WithAzimuth(radians(cfg.Camera.Azimuth)),
	)
	cam := camera.NewCamera(
		camera.WithFov(radians(cfg.Camera.FOV)),
		camera.WithAspect(float32(cfg.Window.Width)/float32(cfg.Window.Height)),
		camera.WithController(controller),
	)

	options := []engine.EngineBuilderOption{
		engine.WithRenderer(a.renderer),
		engine.WithCamera(cam),
		engine.WithLayer(0, a.sphere, a.actor),
		engine.WithLogger(logger.Named("engine")),
		engine.WithProfiler(profiler.NewProfiler(profiler.WithLogger(logger.Named("profiler")), profiler.WithMetrics(m))),
		engine.WithProfiling(true),
	}
	if a.window != nil {
		options = append(options, engine.WithWindow(a.window))
	} else {
		options = append(options, engine.WithRenderFrameLimit(60))
	}
	a.engine = engine.NewEngine(options...)
	a.engine.SetTickCallback(a.applyPending)
	a.engine.ResetCamera()
	return a, nil
}

// submit hands a reloaded config to the render thread. It is safe to call from any goroutine;
// only the latest config submitted before a frame is applied.
func (a *app) submit(cfg config.Config) {
	a.pending.Store(&cfg)
}

// applyPending applies the runtime-changeable parts of a reloaded config: sphere parameters,
// colors and the window title. Everything else needs a restart.
func (a *app) applyPending(float32) {
	cfg := a.pending.Swap(nil)
	if cfg == nil {
		return
	}

	before := a.sphere.Parameters()
	if err := a.sphere.SetParameters(cfg.Sphere); err != nil {
		a.logger.Warn("ignoring sphere parameters", zap.Error(err))
	} else if before.Radius != cfg.Sphere.Radius {
		a.engine.ResetCamera()
	}
	a.actor.Color = cfg.Renderer.PointColor
	a.renderer.SetClearColor(clearColor(cfg.Renderer.Background))
	if title := common.Coalesce(cfg.Window.Title, defaultTitle); a.window != nil && a.window.Title() != title {
		a.window.SetTitle(title)
	}
	a.logger.Info("config applied",
		zap.Float32("radius", cfg.Sphere.Radius),
		zap.Uint32("phi_slices", cfg.Sphere.PhiSlices),
		zap.Uint32("theta_slices", cfg.Sphere.ThetaSlices),
	)
}

// run renders until the window closes or the engine quits. frames > 0 renders exactly that many
// frames instead.
func (a *app) run(frames int) error {
	if frames > 0 {
		return a.engine.RunFrames(frames)
	}
	if a.window != nil {
		return a.engine.Run()
	}
	for {
		if err := a.engine.RunFrames(1); err != nil {
			if errors.Is(err, engine.ErrQuit) {
				return nil
			}
			return err
		}
	}
}

// close frees the sphere's buffers and the window.
func (a *app) close() {
	a.sphere.Destroy(a.renderer)
	if a.window != nil && a.window.IsRunning() {
		if err := a.window.Close(); err != nil {
			a.logger.Warn("failed to close window", zap.Error(err))
		}
	}
}
