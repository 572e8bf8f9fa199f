package engine

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-sphere/common"
	"github.com/Carmen-Shannon/oxy-sphere/engine/camera"
	"github.com/Carmen-Shannon/oxy-sphere/engine/geometry"
	"github.com/Carmen-Shannon/oxy-sphere/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sphere/engine/window"
	"go.uber.org/zap"
)

var (
	// ErrNoWindow is returned by Run when the engine was built without a window.
	ErrNoWindow = errors.New("engine has no window")

	// ErrNoRenderer is returned when a frame is requested from an engine without a renderer.
	ErrNoRenderer = errors.New("engine has no renderer")

	// ErrQuit is returned by RunFrames once the engine has been asked to quit.
	ErrQuit = errors.New("engine quit")
)

// layer is one mapper drawn with one actor.
type layer struct {
	key         int
	mapper      geometry.Mapper
	actor       *geometry.Actor
	initialized bool
}

// engine implements the Engine interface.
// Every frame runs on the thread that drives the window, which is the thread the graphics context
// is current on.
type engine struct {
	mu *sync.Mutex

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer
	camera   camera.Camera
	logger   *zap.Logger

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickCallback func(deltaTime float32)
	uniformKey   string

	layers map[int]*layer

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastFrame        time.Time
	frames           uint64

	// mouse drag state
	dragButton window.MouseButton
	dragging   bool
	lastX      int32
	lastY      int32
}

// Engine is the main entry point for the engine.
// It owns the frame loop: tick callback, camera update, then one render pass in which every
// layer's mapper draws.
type Engine interface {
	// Window returns the underlying window, nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer frames are drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Camera returns the camera whose view-projection is uploaded each frame, or nil.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickCallback registers the function called at the start of each frame, before the camera
	// is updated. Use this for input handling and for applying changes made by other goroutines.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds since the previous frame
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddLayer registers a mapper and the actor it draws with at the given z-index key.
	// Layers are rendered in ascending key order. With a camera, layers whose bounds lie outside
	// the view frustum are skipped. The mapper's Initialize runs once, right before its first Render.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - mapper: the mapper to draw
	//   - actor: its display properties; nil uses a visible white actor
	AddLayer(key int, mapper geometry.Mapper, actor *geometry.Actor)

	// RemoveLayer removes the layer at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the layer to remove
	RemoveLayer(key int)

	// Layer retrieves the mapper and actor registered at key.
	//
	// Parameters:
	//   - key: the z-index of the layer
	//
	// Returns:
	//   - geometry.Mapper: the mapper, nil if no layer exists at key
	//   - *geometry.Actor: its actor
	Layer(key int) (geometry.Mapper, *geometry.Actor)

	// ResetCamera fits the camera to the union of every layer's bounds.
	ResetCamera()

	// Frame renders one frame. Panics inside the frame are recovered, logged and turned into a Quit.
	Frame()

	// RunFrames renders n frames back to back without a window.
	//
	// Parameters:
	//   - n: the number of frames
	//
	// Returns:
	//   - error: ErrNoRenderer, or ErrQuit if the engine quit before all frames were drawn
	RunFrames(n int) error

	// Frames returns the number of frames rendered.
	Frames() uint64

	// Run drives the window's message loop, rendering a frame each iteration, until the window
	// closes or Quit is called. It must be called on the thread that created the window.
	//
	// Returns:
	//   - error: ErrNoWindow or ErrNoRenderer
	Run() error

	// Quit signals the engine to stop. The window closes on the next frame.
	// Safe to call multiple times and from any goroutine.
	Quit()

	// Done is closed once Quit has been called or the window has closed.
	Done() <-chan struct{}
}

// NewEngine creates a new Engine instance with the provided options.
// When both a window and a renderer are set, window resizes reconfigure the renderer surface and
// the camera aspect, and mouse and keyboard input drive the camera controller.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:          &sync.Mutex{},
		quitChannel: make(chan struct{}),
		layers:      make(map[int]*layer),
		logger:      zap.NewNop(),
		uniformKey:  geometry.PointsPipelineKey,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.handleResize)
		e.window.SetMouseButtonCallback(e.handleMouseButton)
		e.window.SetMouseMoveCallback(e.handleMouseMove)
		e.window.SetScrollCallback(e.handleScroll)
		e.window.SetKeyDownCallback(e.handleKeyDown)
		if e.camera != nil && e.window.Height() > 0 {
			e.camera.SetAspect(float32(e.window.Width()) / float32(e.window.Height()))
		}
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Run() error {
	if e.window == nil {
		return ErrNoWindow
	}
	if e.renderer == nil {
		return ErrNoRenderer
	}
	e.logger.Info("engine started")
	e.window.SetUpdateCallback(e.Frame)
	e.window.ProcessMessages()
	e.signalQuit()
	e.logger.Info("engine stopped", zap.Uint64("frames", e.Frames()))
	return nil
}

func (e *engine) RunFrames(n int) error {
	if e.renderer == nil {
		return ErrNoRenderer
	}
	for range n {
		select {
		case <-e.quitChannel:
			return ErrQuit
		default:
		}
		e.Frame()
	}
	return nil
}

// Quit signals the engine to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) Done() <-chan struct{} {
	return e.quitChannel
}

// signalQuit closes the quit channel to signal the loop to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Frame() {
	select {
	case <-e.quitChannel:
		if e.window != nil && e.window.IsRunning() {
			if err := e.window.Close(); err != nil {
				e.logger.Warn("failed to close window", zap.Error(err))
			}
		}
		return
	default:
	}

	// Recover from panics inside a frame so a broken mapper takes the engine down cleanly.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("frame panicked", zap.Any("panic", r), zap.Stack("stack"))
			e.signalQuit()
		}
	}()

	start := time.Now()
	var dt float32
	if !e.lastFrame.IsZero() {
		dt = float32(start.Sub(e.lastFrame).Seconds())
	}
	e.lastFrame = start

	if e.tickCallback != nil {
		e.tickCallback(dt)
	}

	layers := e.sortedLayers()
	e.uploadFrameUniform(layers)

	if err := e.renderer.BeginFrame(); err != nil {
		e.logger.Debug("skipping frame", zap.Error(err))
		return
	}
	frustum, cull := e.frustum()
	for _, l := range layers {
		if cull && !frustum.IntersectsBox(l.mapper.GetBounds()) {
			continue
		}
		e.initializeLayer(l)
		l.mapper.Render(e.renderer, l.actor)
	}
	e.renderer.EndFrame()
	e.renderer.Present()

	e.mu.Lock()
	e.frames++
	e.mu.Unlock()

	if e.profilingEnabled {
		e.profiler.Tick()
	}

	// Frame rate limiting
	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// uploadFrameUniform writes the camera's view-projection and the first visible actor's color.
func (e *engine) uploadFrameUniform(layers []*layer) {
	if e.camera == nil || e.renderer.Pipeline(e.uniformKey) == nil {
		return
	}
	e.camera.Update()

	color := [4]float32{1, 1, 1, 1}
	for _, l := range layers {
		if l.actor.Visible {
			color = l.actor.Color
			break
		}
	}
	if err := e.renderer.WriteUniform(e.uniformKey, e.camera.FrameUniform(color)); err != nil {
		e.logger.Warn("failed to write frame uniform", zap.String("pipeline", e.uniformKey), zap.Error(err))
	}
}

// frustum returns the camera's view frustum; cull is false without a camera.
func (e *engine) frustum() (f common.Frustum, cull bool) {
	if e.camera == nil {
		return f, false
	}
	return common.ExtractFrustum(e.camera.ViewProjectionMatrix()), true
}

// sortedLayers returns the layers in ascending key order.
func (e *engine) sortedLayers() []*layer {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]int, 0, len(e.layers))
	for k := range e.layers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]*layer, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.layers[k])
	}
	return out
}

func (e *engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickCallback registers the function called each frame.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddLayer(key int, mapper geometry.Mapper, actor *geometry.Actor) {
	if actor == nil {
		actor = geometry.NewActor()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layers[key] = &layer{key: key, mapper: mapper, actor: actor}
}

// initializeLayer calls the mapper's Initialize once, before the layer's first draw.
// A failed Initialize is logged; the mapper still gets Render calls and draws nothing.
func (e *engine) initializeLayer(l *layer) {
	if l.initialized {
		return
	}
	l.initialized = true
	if err := l.mapper.Initialize(e.renderer, l.actor); err != nil {
		e.logger.Error("layer initialize failed", zap.Int("layer", l.key), zap.Error(err))
	}
}

func (e *engine) RemoveLayer(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.layers, key)
}

func (e *engine) Layer(key int) (geometry.Mapper, *geometry.Actor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.layers[key]
	if !ok {
		return nil, nil
	}
	return l.mapper, l.actor
}

func (e *engine) ResetCamera() {
	layers := e.sortedLayers()
	if e.camera == nil || len(layers) == 0 {
		return
	}
	bounds := layers[0].mapper.GetBounds()
	for _, l := range layers[1:] {
		b := l.mapper.GetBounds()
		for i := 0; i < 6; i += 2 {
			bounds[i] = min(bounds[i], b[i])
			bounds[i+1] = max(bounds[i+1], b[i+1])
		}
	}
	e.camera.FitBounds(bounds)
	e.logger.Debug("camera reset", zap.Float32s("bounds", bounds[:]))
}

func (e *engine) handleResize(width, height int) {
	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}
	if e.camera != nil && width > 0 && height > 0 {
		e.camera.SetAspect(float32(width) / float32(height))
	}
}

func (e *engine) controller() camera.CameraController {
	if e.camera == nil {
		return nil
	}
	return e.camera.Controller()
}

// handleMouseButton starts a drag on press and ends it when the same button is released.
func (e *engine) handleMouseButton(button window.MouseButton, pressed bool, x, y int32) {
	if pressed {
		if !e.dragging {
			e.dragging = true
			e.dragButton = button
			e.lastX, e.lastY = x, y
		}
		return
	}
	if e.dragging && button == e.dragButton {
		e.dragging = false
	}
}

// handleMouseMove orbits while dragging with the left button and pans with the right or middle button.
func (e *engine) handleMouseMove(x, y int32) {
	if !e.dragging {
		return
	}
	dx, dy := x-e.lastX, y-e.lastY
	e.lastX, e.lastY = x, y

	cc := e.controller()
	if cc == nil {
		return
	}
	switch e.dragButton {
	case window.MouseButtonLeft:
		cc.Drag(dx, dy)
	default:
		// pan a screen-proportional distance so the grabbed point roughly follows the cursor
		scale := cc.Radius() / 500
		cc.PanRight(-float32(dx) * scale)
		cc.PanUp(float32(dy) * scale)
	}
}

func (e *engine) handleScroll(delta float32) {
	if cc := e.controller(); cc != nil {
		cc.Zoom(delta)
	}
}

func (e *engine) handleKeyDown(keyCode uint32) {
	cc := e.controller()
	if cc == nil {
		return
	}
	switch keyCode {
	case common.KeyW:
		cc.OrbitUp()
	case common.KeyS:
		cc.OrbitDown()
	case common.KeyA:
		cc.OrbitLeft()
	case common.KeyD:
		cc.OrbitRight()
	case common.KeyQ:
		cc.Zoom(-1)
	case common.KeyE:
		cc.Zoom(1)
	case common.KeyR:
		e.ResetCamera()
	}
}
