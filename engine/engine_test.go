package engine

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-sphere/common"
	"github.com/Carmen-Shannon/oxy-sphere/engine/camera"
	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
	"github.com/Carmen-Shannon/oxy-sphere/engine/geometry"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sphere/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWindow struct {
	width, height int
	running       bool
	closed        int

	onResize      func(width, height int)
	onScroll      func(delta float32)
	onKeyDown     func(keyCode uint32)
	onMouseButton func(button window.MouseButton, pressed bool, x, y int32)
	onMouseMove   func(x, y int32)
	onUpdate      func()
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetUpdateCallback(cb func())                 { w.onUpdate = cb }
func (w *fakeWindow) SetResizeCallback(cb func(width, height int)) { w.onResize = cb }
func (w *fakeWindow) SetScrollCallback(cb func(delta float32))     { w.onScroll = cb }
func (w *fakeWindow) SetKeyDownCallback(cb func(keyCode uint32))   { w.onKeyDown = cb }
func (w *fakeWindow) SetKeyUpCallback(func(keyCode uint32))        {}
func (w *fakeWindow) SetMouseButtonCallback(cb func(button window.MouseButton, pressed bool, x, y int32)) {
	w.onMouseButton = cb
}
func (w *fakeWindow) SetMouseMoveCallback(cb func(x, y int32))       { w.onMouseMove = cb }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *fakeWindow) Title() string                              { return "fake" }
func (w *fakeWindow) SetTitle(string)                            {}
func (w *fakeWindow) IsRunning() bool                            { return w.running }
func (w *fakeWindow) Width() int                                 { return w.width }
func (w *fakeWindow) Height() int                                { return w.height }

func (w *fakeWindow) Close() error {
	w.closed++
	w.running = false
	return nil
}

// ProcessMessages runs three frames and then closes.
func (w *fakeWindow) ProcessMessages() {
	for range 3 {
		if !w.running {
			return
		}
		w.onUpdate()
	}
	w.running = false
}

type recordingMapper struct {
	name    string
	bounds  geometry.Bounds
	calls   *[]string
	panics  bool
	inits   int
	initErr error
}

func (m *recordingMapper) Initialize(geometry.RenderSurface, *geometry.Actor) error {
	m.inits++
	return m.initErr
}

func (m *recordingMapper) Render(geometry.RenderSurface, *geometry.Actor) {
	if m.panics {
		panic("mapper exploded")
	}
	*m.calls = append(*m.calls, m.name)
}

func (m *recordingMapper) GetBounds() geometry.Bounds { return m.bounds }

func newHeadlessRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeHeadless, nil, renderer.WithSoftwareCompute(compute.WithWorkers(2)))
	p, err := geometry.NewPointsPipeline(geometry.PointsPipelineKey)
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(p))
	return r
}

func TestRunFramesDrawsSphere(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := newHeadlessRenderer(t)
	s := geometry.NewSphere(compute.NewDeviceSelector(r.ComputeBackend()),
		geometry.WithParameters(geometry.Parameters{Radius: 2, PhiSlices: 10, ThetaSlices: 10}),
	)
	cam := camera.NewCamera(camera.WithController(camera.NewCameraController(camera.WithElevationDegrees(-90))))

	e := NewEngine(WithRenderer(r), WithCamera(cam), WithLayer(0, s, nil), WithUniformPipeline(geometry.PointsPipelineKey), WithLogger(zap.New(core)))
	e.ResetCamera()
	assert.InDelta(t, 0.5*common.Length3([3]float32{4, 4, 4})/0.2588190, cam.Controller().Radius(), 1e-3)

	require.NoError(t, e.RunFrames(3))
	assert.Equal(t, uint64(3), e.Frames())
	assert.Equal(t, 1, s.DispatchCount())
	assert.Equal(t, geometry.StateTesselated, s.State())

	records := r.DrawRecords()
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, uint64(i+1), rec.Frame)
		assert.Equal(t, uint32(100), rec.Count)
		assert.Equal(t, geometry.PointsPipelineKey, rec.PipelineKey)
	}
	assert.Zero(t, logs.Len(), "%v", logs.All())
}

func TestLayersRenderInOrder(t *testing.T) {
	var calls []string
	e := NewEngine(
		WithRenderer(newHeadlessRenderer(t)),
		WithLayer(2, &recordingMapper{name: "top", calls: &calls}, nil),
	)
	e.AddLayer(1, &recordingMapper{name: "bottom", calls: &calls}, nil)
	e.AddLayer(3, &recordingMapper{name: "removed", calls: &calls}, nil)
	e.RemoveLayer(3)

	m, a := e.Layer(1)
	require.NotNil(t, m)
	assert.True(t, a.Visible)
	m, _ = e.Layer(3)
	assert.Nil(t, m)

	require.NoError(t, e.RunFrames(2))
	assert.Equal(t, []string{"bottom", "top", "bottom", "top"}, calls)
}

func TestLayersInitializeOnceBeforeFirstDraw(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var calls []string
	ok := &recordingMapper{name: "ok", calls: &calls}
	failing := &recordingMapper{name: "failing", calls: &calls, initErr: errors.New("no device")}
	e := NewEngine(
		WithRenderer(newHeadlessRenderer(t)),
		WithLayer(0, ok, nil),
		WithLayer(1, failing, nil),
		WithLogger(zap.New(core)),
	)
	assert.Zero(t, ok.inits)

	require.NoError(t, e.RunFrames(3))
	assert.Equal(t, 1, ok.inits)
	assert.Equal(t, 1, failing.inits)
	assert.Len(t, calls, 6)

	entries := logs.FilterMessage("layer initialize failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["layer"])
}

func TestTickCallbackRunsEachFrame(t *testing.T) {
	e := NewEngine(WithRenderer(newHeadlessRenderer(t)))
	var ticks []float32
	e.SetTickCallback(func(dt float32) {
		ticks = append(ticks, dt)
	})
	require.NoError(t, e.RunFrames(3))
	require.Len(t, ticks, 3)
	assert.Zero(t, ticks[0])
	assert.GreaterOrEqual(t, ticks[2], float32(0))
}

func TestEngineNeedsRendererAndWindow(t *testing.T) {
	e := NewEngine()
	assert.ErrorIs(t, e.RunFrames(1), ErrNoRenderer)
	assert.ErrorIs(t, e.Run(), ErrNoWindow)

	e = NewEngine(WithWindow(&fakeWindow{running: true, width: 800, height: 600}))
	assert.ErrorIs(t, e.Run(), ErrNoRenderer)
}

func TestQuit(t *testing.T) {
	e := NewEngine(WithRenderer(newHeadlessRenderer(t)))
	e.Quit()
	e.Quit()
	select {
	case <-e.Done():
	default:
		t.Fatal("Done not closed after Quit")
	}
	assert.ErrorIs(t, e.RunFrames(1), ErrQuit)
	assert.Zero(t, e.Frames())
}

func TestFramePanicQuits(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var calls []string
	e := NewEngine(
		WithRenderer(newHeadlessRenderer(t)),
		WithLayer(0, &recordingMapper{panics: true, calls: &calls}, nil),
		WithLogger(zap.New(core)),
	)

	assert.NotPanics(t, func() { e.Frame() })
	assert.Equal(t, 1, logs.FilterMessage("frame panicked").Len())
	assert.ErrorIs(t, e.RunFrames(1), ErrQuit)
}

func TestRunDrivesWindow(t *testing.T) {
	w := &fakeWindow{running: true, width: 800, height: 600}
	r := newHeadlessRenderer(t)
	cam := camera.NewCamera(camera.WithController(camera.NewCameraController()))
	e := NewEngine(WithWindow(w), WithRenderer(r), WithCamera(cam))
	assert.InDelta(t, 800.0/600.0, cam.Aspect(), 1e-6)

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(3), e.Frames())
	select {
	case <-e.Done():
	default:
		t.Fatal("Done not closed after the window closed")
	}
}

func TestQuitClosesWindow(t *testing.T) {
	w := &fakeWindow{running: true, width: 800, height: 600}
	e := NewEngine(WithWindow(w), WithRenderer(newHeadlessRenderer(t)))
	e.SetTickCallback(func(float32) { e.Quit() })

	// the frame that asked to quit still finishes; the next one closes the window
	require.NoError(t, e.Run())
	assert.Equal(t, 1, w.closed)
	assert.Equal(t, uint64(1), e.Frames())
}

func TestInputDrivesCamera(t *testing.T) {
	w := &fakeWindow{running: true, width: 800, height: 600}
	r := newHeadlessRenderer(t)
	cc := camera.NewCameraController(camera.WithMouseSensitivity(0.01))
	cam := camera.NewCamera(camera.WithController(cc))
	var calls []string
	NewEngine(WithWindow(w), WithRenderer(r), WithCamera(cam),
		WithLayer(0, &recordingMapper{bounds: geometry.Bounds{-1, 1, -1, 1, -1, 1}, calls: &calls}, nil),
	)

	// moves without a pressed button do nothing
	w.onMouseMove(50, 50)
	assert.Zero(t, cc.Azimuth())

	w.onMouseButton(window.MouseButtonLeft, true, 100, 100)
	w.onMouseMove(110, 100)
	assert.InDelta(t, -0.1, cc.Azimuth(), 1e-6)
	w.onMouseButton(window.MouseButtonLeft, false, 110, 100)
	w.onMouseMove(200, 100)
	assert.InDelta(t, -0.1, cc.Azimuth(), 1e-6)

	before := cc.Radius()
	w.onScroll(1)
	assert.Less(t, cc.Radius(), before)

	w.onKeyDown(common.KeyW)
	assert.Positive(t, cc.Elevation())

	w.onMouseButton(window.MouseButtonRight, true, 0, 0)
	w.onMouseMove(0, -10)
	_, ty, _ := cc.Target()
	assert.Negative(t, ty)
	w.onMouseButton(window.MouseButtonRight, false, 0, -10)

	w.onKeyDown(common.KeyR)
	tx, ty, tz := cc.Target()
	assert.Equal(t, [3]float32{0, 0, 0}, [3]float32{tx, ty, tz})

	w.onResize(400, 100)
	assert.InDelta(t, 4, cam.Aspect(), 1e-6)
	w.onResize(0, 0)
	assert.InDelta(t, 4, cam.Aspect(), 1e-6)
	assert.False(t, r.GraphicsContext().Current())
}

func TestLayersOutsideFrustumAreSkipped(t *testing.T) {
	var calls []string
	cam := camera.NewCamera(camera.WithController(camera.NewCameraController()))
	e := NewEngine(
		WithRenderer(newHeadlessRenderer(t)),
		WithCamera(cam),
		WithLayer(0, &recordingMapper{name: "visible", bounds: geometry.Bounds{-1, 1, -1, 1, -1, 1}, calls: &calls}, nil),
		WithLayer(1, &recordingMapper{name: "behind", bounds: geometry.Bounds{-1, 1, -1, 1, 20, 22}, calls: &calls}, nil),
	)
	require.NoError(t, e.RunFrames(1))
	assert.Equal(t, []string{"visible"}, calls)

	// culled layers are not initialized either
	m, _ := e.Layer(1)
	assert.Zero(t, m.(*recordingMapper).inits)
}
