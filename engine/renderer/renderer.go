package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
	"github.com/Carmen-Shannon/oxy-sphere/engine/geometry"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sphere/engine/window"
	"go.uber.org/zap"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	pendingClearColor    *[4]float64
	headlessWidth        int
	headlessHeight       int
	drawHook             DrawHook
	softwareCompute      []compute.SoftwareBackendOption
	logger               *zap.Logger
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API designed to simplify rendering tasks into a streamlined and idiomatic flow.
// The Renderer manages a cache of pipelines keyed by name and forwards work to a backend, which
// allows for multiple backend API implementations to exist. A Renderer is a geometry.RenderSurface.
type Renderer interface {
	geometry.RenderSurface

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines registers one or more render pipelines by creating the corresponding GPU
	// objects via the backend, then caching them by PipelineKey.
	// Pipelines whose keys are already registered are skipped to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails or a pipeline is not a render pipeline
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// ComputeBackend returns a compute backend that shares buffers with this renderer.
	//
	// Returns:
	//   - compute.Backend: the compute backend
	ComputeBackend() compute.Backend

	// WriteUniform replaces the uniform data of a registered pipeline.
	//
	// Parameters:
	//   - pipelineKey: the pipeline whose uniform is written
	//   - data: the uniform bytes, exactly the size of the pipeline's uniform binding
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or the size does not match
	WriteUniform(pipelineKey string, data []byte) error

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// SetClearColor sets the background color frames are cleared to.
	//
	// Parameters:
	//   - color: RGBA in [0, 1]
	SetClearColor(color [4]float64)

	// BeginFrame acquires the swapchain texture and begins the main render pass.
	// Must be paired with EndFrame after all draw calls within a single frame.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	// Does not present the surface; call Present() after EndFrame to display the frame.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	// Must be called once per frame after EndFrame.
	Present()

	// DrawRecords returns every draw accepted so far by a headless renderer, nil on other backends.
	//
	// Returns:
	//   - []DrawRecord: the recorded draws in submission order
	DrawRecords() []DrawRecord
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type.
// The WGPU backend creates its surface from the window; the headless backend ignores the
// window, which may be nil, and uses the size set with WithHeadlessSize.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - win: the window to render into, nil for BackendTypeHeadless
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:             &sync.Mutex{},
		pipelineCache:  make(map[string]pipeline.Pipeline),
		backendType:    backendType,
		headlessWidth:  800,
		headlessHeight: 600,
		logger:         zap.NewNop(),
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	msaa := MSAA4x // default
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	width, height := r.headlessWidth, r.headlessHeight
	switch backendType {
	case BackendTypeHeadless:
		r.backend = newHeadlessRendererBackend(r.drawHook, r.softwareCompute, r.logger)
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter, msaa, r.logger)
		width, height = win.Width(), win.Height()
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if r.pendingClearColor != nil {
		r.backend.SetClearColor(*r.pendingClearColor)
	}

	r.backend.ConfigureSurface(width, height)
	return r
}

func (r *renderer) GraphicsContext() compute.GraphicsContext {
	return r.backend.GraphicsContext()
}

func (r *renderer) ComputeBackend() compute.Backend {
	return r.backend.ComputeBackend()
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) SetClearColor(color [4]float64) {
	r.backend.SetClearColor(color)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, p := range r.pipelineCache {
		out[k] = p
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if p.Type() != pipeline.PipelineTypeRender {
			return fmt.Errorf("pipeline %q: only render pipelines are registered on the renderer", key)
		}
		if err := r.backend.RegisterRenderPipeline(p); err != nil {
			return fmt.Errorf("pipeline %q: %w", key, err)
		}
		r.pipelineCache[key] = p
		r.logger.Debug("registered render pipeline", zap.String("pipeline", key))
	}
	return nil
}

func (r *renderer) CreateVertexBuffer(label string, size uint64) (compute.GraphicsBuffer, error) {
	return r.backend.CreateVertexBuffer(label, size)
}

func (r *renderer) DestroyVertexBuffer(vb compute.GraphicsBuffer) {
	r.backend.DestroyVertexBuffer(vb)
}

func (r *renderer) WriteUniform(pipelineKey string, data []byte) error {
	p := r.Pipeline(pipelineKey)
	if p == nil {
		return fmt.Errorf("render pipeline %q not found in cache", pipelineKey)
	}
	return r.backend.WriteUniform(p, data)
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) DrawPoints(pipelineKey string, vb compute.GraphicsBuffer, count uint32) error {
	p := r.Pipeline(pipelineKey)
	if p == nil {
		return fmt.Errorf("render pipeline %q not found in cache", pipelineKey)
	}
	if vb == nil {
		return ErrUnknownBuffer
	}
	return r.backend.DrawPoints(p, vb, count)
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) DrawRecords() []DrawRecord {
	if h, ok := r.backend.(*headlessRendererBackendImpl); ok {
		return h.records()
	}
	return nil
}
