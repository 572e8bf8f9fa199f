package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/pipeline"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeHeadless selects a backend without a device or window. Vertex buffers live in
	// host memory and draws are recorded instead of rasterized. It pairs with the software
	// compute backend.
	BackendTypeHeadless
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values (8, 16) are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4x multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8x multisample anti-aliasing. Adapter-dependent.
	MSAA8x MSAASampleCount = 8

	// MSAA16x enables 16x multisample anti-aliasing. Adapter-dependent.
	MSAA16x MSAASampleCount = 16
)

var (
	// ErrNoFrame is returned when drawing outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("no frame in progress")

	// ErrUnknownBuffer is returned for a vertex buffer this renderer did not create or already destroyed.
	ErrUnknownBuffer = errors.New("unknown vertex buffer")

	// ErrUniformSize is returned when uniform data does not match the pipeline's uniform binding.
	ErrUniformSize = errors.New("uniform data size does not match the pipeline")
)

// RendererBackend is the seam between the Renderer and a concrete graphics API.
type RendererBackend interface {
	// GraphicsContext returns the context compute backends bind to.
	GraphicsContext() compute.GraphicsContext

	// ComputeBackend returns a compute backend able to share buffers with this backend.
	ComputeBackend() compute.Backend

	// ConfigureSurface is a wrapper for boilerplate logic required when calling ConfigureSurface on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// SetClearColor sets the color the frame is cleared to.
	//
	// Parameters:
	//   - color: RGBA in [0, 1]
	SetClearColor(color [4]float64)

	// RegisterRenderPipeline creates the backend objects of a render pipeline, including the
	// uniform buffer of its group 0 binding 0 if the vertex shader declares one.
	//
	// Parameters:
	//   - p: the pipeline to register
	//
	// Returns:
	//   - error: an error if creation fails
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// CreateVertexBuffer allocates a zeroed buffer usable as vertex input and kernel storage.
	CreateVertexBuffer(label string, size uint64) (compute.GraphicsBuffer, error)

	// DestroyVertexBuffer frees a buffer created by CreateVertexBuffer. Unknown buffers are ignored.
	DestroyVertexBuffer(vb compute.GraphicsBuffer)

	// WriteUniform replaces the contents of the pipeline's uniform buffer.
	WriteUniform(p pipeline.Pipeline, data []byte) error

	// BeginFrame acquires the next frame target and begins the main render pass.
	BeginFrame() error

	// DrawPoints encodes a point draw of count vertices from vb within the current frame.
	DrawPoints(p pipeline.Pipeline, vb compute.GraphicsBuffer, count uint32) error

	// EndFrame ends the current render pass and submits the frame.
	EndFrame()

	// Present presents the frame to the display.
	Present()
}

// vertexBuffer is the GraphicsBuffer handed out by every backend. native is *wgpu.Buffer on
// the WGPU backend and []byte on the headless backend.
type vertexBuffer struct {
	id     uint32
	label  string
	size   uint64
	native any
}

var _ compute.GraphicsBuffer = &vertexBuffer{}

func (b *vertexBuffer) ID() uint32 {
	return b.id
}

func (b *vertexBuffer) Size() uint64 {
	return b.size
}

func (b *vertexBuffer) Native() any {
	return b.native
}

// graphicsContext adapts a backend to compute.GraphicsContext.
type graphicsContext struct {
	backend compute.BackendType
	native  any
	current func() bool
}

var _ compute.GraphicsContext = &graphicsContext{}

func (c *graphicsContext) Backend() compute.BackendType {
	return c.backend
}

func (c *graphicsContext) Current() bool {
	return c.current()
}

func (c *graphicsContext) Native() any {
	return c.native
}
