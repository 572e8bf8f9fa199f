package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/shader"
	"go.uber.org/zap"
)

// DrawRecord describes one draw accepted by the headless backend.
type DrawRecord struct {
	// Frame is the 1-based index of the frame the draw belongs to.
	Frame uint64
	// PipelineKey is the pipeline the draw used.
	PipelineKey string
	// BufferID is the graphics ID of the vertex buffer.
	BufferID uint32
	// Count is the number of vertices drawn.
	Count uint32
}

// DrawHook is called by the headless backend for every draw, with the buffer being drawn.
type DrawHook func(rec DrawRecord, vb compute.GraphicsBuffer)

type headlessRendererBackendImpl struct {
	mu *sync.Mutex

	width, height int
	configured    bool
	clearColor    [4]float64
	presentMode   PresentMode

	nextBufferID uint32
	buffers      map[uint32]*vertexBuffer
	uniforms     map[string][]byte
	uniformSizes map[string]uint64

	frame   uint64
	inFrame bool
	draws   []DrawRecord
	hook    DrawHook

	ctx            *graphicsContext
	computeOptions []compute.SoftwareBackendOption
	logger         *zap.Logger
}

var _ RendererBackend = &headlessRendererBackendImpl{}

func newHeadlessRendererBackend(hook DrawHook, computeOptions []compute.SoftwareBackendOption, logger *zap.Logger) *headlessRendererBackendImpl {
	b := &headlessRendererBackendImpl{
		mu:             &sync.Mutex{},
		buffers:        make(map[uint32]*vertexBuffer),
		uniforms:       make(map[string][]byte),
		uniformSizes:   make(map[string]uint64),
		hook:           hook,
		computeOptions: computeOptions,
		logger:         logger,
	}
	b.ctx = &graphicsContext{
		backend: compute.BackendTypeSoftware,
		current: func() bool {
			b.mu.Lock()
			defer b.mu.Unlock()
			return b.configured
		},
	}
	return b
}

func (b *headlessRendererBackendImpl) GraphicsContext() compute.GraphicsContext {
	return b.ctx
}

func (b *headlessRendererBackendImpl) ComputeBackend() compute.Backend {
	return compute.NewSoftwareBackend(b.computeOptions...)
}

func (b *headlessRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
	b.configured = width > 0 && height > 0
}

func (b *headlessRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode
}

func (b *headlessRendererBackendImpl) SetClearColor(color [4]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearColor = color
}

func (b *headlessRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := p.Shader(shader.ShaderTypeVertex).Binding(0, 0); ok && u.Kind == shader.BindingUniform {
		b.uniformSizes[p.PipelineKey()] = u.Size
	}
	return nil
}

func (b *headlessRendererBackendImpl) CreateVertexBuffer(label string, size uint64) (compute.GraphicsBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("vertex buffer %q: size must be positive", label)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextBufferID++
	vb := &vertexBuffer{
		id:     b.nextBufferID,
		label:  label,
		size:   size,
		native: make([]byte, size),
	}
	b.buffers[vb.id] = vb
	b.logger.Debug("created vertex buffer", zap.String("label", label), zap.Uint32("buffer", vb.id), zap.Uint64("size", size))
	return vb, nil
}

func (b *headlessRendererBackendImpl) DestroyVertexBuffer(vb compute.GraphicsBuffer) {
	if vb == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buffers, vb.ID())
}

func (b *headlessRendererBackendImpl) WriteUniform(p pipeline.Pipeline, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	size, ok := b.uniformSizes[p.PipelineKey()]
	if !ok || uint64(len(data)) != size {
		return fmt.Errorf("%w: pipeline %q takes %d bytes, got %d", ErrUniformSize, p.PipelineKey(), size, len(data))
	}
	b.uniforms[p.PipelineKey()] = append([]byte(nil), data...)
	return nil
}

func (b *headlessRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return fmt.Errorf("previous frame not yet ended")
	}
	b.frame++
	b.inFrame = true
	return nil
}

func (b *headlessRendererBackendImpl) DrawPoints(p pipeline.Pipeline, vb compute.GraphicsBuffer, count uint32) error {
	b.mu.Lock()
	if !b.inFrame {
		b.mu.Unlock()
		return ErrNoFrame
	}
	if vb == nil || b.buffers[vb.ID()] == nil {
		b.mu.Unlock()
		return ErrUnknownBuffer
	}
	if uint64(count)*16 > vb.Size() {
		b.mu.Unlock()
		return fmt.Errorf("draw of %d vertices overruns buffer %d of %d bytes", count, vb.ID(), vb.Size())
	}
	rec := DrawRecord{Frame: b.frame, PipelineKey: p.PipelineKey(), BufferID: vb.ID(), Count: count}
	b.draws = append(b.draws, rec)
	hook := b.hook
	b.mu.Unlock()

	if hook != nil {
		hook(rec, vb)
	}
	return nil
}

func (b *headlessRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFrame = false
}

func (b *headlessRendererBackendImpl) Present() {}

// records returns a copy of every draw recorded so far.
func (b *headlessRendererBackendImpl) records() []DrawRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DrawRecord, len(b.draws))
	copy(out, b.draws)
	return out
}

// uniform returns the last data written to the pipeline's uniform.
func (b *headlessRendererBackendImpl) uniform(key string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uniforms[key]
}
