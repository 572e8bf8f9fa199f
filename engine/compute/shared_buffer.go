package compute

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sphere/common"
	"go.uber.org/zap"
)

// Owner identifies the subsystem allowed to touch a SharedBuffer.
type Owner int

const (
	// OwnerGraphics means the renderer may draw from the buffer.
	OwnerGraphics Owner = iota
	// OwnerCompute means kernels may write the buffer.
	OwnerCompute
)

func (o Owner) String() string {
	if o == OwnerCompute {
		return "compute"
	}
	return "graphics"
}

// SharedBuffer is a graphics-owned vertex buffer that kernels can write in place. The buffer
// holds vertexCount 4-component float vertices, 16 bytes each, and starts graphics-owned.
// It is not safe for concurrent use; acquire and release happen on the render thread.
type SharedBuffer interface {
	// GraphicsBuffer returns the underlying graphics buffer.
	//
	// Returns:
	//   - GraphicsBuffer: the graphics buffer
	GraphicsBuffer() GraphicsBuffer

	// VertexCount returns the number of vertices the buffer holds.
	//
	// Returns:
	//   - int: the vertex count
	VertexCount() int

	// Owner returns the subsystem currently owning the buffer.
	//
	// Returns:
	//   - Owner: the current owner
	Owner() Owner

	// Acquire enqueues the transfer of the buffer from graphics to compute.
	//
	// Parameters:
	//   - q: the queue of the buffer's context
	//
	// Returns:
	//   - error: ErrAlreadyAcquired if compute already owns it, ErrContextMismatch for a foreign queue
	Acquire(q CommandQueue) error

	// Release enqueues the transfer of the buffer from compute back to graphics.
	//
	// Parameters:
	//   - q: the queue of the buffer's context
	//
	// Returns:
	//   - error: ErrNotAcquired if graphics already owns it, ErrContextMismatch for a foreign queue
	Release(q CommandQueue) error
}

type sharedBuffer struct {
	ctx         *computeContext
	gb          GraphicsBuffer
	vertexCount int
	label       string
	owner       Owner

	// backend view of the storage; only handed to kernels while compute owns the buffer
	view any
}

var _ SharedBuffer = &sharedBuffer{}

// NewSharedBuffer wraps a graphics buffer so kernels of ctx can write it.
//
// Parameters:
//   - ctx: the compute context the buffer is shared with
//   - gb: the graphics buffer, exactly 16*vertexCount bytes
//   - vertexCount: the number of vertices, at least 1
//
// Returns:
//   - SharedBuffer: the shared buffer, graphics-owned
//   - error: ErrBufferSize on a size mismatch, ErrUnsupportedSharing if the storage cannot be shared
func NewSharedBuffer(ctx ComputeContext, gb GraphicsBuffer, vertexCount int) (SharedBuffer, error) {
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}
	if gb == nil {
		return nil, fmt.Errorf("%w: nil graphics buffer", ErrBufferSize)
	}
	if vertexCount <= 0 || gb.Size() != uint64(vertexCount)*common.Vec4Stride {
		return nil, fmt.Errorf("%w: %d bytes for %d vertices", ErrBufferSize, gb.Size(), vertexCount)
	}
	if limit := c.device.Capabilities().MaxStorageBufferBindingSize; limit > 0 && gb.Size() > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds the binding limit of %d", ErrDispatchTooLarge, gb.Size(), limit)
	}

	view, err := c.backend.importBuffer(gb)
	if err != nil {
		return nil, err
	}

	b := &sharedBuffer{
		ctx:         c,
		gb:          gb,
		vertexCount: vertexCount,
		label:       fmt.Sprintf("vertex buffer %d", gb.ID()),
		owner:       OwnerGraphics,
		view:        view,
	}
	c.logger.Debug("shared graphics buffer", zap.Uint32("buffer", gb.ID()), zap.Int("vertices", vertexCount))
	return b, nil
}

func (b *sharedBuffer) GraphicsBuffer() GraphicsBuffer {
	return b.gb
}

func (b *sharedBuffer) VertexCount() int {
	return b.vertexCount
}

func (b *sharedBuffer) Owner() Owner {
	return b.owner
}

func (b *sharedBuffer) Acquire(q CommandQueue) error {
	cq, err := queueOf(q, b.ctx)
	if err != nil {
		return err
	}
	if b.owner == OwnerCompute {
		return fmt.Errorf("%w: %s", ErrAlreadyAcquired, b.label)
	}
	if err := cq.enqueue(CommandAcquire, b.label, b.gb.ID(), nil); err != nil {
		return err
	}
	b.owner = OwnerCompute
	return nil
}

func (b *sharedBuffer) Release(q CommandQueue) error {
	cq, err := queueOf(q, b.ctx)
	if err != nil {
		return err
	}
	if b.owner != OwnerCompute {
		return fmt.Errorf("%w: %s", ErrNotAcquired, b.label)
	}
	if err := cq.enqueue(CommandRelease, b.label, b.gb.ID(), nil); err != nil {
		return err
	}
	b.owner = OwnerGraphics
	return nil
}

// computeView returns the backend view of the storage while compute owns the buffer.
func (b *sharedBuffer) computeView() (any, error) {
	if b.owner != OwnerCompute {
		return nil, fmt.Errorf("%w: %s", ErrNotAcquired, b.label)
	}
	return b.view, nil
}
