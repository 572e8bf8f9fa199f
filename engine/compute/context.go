package compute

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ComputeContext is a compute context bound to a graphics context so the two can share buffers.
type ComputeContext interface {
	// ID returns the identity of the context, used in logs.
	//
	// Returns:
	//   - uuid.UUID: the context ID
	ID() uuid.UUID

	// Device returns the device the context runs on.
	//
	// Returns:
	//   - Device: the device
	Device() Device

	// Graphics returns the graphics context this context is bound to.
	//
	// Returns:
	//   - GraphicsContext: the graphics context
	Graphics() GraphicsContext
}

type computeContext struct {
	id      uuid.UUID
	device  Device
	gfx     GraphicsContext
	backend contextBackend
	logger  *zap.Logger
}

var _ ComputeContext = &computeContext{}

func (c *computeContext) ID() uuid.UUID {
	return c.id
}

func (c *computeContext) Device() Device {
	return c.device
}

func (c *computeContext) Graphics() GraphicsContext {
	return c.gfx
}

// ContextBinder creates the single compute context of a renderer and its command queue.
type ContextBinder interface {
	// Bind creates a compute context on dev that shares memory with gfx, plus an in-order queue.
	//
	// Parameters:
	//   - dev: the device returned by the selector
	//   - gfx: the active graphics context
	//
	// Returns:
	//   - ComputeContext: the bound context
	//   - CommandQueue: the queue all acquire, dispatch and release commands go through
	//   - error: ErrNoDevice, ErrNoCurrentContext, ErrUnsupportedSharing or ErrAlreadyBound
	Bind(dev Device, gfx GraphicsContext) (ComputeContext, CommandQueue, error)
}

type contextBinder struct {
	selector     DeviceSelector
	logger       *zap.Logger
	historyLimit int
	bound        bool
}

var _ ContextBinder = &contextBinder{}

// NewContextBinder creates a binder that binds contexts on devices of the selector's backend.
//
// Parameters:
//   - selector: the selector the device came from
//   - options: a variadic list of ContextBinderOption functions
//
// Returns:
//   - ContextBinder: the binder
func NewContextBinder(selector DeviceSelector, options ...ContextBinderOption) ContextBinder {
	b := &contextBinder{
		selector:     selector,
		logger:       zap.NewNop(),
		historyLimit: 1024,
	}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *contextBinder) Bind(dev Device, gfx GraphicsContext) (ComputeContext, CommandQueue, error) {
	if b.bound {
		return nil, nil, ErrAlreadyBound
	}
	if dev == nil {
		return nil, nil, ErrNoDevice
	}
	if gfx == nil || !gfx.Current() {
		return nil, nil, ErrNoCurrentContext
	}
	if !b.selector.SupportsSharing(dev) {
		return nil, nil, fmt.Errorf("%w: device %q", ErrUnsupportedSharing, dev.Name())
	}
	if dev.Backend() != gfx.Backend() {
		return nil, nil, fmt.Errorf("%w: %s device cannot share with a %s graphics context",
			ErrUnsupportedSharing, dev.Backend(), gfx.Backend())
	}

	cb, err := b.selector.Backend().bind(dev, gfx)
	if err != nil {
		return nil, nil, err
	}

	ctx := &computeContext{
		id:      uuid.New(),
		device:  dev,
		gfx:     gfx,
		backend: cb,
	}
	ctx.logger = b.logger.With(zap.Stringer("compute_context", ctx.id))
	b.bound = true

	ctx.logger.Info("bound compute context", zap.String("device", dev.Name()))
	return ctx, newCommandQueue(ctx, b.historyLimit), nil
}

// contextOf unwraps a ComputeContext created by this package.
func contextOf(ctx ComputeContext) (*computeContext, error) {
	c, ok := ctx.(*computeContext)
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %T was not created by a ContextBinder", ErrContextMismatch, ctx)
	}
	return c, nil
}
