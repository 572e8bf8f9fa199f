package geometry

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-sphere/common"
	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
	"github.com/Carmen-Shannon/oxy-sphere/engine/metrics"
	"go.uber.org/zap"
)

// GeometryState is the lifecycle state of a generated mesh.
type GeometryState int

const (
	// StateUninitialized means no compute context has been bound yet.
	StateUninitialized GeometryState = iota
	// StateInitialized means the compute context is bound but the buffer holds no current geometry.
	StateInitialized
	// StateTesselated means the buffer holds the geometry of the current parameters.
	StateTesselated
)

func (s GeometryState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateTesselated:
		return "tesselated"
	default:
		return fmt.Sprintf("GeometryState(%d)", int(s))
	}
}

// ErrInvalidParameters is returned for a non-positive radius or a zero slice count.
var ErrInvalidParameters = errors.New("invalid sphere parameters")

// Parameters are the inputs of the sphere tesselation.
type Parameters struct {
	Radius      float32 `toml:"radius" yaml:"radius"`
	PhiSlices   uint32  `toml:"phi_slices" yaml:"phi_slices"`
	ThetaSlices uint32  `toml:"theta_slices" yaml:"theta_slices"`
}

// DefaultParameters returns a radius 5 sphere with 100 slices in each direction.
func DefaultParameters() Parameters {
	return Parameters{Radius: 5, PhiSlices: 100, ThetaSlices: 100}
}

// Validate checks radius > 0 and both slice counts >= 1.
func (p Parameters) Validate() error {
	if !(p.Radius > 0) {
		return fmt.Errorf("%w: radius %v must be positive", ErrInvalidParameters, p.Radius)
	}
	if p.PhiSlices == 0 || p.ThetaSlices == 0 {
		return fmt.Errorf("%w: slices %dx%d must be at least 1", ErrInvalidParameters, p.PhiSlices, p.ThetaSlices)
	}
	return nil
}

// VertexCount returns phiSlices * thetaSlices.
func (p Parameters) VertexCount() int {
	return int(p.PhiSlices) * int(p.ThetaSlices)
}

// Sphere is a Mapper that tesselates a sphere on the compute device directly into a vertex
// buffer owned by the renderer, then draws it as points every frame.
type Sphere interface {
	Mapper

	// State returns the current lifecycle state.
	//
	// Returns:
	//   - GeometryState: the state
	State() GeometryState

	// Err returns the error that disabled the sphere, or nil. Errors caused by the parameters
	// last until SetParameters changes them; all others are permanent.
	//
	// Returns:
	//   - error: the sticky error
	Err() error

	// Parameters returns the current tesselation parameters.
	//
	// Returns:
	//   - Parameters: the parameters
	Parameters() Parameters

	// SetParameters changes the tesselation parameters. A change sends a tesselated sphere back to
	// StateInitialized so the next Render regenerates it; a change of vertex count also retires
	// the current buffer. A change also clears an error the old parameters caused, such as a
	// dispatch over the device limits.
	//
	// Parameters:
	//   - p: the new parameters
	//
	// Returns:
	//   - error: ErrInvalidParameters if p is invalid
	SetParameters(p Parameters) error

	// SharedBuffer returns the buffer the sphere is tesselated into, nil before the first tesselation.
	//
	// Returns:
	//   - compute.SharedBuffer: the buffer
	SharedBuffer() compute.SharedBuffer

	// DispatchCount returns how many tesselation dispatches have completed.
	//
	// Returns:
	//   - int: the dispatch count
	DispatchCount() int

	// Destroy frees the sphere's vertex buffers on surface.
	//
	// Parameters:
	//   - surface: the surface the buffers were created on
	Destroy(surface RenderSurface)
}

type sphere struct {
	name        string
	params      Parameters
	state       GeometryState
	err         error
	source      string
	pipelineKey string

	selector compute.DeviceSelector
	ctx      compute.ComputeContext
	queue    compute.CommandQueue
	kernel   compute.Kernel
	buffer   compute.SharedBuffer
	retired  []compute.GraphicsBuffer

	dispatches int

	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ Sphere = &sphere{}

// NewSphere creates a sphere mapper that selects its compute device with selector.
//
// Parameters:
//   - selector: the device selector of the compute backend paired with the renderer
//   - options: a variadic list of SphereBuilderOption functions
//
// Returns:
//   - Sphere: the sphere, in StateUninitialized
func NewSphere(selector compute.DeviceSelector, options ...SphereBuilderOption) Sphere {
	s := &sphere{
		name:        "sphere",
		params:      DefaultParameters(),
		source:      tesselateSphereSource,
		pipelineKey: PointsPipelineKey,
		selector:    selector,
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(s)
	}
	s.logger = s.logger.With(zap.String("mapper", s.name))
	s.metrics.SetGeometryState(s.name, int(s.state))
	return s
}

func (s *sphere) State() GeometryState {
	return s.state
}

func (s *sphere) Err() error {
	return s.err
}

func (s *sphere) Parameters() Parameters {
	return s.params
}

func (s *sphere) SharedBuffer() compute.SharedBuffer {
	return s.buffer
}

func (s *sphere) DispatchCount() int {
	return s.dispatches
}

func (s *sphere) GetBounds() Bounds {
	r := s.params.Radius
	return Bounds{-r, r, -r, r, -r, r}
}

func (s *sphere) Initialize(surface RenderSurface, _ *Actor) error {
	if s.err != nil {
		return s.err
	}
	if s.state != StateUninitialized {
		return nil
	}

	dev, err := s.selector.SelectDefaultDevice()
	if err != nil {
		return s.disable(err)
	}
	if !s.selector.SupportsSharing(dev) {
		return s.disable(fmt.Errorf("%w: device %q", compute.ErrUnsupportedSharing, dev.Name()))
	}

	binder := compute.NewContextBinder(s.selector, compute.WithBinderLogger(s.logger))
	ctx, queue, err := binder.Bind(dev, surface.GraphicsContext())
	if err != nil {
		return s.disable(err)
	}

	s.ctx = ctx
	s.queue = queue
	s.setState(StateInitialized)
	return nil
}

func (s *sphere) Render(surface RenderSurface, actor *Actor) {
	if s.err != nil {
		return
	}
	s.destroyRetired(surface)

	if s.state == StateUninitialized {
		if err := s.Initialize(surface, actor); err != nil {
			return
		}
	}

	if s.state == StateInitialized {
		if err := s.tesselate(surface); err != nil {
			if isSticky(err) {
				s.disable(err)
			} else {
				s.logger.Warn("tesselation failed, retrying next frame", zap.Error(err))
			}
			return
		}
	}

	if actor != nil && !actor.Visible {
		return
	}
	count := uint32(s.params.VertexCount())
	if err := surface.DrawPoints(s.pipelineKey, s.buffer.GraphicsBuffer(), count); err != nil {
		s.logger.Warn("draw failed", zap.Error(err))
	}
}

func (s *sphere) SetParameters(p Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p == s.params {
		return nil
	}

	if p.VertexCount() != s.params.VertexCount() && s.buffer != nil {
		s.retired = append(s.retired, s.buffer.GraphicsBuffer())
		s.buffer = nil
	}
	s.params = p
	if s.state == StateTesselated {
		s.setState(StateInitialized)
	}
	if s.err != nil && isParameterError(s.err) {
		s.logger.Info("sphere re-enabled", zap.NamedError("previous", s.err))
		s.err = nil
	}

	s.logger.Info("sphere parameters changed",
		zap.Float32("radius", p.Radius),
		zap.Uint32("phi_slices", p.PhiSlices),
		zap.Uint32("theta_slices", p.ThetaSlices),
	)
	return nil
}

func (s *sphere) Destroy(surface RenderSurface) {
	if s.buffer != nil {
		s.retired = append(s.retired, s.buffer.GraphicsBuffer())
		s.buffer = nil
	}
	s.destroyRetired(surface)
	if s.state == StateTesselated {
		s.setState(StateInitialized)
	}
}

// tesselate fills the shared buffer: acquire, dispatch, release, then wait for the queue.
// A failed dispatch still releases the buffer so graphics owns it again.
func (s *sphere) tesselate(surface RenderSurface) error {
	if s.buffer == nil {
		count := s.params.VertexCount()
		gb, err := surface.CreateVertexBuffer(s.name+" vertices", uint64(count)*common.Vec4Stride)
		if err != nil {
			return fmt.Errorf("failed to allocate vertex buffer: %w", err)
		}
		sb, err := compute.NewSharedBuffer(s.ctx, gb, count)
		if err != nil {
			surface.DestroyVertexBuffer(gb)
			return err
		}
		s.buffer = sb
	}

	if s.kernel == nil {
		program, err := compute.Compile(s.ctx, s.source)
		if err != nil {
			return err
		}
		kernel, err := compute.MakeKernel(program, KernelName)
		if err != nil {
			return err
		}
		s.kernel = kernel
	}

	p := s.params
	if err := s.kernel.SetArgs(p.Radius, p.PhiSlices, p.ThetaSlices, s.buffer); err != nil {
		return err
	}

	start := time.Now()
	if err := s.buffer.Acquire(s.queue); err != nil {
		return err
	}
	if err := s.kernel.Dispatch(s.queue, [2]uint32{p.PhiSlices, p.ThetaSlices}, [2]uint32{1, 1}); err != nil {
		s.metrics.ObserveDispatch(KernelName, 0, err)
		if relErr := s.buffer.Release(s.queue); relErr != nil {
			return errors.Join(err, relErr)
		}
		return err
	}
	if err := s.buffer.Release(s.queue); err != nil {
		return err
	}
	if err := s.queue.Finish(); err != nil {
		s.metrics.ObserveDispatch(KernelName, 0, err)
		return err
	}

	elapsed := time.Since(start)
	s.metrics.ObserveDispatch(KernelName, elapsed, nil)
	s.dispatches++
	s.setState(StateTesselated)
	s.logger.Debug("tesselated sphere",
		zap.Int("vertices", p.VertexCount()),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (s *sphere) destroyRetired(surface RenderSurface) {
	for _, gb := range s.retired {
		surface.DestroyVertexBuffer(gb)
	}
	s.retired = s.retired[:0]
}

// disable records err as permanent; the sphere draws nothing from now on.
func (s *sphere) disable(err error) error {
	s.err = err
	s.logger.Error("sphere disabled", zap.Error(err), zap.Stringer("state", s.state))
	return err
}

func (s *sphere) setState(state GeometryState) {
	s.state = state
	s.metrics.SetGeometryState(s.name, int(state))
}

// isSticky reports whether err cannot be fixed by retrying on a later frame.
func isSticky(err error) bool {
	var be *compute.BuildError
	return errors.As(err, &be) ||
		errors.Is(err, compute.ErrKernelNotFound) ||
		errors.Is(err, compute.ErrUnsupportedSharing) ||
		errors.Is(err, compute.ErrWorkgroupMismatch) ||
		isParameterError(err)
}

// isParameterError reports whether err came from the current parameters.
// A later parameter change clears it.
func isParameterError(err error) bool {
	return errors.Is(err, compute.ErrBufferSize) ||
		errors.Is(err, compute.ErrInvalidArgs) ||
		errors.Is(err, compute.ErrDispatchTooLarge)
}
