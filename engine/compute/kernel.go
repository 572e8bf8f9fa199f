package compute

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/shader"
	"go.uber.org/zap"
)

// Program is compiled kernel source. It may hold several compute entry points.
type Program interface {
	// Context returns the context the program was compiled for.
	//
	// Returns:
	//   - ComputeContext: the owning context
	Context() ComputeContext

	// Kernels lists the compute entry points of the program.
	//
	// Returns:
	//   - []string: the entry point names
	Kernels() []string
}

type program struct {
	ctx     *computeContext
	source  string
	names   []string
	entries map[string]shader.Shader
	handle  any
}

var _ Program = &program{}

func (p *program) Context() ComputeContext {
	return p.ctx
}

func (p *program) Kernels() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Compile builds WGSL kernel source for the device of ctx.
//
// Parameters:
//   - ctx: the compute context
//   - source: the WGSL source containing one or more @compute entry points
//
// Returns:
//   - Program: the compiled program
//   - error: a *BuildError carrying the compiler log if the source does not build
func Compile(ctx ComputeContext, source string) (Program, error) {
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}

	probe, err := shader.NewShader("program", shader.ShaderTypeCompute, source)
	if err != nil {
		return nil, buildError(err)
	}

	p := &program{
		ctx:     c,
		source:  source,
		entries: make(map[string]shader.Shader),
	}
	for _, name := range probe.EntryPoints(shader.ShaderTypeCompute) {
		s, err := shader.NewShader(name, shader.ShaderTypeCompute, source, shader.WithEntryPoint(name))
		if err != nil {
			return nil, buildError(err)
		}
		p.names = append(p.names, name)
		p.entries[name] = s
	}

	handle, err := c.backend.compileProgram(p)
	if err != nil {
		return nil, err
	}
	p.handle = handle

	c.logger.Debug("compiled kernel program", zap.Strings("kernels", p.names))
	return p, nil
}

func buildError(err error) error {
	var ce *shader.CompileError
	if errors.As(err, &ce) {
		return &BuildError{Log: ce.Log}
	}
	if errors.Is(err, shader.ErrNoEntryPoint) {
		return &BuildError{Log: "program has no @compute entry point"}
	}
	return &BuildError{Log: err.Error()}
}

// Kernel is one runnable compute entry point of a Program.
type Kernel interface {
	// Name returns the entry point name.
	//
	// Returns:
	//   - string: the kernel name
	Name() string

	// WorkgroupSize returns the @workgroup_size declared by the entry point.
	//
	// Returns:
	//   - [3]uint32: the workgroup size
	WorkgroupSize() [3]uint32

	// SetArgs binds the kernel arguments. Scalars (float32, uint32, int32) are packed in order
	// into the kernel's uniform binding and must fill it exactly. SharedBuffers are bound to the
	// kernel's storage bindings in binding order.
	//
	// Parameters:
	//   - args: the scalar and SharedBuffer arguments
	//
	// Returns:
	//   - error: ErrInvalidArgs or ErrContextMismatch
	SetArgs(args ...any) error

	// Dispatch enqueues the kernel over a 2-D range of global work-items split into workgroups of
	// local size. Every bound buffer must be acquired for compute.
	//
	// Parameters:
	//   - q: the queue of the kernel's context
	//   - global: the number of work-items per dimension
	//   - local: the workgroup size per dimension, equal to the kernel's declared size
	//
	// Returns:
	//   - error: ErrWorkgroupMismatch, ErrDispatchTooLarge, ErrNotAcquired, ErrInvalidArgs or a device error
	Dispatch(q CommandQueue, global, local [2]uint32) error
}

type kernel struct {
	program *program
	name    string
	shader  shader.Shader

	storage []shader.Binding
	uniform *shader.Binding

	scalars     []any
	uniformData []byte
	buffers     []*sharedBuffer
	argsSet     bool

	handle any
}

var _ Kernel = &kernel{}

// MakeKernel creates the kernel for one entry point of p.
//
// Parameters:
//   - p: the compiled program
//   - name: the compute entry point name
//
// Returns:
//   - Kernel: the kernel
//   - error: ErrKernelNotFound if p has no runnable entry point of that name
func MakeKernel(p Program, name string) (Kernel, error) {
	prog, ok := p.(*program)
	if !ok || prog == nil {
		return nil, fmt.Errorf("%w: %T was not created by Compile", ErrContextMismatch, p)
	}
	s, ok := prog.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKernelNotFound, name)
	}

	k := &kernel{
		program: prog,
		name:    name,
		shader:  s,
	}
	for _, b := range s.Bindings() {
		if b.Group != 0 {
			return nil, fmt.Errorf("kernel %q: binding %q is in group %d, kernels use group 0 only", name, b.Name, b.Group)
		}
		switch b.Kind {
		case shader.BindingStorage, shader.BindingReadOnlyStorage:
			k.storage = append(k.storage, b)
		case shader.BindingUniform:
			if k.uniform != nil {
				return nil, fmt.Errorf("kernel %q: more than one uniform binding", name)
			}
			u := b
			k.uniform = &u
		default:
			return nil, fmt.Errorf("kernel %q: binding %q is not a buffer", name, b.Name)
		}
	}

	handle, err := prog.ctx.backend.makeKernel(k)
	if err != nil {
		return nil, err
	}
	k.handle = handle
	return k, nil
}

func (k *kernel) Name() string {
	return k.name
}

func (k *kernel) WorkgroupSize() [3]uint32 {
	return k.shader.WorkgroupSize()
}

func (k *kernel) SetArgs(args ...any) error {
	var scalars []any
	var buffers []*sharedBuffer
	for i, arg := range args {
		switch v := arg.(type) {
		case float32, uint32, int32:
			scalars = append(scalars, v)
		case *sharedBuffer:
			if v.ctx != k.program.ctx {
				return fmt.Errorf("%w: argument %d", ErrContextMismatch, i)
			}
			buffers = append(buffers, v)
		default:
			return fmt.Errorf("%w: argument %d has unsupported type %T", ErrInvalidArgs, i, arg)
		}
	}

	if len(buffers) != len(k.storage) {
		return fmt.Errorf("%w: kernel %q takes %d buffers, got %d", ErrInvalidArgs, k.name, len(k.storage), len(buffers))
	}

	data := packScalars(scalars)
	switch {
	case k.uniform == nil && len(scalars) > 0:
		return fmt.Errorf("%w: kernel %q takes no scalars, got %d", ErrInvalidArgs, k.name, len(scalars))
	case k.uniform != nil && uint64(len(data)) != k.uniform.Size:
		return fmt.Errorf("%w: kernel %q uniform %q is %d bytes, scalars pack to %d",
			ErrInvalidArgs, k.name, k.uniform.Name, k.uniform.Size, len(data))
	}

	k.scalars = scalars
	k.uniformData = data
	k.buffers = buffers
	k.argsSet = true
	return nil
}

func (k *kernel) Dispatch(q CommandQueue, global, local [2]uint32) error {
	ctx := k.program.ctx
	cq, err := queueOf(q, ctx)
	if err != nil {
		return err
	}
	if !k.argsSet {
		return fmt.Errorf("%w: kernel %q has no arguments set", ErrInvalidArgs, k.name)
	}

	wg := k.shader.WorkgroupSize()
	if local[0] != wg[0] || local[1] != wg[1] || wg[2] != 1 {
		return fmt.Errorf("%w: kernel %q declares %v, dispatched with %v", ErrWorkgroupMismatch, k.name, wg, local)
	}
	if global[0] == 0 || global[1] == 0 {
		return fmt.Errorf("%w: empty global size %v", ErrInvalidArgs, global)
	}

	groups := [2]uint32{ceilDiv(global[0], local[0]), ceilDiv(global[1], local[1])}
	if limit := ctx.device.Capabilities().MaxWorkgroupsPerDimension; limit > 0 && (groups[0] > limit || groups[1] > limit) {
		return fmt.Errorf("%w: %v workgroups, limit %d per dimension", ErrDispatchTooLarge, groups, limit)
	}

	for _, b := range k.buffers {
		if b.owner != OwnerCompute {
			return fmt.Errorf("%w: %s", ErrNotAcquired, b.label)
		}
	}

	return cq.enqueue(CommandDispatch, k.name, 0, func() error {
		return ctx.backend.dispatch(k, global, groups)
	})
}

// views returns the backend views of the bound buffers in binding order.
func (k *kernel) views() ([]any, error) {
	out := make([]any, len(k.buffers))
	for i, b := range k.buffers {
		v, err := b.computeView()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func packScalars(scalars []any) []byte {
	out := make([]byte, 0, 4*len(scalars))
	for _, s := range scalars {
		switch v := s.(type) {
		case float32:
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		case uint32:
			out = binary.LittleEndian.AppendUint32(out, v)
		case int32:
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		}
	}
	return out
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}
