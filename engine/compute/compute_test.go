package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const fillSource = `
struct Params {
    value: f32,
    columns: u32,
}

@group(0) @binding(0) var<storage, read_write> cells: array<vec4<f32>>;
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(1, 1)
fn fill(@builtin(global_invocation_id) id: vec3<u32>) {
    let i = id.x * params.columns + id.y;
    if (i < arrayLength(&cells)) {
        cells[i] = vec4<f32>(params.value, f32(id.x), f32(id.y), 1.0);
    }
}
`

func fillHost(id WorkItem, args HostArgs) {
	i := int(id.X*args.Uint32(1) + id.Y)
	args.Buffer(0).Store(i, [4]float32{args.Float32(0), float32(id.X), float32(id.Y), 1})
}

type hostContext struct {
	backend BackendType
	current bool
}

func (c *hostContext) Backend() BackendType { return c.backend }
func (c *hostContext) Current() bool { return c.current }
func (c *hostContext) Native() any { return nil }

type hostBuffer struct {
	id   uint32
	data []byte
}

func (b *hostBuffer) ID() uint32 { return b.id }
func (b *hostBuffer) Size() uint64 { return uint64(len(b.data)) }
func (b *hostBuffer) Native() any { return b.data }

func newHostBuffer(id uint32, vertices int) *hostBuffer {
	return &hostBuffer{id: id, data: make([]byte, vertices*16)}
}

func bindSoftware(t *testing.T, options ...SoftwareBackendOption) (ComputeContext, CommandQueue) {
	t.Helper()
	options = append([]SoftwareBackendOption{WithHostKernel("fill", fillHost)}, options...)
	selector := NewDeviceSelector(NewSoftwareBackend(options...))
	dev, err := selector.SelectDefaultDevice()
	require.NoError(t, err)
	ctx, q, err := NewContextBinder(selector).Bind(dev, &hostContext{backend: BackendTypeSoftware, current: true})
	require.NoError(t, err)
	return ctx, q
}

func TestSelectDefaultDevice(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	selector := NewDeviceSelector(NewSoftwareBackend(WithDeviceName("cpu0")), WithSelectorLogger(zap.New(core)))

	dev, err := selector.SelectDefaultDevice()
	require.NoError(t, err)
	assert.Equal(t, "cpu0", dev.Name())
	assert.Equal(t, BackendTypeSoftware, dev.Backend())
	assert.True(t, selector.SupportsSharing(dev))

	entries := logs.FilterMessage("selected compute device").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "cpu0", entries[0].ContextMap()["device"])
}

func TestSelectDefaultDeviceNone(t *testing.T) {
	_, err := NewDeviceSelector(NewSoftwareBackend(WithNoDevices())).SelectDefaultDevice()
	assert.ErrorIs(t, err, ErrNoDevice)

	_, err = NewDeviceSelector(NewSoftwareBackend(), WithDeviceFilter(func(Device) bool { return false })).SelectDefaultDevice()
	assert.ErrorIs(t, err, ErrNoDevice)

	assert.False(t, NewDeviceSelector(NewSoftwareBackend()).SupportsSharing(nil))
}

func TestBindErrors(t *testing.T) {
	t.Run("nil device", func(t *testing.T) {
		selector := NewDeviceSelector(NewSoftwareBackend())
		var (
			err error
			ctx ComputeContext
		)
		require.NotPanics(t, func() {
			ctx, _, err = NewContextBinder(selector).Bind(nil, &hostContext{backend: BackendTypeSoftware, current: true})
		})
		assert.ErrorIs(t, err, ErrNoDevice)
		assert.Nil(t, ctx)
	})

	t.Run("no current context", func(t *testing.T) {
		selector := NewDeviceSelector(NewSoftwareBackend())
		dev, err := selector.SelectDefaultDevice()
		require.NoError(t, err)

		_, _, err = NewContextBinder(selector).Bind(dev, &hostContext{backend: BackendTypeSoftware})
		assert.ErrorIs(t, err, ErrNoCurrentContext)
		_, _, err = NewContextBinder(selector).Bind(dev, nil)
		assert.ErrorIs(t, err, ErrNoCurrentContext)
	})

	t.Run("device without sharing", func(t *testing.T) {
		selector := NewDeviceSelector(NewSoftwareBackend(WithSharing(false)))
		dev, err := selector.SelectDefaultDevice()
		require.NoError(t, err)

		_, _, err = NewContextBinder(selector).Bind(dev, &hostContext{backend: BackendTypeSoftware, current: true})
		assert.ErrorIs(t, err, ErrUnsupportedSharing)
	})

	t.Run("foreign graphics backend", func(t *testing.T) {
		selector := NewDeviceSelector(NewSoftwareBackend())
		dev, err := selector.SelectDefaultDevice()
		require.NoError(t, err)

		_, _, err = NewContextBinder(selector).Bind(dev, &hostContext{backend: BackendTypeWGPU, current: true})
		assert.ErrorIs(t, err, ErrUnsupportedSharing)
	})

	t.Run("bound twice", func(t *testing.T) {
		selector := NewDeviceSelector(NewSoftwareBackend())
		dev, err := selector.SelectDefaultDevice()
		require.NoError(t, err)
		binder := NewContextBinder(selector)
		gfx := &hostContext{backend: BackendTypeSoftware, current: true}

		ctx, q, err := binder.Bind(dev, gfx)
		require.NoError(t, err)
		assert.Equal(t, ctx, q.Context())
		assert.Equal(t, gfx, ctx.Graphics())
		assert.Equal(t, dev, ctx.Device())

		_, _, err = binder.Bind(dev, gfx)
		assert.ErrorIs(t, err, ErrAlreadyBound)
	})
}

func TestNewSharedBuffer(t *testing.T) {
	ctx, _ := bindSoftware(t)

	sb, err := NewSharedBuffer(ctx, newHostBuffer(7, 10), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, sb.VertexCount())
	assert.Equal(t, uint32(7), sb.GraphicsBuffer().ID())
	assert.Equal(t, OwnerGraphics, sb.Owner())

	_, err = NewSharedBuffer(ctx, newHostBuffer(8, 10), 11)
	assert.ErrorIs(t, err, ErrBufferSize)
	_, err = NewSharedBuffer(ctx, newHostBuffer(8, 10), 0)
	assert.ErrorIs(t, err, ErrBufferSize)
	_, err = NewSharedBuffer(ctx, nil, 1)
	assert.ErrorIs(t, err, ErrBufferSize)
}

type deviceBuffer struct{ hostBuffer }

func (b *deviceBuffer) Native() any { return struct{}{} }

func TestNewSharedBufferNotShareable(t *testing.T) {
	ctx, _ := bindSoftware(t)

	_, err := NewSharedBuffer(ctx, &deviceBuffer{*newHostBuffer(1, 4)}, 4)
	assert.ErrorIs(t, err, ErrUnsupportedSharing)
}

func TestAcquireReleaseAlternate(t *testing.T) {
	ctx, q := bindSoftware(t)
	sb, err := NewSharedBuffer(ctx, newHostBuffer(3, 4), 4)
	require.NoError(t, err)

	assert.ErrorIs(t, sb.Release(q), ErrNotAcquired)

	require.NoError(t, sb.Acquire(q))
	assert.Equal(t, OwnerCompute, sb.Owner())
	assert.ErrorIs(t, sb.Acquire(q), ErrAlreadyAcquired)

	require.NoError(t, sb.Release(q))
	assert.Equal(t, OwnerGraphics, sb.Owner())

	cmds := q.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, CommandAcquire, cmds[0].Kind)
	assert.Equal(t, CommandRelease, cmds[1].Kind)
	assert.Equal(t, uint32(3), cmds[1].BufferID)
	assert.Less(t, cmds[0].Seq, cmds[1].Seq)
}

func TestAcquireForeignQueue(t *testing.T) {
	ctx, _ := bindSoftware(t)
	_, other := bindSoftware(t)
	sb, err := NewSharedBuffer(ctx, newHostBuffer(1, 1), 1)
	require.NoError(t, err)

	assert.ErrorIs(t, sb.Acquire(other), ErrContextMismatch)
	assert.Equal(t, OwnerGraphics, sb.Owner())
}

func TestCommandHistoryLimit(t *testing.T) {
	selector := NewDeviceSelector(NewSoftwareBackend())
	dev, err := selector.SelectDefaultDevice()
	require.NoError(t, err)
	ctx, q, err := NewContextBinder(selector, WithCommandHistory(3)).Bind(dev, &hostContext{backend: BackendTypeSoftware, current: true})
	require.NoError(t, err)
	sb, err := NewSharedBuffer(ctx, newHostBuffer(1, 1), 1)
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, sb.Acquire(q))
		require.NoError(t, sb.Release(q))
	}

	cmds := q.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, uint64(4), cmds[0].Seq)
	assert.Equal(t, uint64(6), cmds[2].Seq)
}

func TestCompileBuildError(t *testing.T) {
	ctx, _ := bindSoftware(t)

	_, err := Compile(ctx, "@compute @workgroup_size(1) fn broken( {")
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.NotEmpty(t, be.Log)

	_, err = Compile(ctx, "@vertex fn vs() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0, 0.0, 0.0, 1.0); }")
	require.ErrorAs(t, err, &be)
}

func TestMakeKernel(t *testing.T) {
	ctx, _ := bindSoftware(t)
	p, err := Compile(ctx, fillSource)
	require.NoError(t, err)
	assert.Equal(t, []string{"fill"}, p.Kernels())

	k, err := MakeKernel(p, "fill")
	require.NoError(t, err)
	assert.Equal(t, "fill", k.Name())
	assert.Equal(t, [3]uint32{1, 1, 1}, k.WorkgroupSize())

	_, err = MakeKernel(p, "missing")
	assert.ErrorIs(t, err, ErrKernelNotFound)
}

func TestMakeKernelWithoutHostImplementation(t *testing.T) {
	selector := NewDeviceSelector(NewSoftwareBackend())
	dev, err := selector.SelectDefaultDevice()
	require.NoError(t, err)
	ctx, _, err := NewContextBinder(selector).Bind(dev, &hostContext{backend: BackendTypeSoftware, current: true})
	require.NoError(t, err)

	p, err := Compile(ctx, fillSource)
	require.NoError(t, err)
	_, err = MakeKernel(p, "fill")
	assert.ErrorIs(t, err, ErrKernelNotFound)
}

func TestSetArgs(t *testing.T) {
	ctx, _ := bindSoftware(t)
	p, err := Compile(ctx, fillSource)
	require.NoError(t, err)
	k, err := MakeKernel(p, "fill")
	require.NoError(t, err)
	sb, err := NewSharedBuffer(ctx, newHostBuffer(1, 4), 4)
	require.NoError(t, err)

	assert.NoError(t, k.SetArgs(float32(1), uint32(2), sb))
	assert.ErrorIs(t, k.SetArgs(1.0, uint32(2), sb), ErrInvalidArgs)
	assert.ErrorIs(t, k.SetArgs(float32(1), sb), ErrInvalidArgs)
	assert.ErrorIs(t, k.SetArgs(float32(1), uint32(2)), ErrInvalidArgs)
	assert.ErrorIs(t, k.SetArgs(float32(1), uint32(2), uint32(3), sb), ErrInvalidArgs)

	otherCtx, _ := bindSoftware(t)
	foreign, err := NewSharedBuffer(otherCtx, newHostBuffer(2, 4), 4)
	require.NoError(t, err)
	assert.ErrorIs(t, k.SetArgs(float32(1), uint32(2), foreign), ErrContextMismatch)
}

func TestDispatch(t *testing.T) {
	ctx, q := bindSoftware(t)
	p, err := Compile(ctx, fillSource)
	require.NoError(t, err)
	k, err := MakeKernel(p, "fill")
	require.NoError(t, err)
	hb := newHostBuffer(5, 12)
	sb, err := NewSharedBuffer(ctx, hb, 12)
	require.NoError(t, err)

	assert.ErrorIs(t, k.Dispatch(q, [2]uint32{3, 4}, [2]uint32{1, 1}), ErrInvalidArgs)
	require.NoError(t, k.SetArgs(float32(2.5), uint32(4), sb))

	assert.ErrorIs(t, k.Dispatch(q, [2]uint32{3, 4}, [2]uint32{1, 1}), ErrNotAcquired)

	require.NoError(t, sb.Acquire(q))
	assert.ErrorIs(t, k.Dispatch(q, [2]uint32{3, 4}, [2]uint32{2, 1}), ErrWorkgroupMismatch)
	assert.ErrorIs(t, k.Dispatch(q, [2]uint32{0, 4}, [2]uint32{1, 1}), ErrInvalidArgs)
	assert.ErrorIs(t, k.Dispatch(q, [2]uint32{70000, 1}, [2]uint32{1, 1}), ErrDispatchTooLarge)

	require.NoError(t, k.Dispatch(q, [2]uint32{3, 4}, [2]uint32{1, 1}))
	require.NoError(t, sb.Release(q))
	require.NoError(t, q.Finish())

	view := newVec4View(hb.data)
	for x := range 3 {
		for y := range 4 {
			assert.Equal(t, [4]float32{2.5, float32(x), float32(y), 1}, view.Load(x*4+y))
		}
	}

	cmds := q.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, []CommandKind{CommandAcquire, CommandDispatch, CommandRelease},
		[]CommandKind{cmds[0].Kind, cmds[1].Kind, cmds[2].Kind})
	assert.Equal(t, "fill", cmds[1].Target)
}

func TestDispatchDropsOutOfRangeWrites(t *testing.T) {
	ctx, q := bindSoftware(t, WithWorkers(1))
	p, err := Compile(ctx, fillSource)
	require.NoError(t, err)
	k, err := MakeKernel(p, "fill")
	require.NoError(t, err)
	hb := newHostBuffer(1, 6)
	sb, err := NewSharedBuffer(ctx, hb, 6)
	require.NoError(t, err)

	require.NoError(t, k.SetArgs(float32(1), uint32(4), sb))
	require.NoError(t, sb.Acquire(q))
	require.NoError(t, k.Dispatch(q, [2]uint32{4, 4}, [2]uint32{1, 1}))
	require.NoError(t, sb.Release(q))

	assert.Len(t, hb.data, 6*16)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, newVec4View(hb.data).Load(5))
}

func TestDispatchOverlappingStoresStayWhole(t *testing.T) {
	// every work-item writes one of four elements, all components from its own ID
	overlap := func(id WorkItem, args HostArgs) {
		v := float32(id.X*1000 + id.Y)
		args.Buffer(0).Store(int(id.Y%4), [4]float32{v, v, v, v})
	}
	ctx, q := bindSoftware(t, WithWorkers(8), WithHostKernel("fill", overlap))
	p, err := Compile(ctx, fillSource)
	require.NoError(t, err)
	k, err := MakeKernel(p, "fill")
	require.NoError(t, err)
	hb := newHostBuffer(1, 4)
	sb, err := NewSharedBuffer(ctx, hb, 4)
	require.NoError(t, err)

	require.NoError(t, k.SetArgs(float32(0), uint32(64), sb))
	require.NoError(t, sb.Acquire(q))
	require.NoError(t, k.Dispatch(q, [2]uint32{64, 64}, [2]uint32{1, 1}))
	require.NoError(t, sb.Release(q))

	view := newVec4View(hb.data)
	for i := range 4 {
		v := view.Load(i)
		assert.Equal(t, [4]float32{v[0], v[0], v[0], v[0]}, v, "element %d", i)
		assert.Equal(t, uint32(i), uint32(v[0])%1000%4, "element %d", i)
	}
}

func TestVec4ViewBounds(t *testing.T) {
	view := newVec4View(make([]byte, 2*16))
	assert.Equal(t, 2, view.Len())
	assert.True(t, view.Store(1, [4]float32{1, 2, 3, 4}))
	assert.False(t, view.Store(2, [4]float32{1, 2, 3, 4}))
	assert.False(t, view.Store(-1, [4]float32{1, 2, 3, 4}))
	assert.Equal(t, [4]float32{1, 2, 3, 4}, view.Load(1))
	assert.Equal(t, [4]float32{}, view.Load(2))
}

func TestDispatchRecoversKernelPanic(t *testing.T) {
	ctx, q := bindSoftware(t, WithHostKernel("fill", func(WorkItem, HostArgs) { panic("boom") }))
	p, err := Compile(ctx, fillSource)
	require.NoError(t, err)
	k, err := MakeKernel(p, "fill")
	require.NoError(t, err)
	sb, err := NewSharedBuffer(ctx, newHostBuffer(1, 4), 4)
	require.NoError(t, err)

	require.NoError(t, k.SetArgs(float32(1), uint32(2), sb))
	require.NoError(t, sb.Acquire(q))
	err = k.Dispatch(q, [2]uint32{2, 2}, [2]uint32{1, 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	for _, c := range q.Commands() {
		assert.NotEqual(t, CommandDispatch, c.Kind)
	}
}

func TestRegisterHostKernel(t *testing.T) {
	RegisterHostKernel("registered_fill", fillHost)
	fn, ok := lookupHostKernel("registered_fill")
	assert.True(t, ok)
	assert.NotNil(t, fn)

	_, ok = lookupHostKernel("never_registered")
	assert.False(t, ok)
}
