package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
	"github.com/Carmen-Shannon/oxy-sphere/engine/geometry"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeadless(t *testing.T, options ...RendererBuilderOption) Renderer {
	t.Helper()
	r := NewRenderer(BackendTypeHeadless, nil, options...)
	p, err := geometry.NewPointsPipeline(geometry.PointsPipelineKey)
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(p))
	return r
}

func TestHeadlessGraphicsContext(t *testing.T) {
	r := NewRenderer(BackendTypeHeadless, nil)
	ctx := r.GraphicsContext()
	assert.Equal(t, compute.BackendTypeSoftware, ctx.Backend())
	assert.True(t, ctx.Current())
	assert.Equal(t, compute.BackendTypeSoftware, r.ComputeBackend().Type())

	r.Resize(0, 0)
	assert.False(t, ctx.Current())
	r.Resize(640, 480)
	assert.True(t, ctx.Current())

	zero := NewRenderer(BackendTypeHeadless, nil, WithHeadlessSize(0, 0))
	assert.False(t, zero.GraphicsContext().Current())
}

func TestRegisterPipelines(t *testing.T) {
	r := newHeadless(t)
	require.NotNil(t, r.Pipeline(geometry.PointsPipelineKey))
	assert.Len(t, r.Pipelines(), 1)

	// already registered keys are skipped
	p, err := geometry.NewPointsPipeline(geometry.PointsPipelineKey)
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(p))
	assert.NotSame(t, p, r.Pipeline(geometry.PointsPipelineKey))

	err = r.RegisterPipelines(pipeline.NewPipeline("empty", pipeline.PipelineTypeRender))
	require.ErrorIs(t, err, pipeline.ErrMissingShader)
	assert.Nil(t, r.Pipeline("empty"))

	err = r.RegisterPipelines(pipeline.NewPipeline("kernel", pipeline.PipelineTypeCompute))
	require.Error(t, err)
}

func TestWriteUniform(t *testing.T) {
	r := newHeadless(t)

	require.NoError(t, r.WriteUniform(geometry.PointsPipelineKey, make([]byte, 80)))
	require.ErrorIs(t, r.WriteUniform(geometry.PointsPipelineKey, make([]byte, 64)), ErrUniformSize)
	require.Error(t, r.WriteUniform("missing", make([]byte, 80)))

	h := r.(*renderer).backend.(*headlessRendererBackendImpl)
	data := make([]byte, 80)
	data[0] = 7
	require.NoError(t, r.WriteUniform(geometry.PointsPipelineKey, data))
	data[0] = 9
	assert.Equal(t, byte(7), h.uniform(geometry.PointsPipelineKey)[0])
}

func TestDrawPoints(t *testing.T) {
	var hooked []DrawRecord
	r := newHeadless(t, WithDrawHook(func(rec DrawRecord, vb compute.GraphicsBuffer) {
		hooked = append(hooked, rec)
		assert.Equal(t, rec.BufferID, vb.ID())
	}))

	vb, err := r.CreateVertexBuffer("test", 4*16)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), vb.Size())
	assert.Len(t, vb.Native(), 64)

	require.ErrorIs(t, r.DrawPoints(geometry.PointsPipelineKey, vb, 4), ErrNoFrame)

	require.NoError(t, r.BeginFrame())
	require.Error(t, r.BeginFrame())
	require.NoError(t, r.DrawPoints(geometry.PointsPipelineKey, vb, 4))
	require.Error(t, r.DrawPoints(geometry.PointsPipelineKey, vb, 5))
	require.Error(t, r.DrawPoints("missing", vb, 4))
	require.ErrorIs(t, r.DrawPoints(geometry.PointsPipelineKey, nil, 4), ErrUnknownBuffer)
	r.EndFrame()
	r.Present()

	r.DestroyVertexBuffer(vb)
	require.NoError(t, r.BeginFrame())
	require.ErrorIs(t, r.DrawPoints(geometry.PointsPipelineKey, vb, 4), ErrUnknownBuffer)
	r.EndFrame()

	records := r.DrawRecords()
	require.Len(t, records, 1)
	assert.Equal(t, DrawRecord{Frame: 1, PipelineKey: geometry.PointsPipelineKey, BufferID: vb.ID(), Count: 4}, records[0])
	assert.Equal(t, records, hooked)
}

func TestCreateVertexBufferRejectsEmpty(t *testing.T) {
	r := NewRenderer(BackendTypeHeadless, nil)
	_, err := r.CreateVertexBuffer("empty", 0)
	require.Error(t, err)

	a, err := r.CreateVertexBuffer("a", 16)
	require.NoError(t, err)
	b, err := r.CreateVertexBuffer("b", 16)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestMergeBindGroupLayouts(t *testing.T) {
	r := newHeadless(t)
	p := r.Pipeline(geometry.PointsPipelineKey)

	vs := p.Shader(shader.ShaderTypeVertex).BindGroupLayoutDescriptors()
	fs := p.Shader(shader.ShaderTypeFragment).BindGroupLayoutDescriptors()
	merged := mergeBindGroupLayouts(vs, fs)
	require.Contains(t, merged, 0)
	require.Len(t, merged[0].Entries, 1)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, merged[0].Entries[0].Visibility)

	onlyVertex := mergeBindGroupLayouts(vs, nil)
	assert.Equal(t, vs[0].Entries, onlyVertex[0].Entries)
}
