package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointsSource = `
@vertex
fn vs_main(@location(0) position: vec4<f32>) -> @builtin(position) vec4<f32> {
    return position;
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("points", PipelineTypeRender)

	assert.Equal(t, "points", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.True(t, p.DepthTestEnabled())
	assert.True(t, p.DepthWriteEnabled())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Nil(t, p.BlendState())
	assert.Nil(t, p.Pipeline())
}

func TestNewPipelineOptions(t *testing.T) {
	vs, err := shader.NewShader("points", shader.ShaderTypeVertex, pointsSource)
	require.NoError(t, err)
	fs, err := shader.NewShader("points", shader.ShaderTypeFragment, pointsSource)
	require.NoError(t, err)

	p := NewPipeline("points", PipelineTypeRender,
		WithVertexShader(vs),
		WithFragmentShader(fs),
		WithTopology(wgpu.PrimitiveTopologyPointList),
		WithDepth(true, false),
		WithCullMode(wgpu.CullModeBack),
		WithAlphaBlending(),
		WithFrontFace(wgpu.FrontFaceCW),
		WithWriteMask(wgpu.ColorWriteMaskRed),
	)

	require.NoError(t, p.Validate())
	assert.Equal(t, vs, p.Shader(shader.ShaderTypeVertex))
	assert.Equal(t, fs, p.Shader(shader.ShaderTypeFragment))
	assert.Nil(t, p.Shader(shader.ShaderTypeCompute))
	assert.Equal(t, wgpu.PrimitiveTopologyPointList, p.Topology())
	assert.False(t, p.DepthWriteEnabled())
	assert.Equal(t, wgpu.CullModeBack, p.CullMode())
	require.NotNil(t, p.BlendState())
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, p.BlendState().Color.SrcFactor)
	assert.Equal(t, wgpu.FrontFaceCW, p.FrontFace())
	assert.Equal(t, wgpu.ColorWriteMaskRed, p.WriteMask())
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, NewPipeline("r", PipelineTypeRender).Validate(), ErrMissingShader)
	assert.ErrorIs(t, NewPipeline("c", PipelineTypeCompute).Validate(), ErrMissingShader)
	assert.Error(t, NewPipeline("x", PipelineType(7)).Validate())
}
