package shader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComputeSource = `
struct Params {
    radius: f32,
    phi_slices: u32,
    theta_slices: u32,
}

@group(0) @binding(0) var<storage, read_write> vertices: array<vec4<f32>>;
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(1, 1)
fn fill(@builtin(global_invocation_id) id: vec3<u32>) {
    let index = id.x * params.phi_slices + id.y;
    if (index < arrayLength(&vertices)) {
        vertices[index] = vec4<f32>(params.radius, 0.0, 0.0, 1.0);
    }
}
`

const testRenderSource = `
struct Camera {
    view_proj: mat4x4<f32>,
    position: vec3<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;

struct VertexInput {
    @location(0) position: vec4<f32>,
}

struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.clip = camera.view_proj * in.position;
    out.color = vec4<f32>(1.0, 1.0, 1.0, 1.0);
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color;
}
`

func TestNewShaderReflectsComputeKernel(t *testing.T) {
	s, err := NewShader("fill", ShaderTypeCompute, testComputeSource)
	require.NoError(t, err)

	assert.Equal(t, "fill", s.EntryPoint())
	assert.Equal(t, [3]uint32{1, 1, 1}, s.WorkgroupSize())
	assert.Equal(t, []string{"fill"}, s.EntryPoints(ShaderTypeCompute))
	assert.Empty(t, s.EntryPoints(ShaderTypeVertex))

	bindings := s.Bindings()
	require.Len(t, bindings, 2)

	assert.Equal(t, "vertices", bindings[0].Name)
	assert.Equal(t, BindingStorage, bindings[0].Kind)
	assert.Equal(t, uint64(16), bindings[0].ElementStride)

	assert.Equal(t, "params", bindings[1].Name)
	assert.Equal(t, BindingUniform, bindings[1].Kind)
	assert.Equal(t, uint64(12), bindings[1].Size)

	assert.Equal(t, "params", s.BindGroupVarName(0, 1))
	assert.Equal(t, "", s.BindGroupVarName(3, 0))

	desc, ok := s.BindGroupLayoutDescriptors()[0]
	require.True(t, ok)
	require.Len(t, desc.Entries, 2)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, desc.Entries[0].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[1].Buffer.Type)
	assert.Equal(t, wgpu.ShaderStageCompute, desc.Entries[1].Visibility)
	assert.Nil(t, s.VertexLayouts())
}

func TestNewShaderReflectsVertexLayout(t *testing.T) {
	s, err := NewShader("points", ShaderTypeVertex, testRenderSource)
	require.NoError(t, err)

	assert.Equal(t, "vs_main", s.EntryPoint())
	assert.Equal(t, [3]uint32{}, s.WorkgroupSize())

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(16), layouts[0].ArrayStride)
	require.Len(t, layouts[0].Attributes, 1)
	assert.Equal(t, wgpu.VertexFormatFloat32x4, layouts[0].Attributes[0].Format)
	assert.Equal(t, uint32(0), layouts[0].Attributes[0].ShaderLocation)

	camera, ok := s.Binding(0, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(80), camera.Size)

	frag, err := NewShader("points", ShaderTypeFragment, testRenderSource)
	require.NoError(t, err)
	assert.Equal(t, "fs_main", frag.EntryPoint())
	assert.Equal(t, wgpu.ShaderStageFragment, frag.BindGroupLayoutDescriptors()[0].Entries[0].Visibility)
}

func TestNewShaderEntryPointSelection(t *testing.T) {
	_, err := NewShader("points", ShaderTypeCompute, testRenderSource)
	assert.ErrorIs(t, err, ErrNoEntryPoint)

	_, err = NewShader("fill", ShaderTypeCompute, testComputeSource, WithEntryPoint("missing"))
	assert.ErrorIs(t, err, ErrNoEntryPoint)

	s, err := NewShader("fill", ShaderTypeCompute, testComputeSource, WithEntryPoint("fill"))
	require.NoError(t, err)
	assert.Equal(t, "fill", s.EntryPoint())
}

func TestNewShaderCompileError(t *testing.T) {
	_, err := NewShader("broken", ShaderTypeCompute, "@compute @workgroup_size(1) fn main( {")
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "broken", compileErr.Key)
	assert.NotEmpty(t, compileErr.Log)
}

func TestNewShaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fill.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(testComputeSource), 0o600))

	s, err := NewShaderFromFile("fill", ShaderTypeCompute, path)
	require.NoError(t, err)
	assert.Equal(t, testComputeSource, s.Source())

	_, err = NewShaderFromFile("fill", ShaderTypeCompute, filepath.Join(t.TempDir(), "missing.wgsl"))
	assert.Error(t, err)
}
