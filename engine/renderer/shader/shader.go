package shader

import (
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga/ir"
)

// ShaderType identifies which pipeline stage a shader's entry point runs in.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the WGSL attribute name of the stage.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// shader is the implementation of the Shader interface.
// It holds the validated WGSL module and the layout metadata reflected from it.
type shader struct {
	key        string
	source     string
	shaderType ShaderType
	entryPoint string

	module *ir.Module

	bindings                   []Binding
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	vertexLayouts              []wgpu.VertexBufferLayout
	workgroupSize              [3]uint32
}

// Shader defines the interface for a compiled and reflected WGSL shader. It exposes the shader's
// unique key, source, selected entry point and the resource layout derived from the validated module,
// which both the renderer and the compute backends use to build pipelines and bind arguments.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage of the selected entry point.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the selected entry point name.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// EntryPoints lists every entry point of the given stage in declaration order.
	//
	// Parameters:
	//   - stage: the stage to filter on
	//
	// Returns:
	//   - []string: entry point names, empty if none
	EntryPoints(stage ShaderType) []string

	// WorkgroupSize returns the @workgroup_size of the selected compute entry point.
	// Returns [0, 0, 0] for non-compute shaders.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns every @group/@binding resource declared by the module, sorted by group then binding.
	//
	// Returns:
	//   - []Binding: the reflected resource bindings
	Bindings() []Binding

	// Binding looks up a single resource binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - Binding: the reflected binding
	//   - bool: false if the module declares no such binding
	Binding(group, binding uint32) (Binding, bool)

	// BindGroupVarName retrieves the variable name for a given group and binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if not found
	BindGroupVarName(group, binding uint32) string

	// BindGroupLayoutDescriptors retrieves the wgpu layout descriptors for every bind group,
	// with visibility set to this shader's stage.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// VertexLayouts returns the vertex buffer layouts consumed by a vertex entry point.
	// Every @location input of the entry point is packed, in declaration order, into one interleaved buffer.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the layouts, nil for non-vertex shaders
	VertexLayouts() []wgpu.VertexBufferLayout

	// Module returns the validated intermediate representation of the shader.
	//
	// Returns:
	//   - *ir.Module: the module
	Module() *ir.Module
}

var _ Shader = &shader{}

// NewShader compiles and reflects a WGSL shader from source.
// The first entry point matching shaderType is selected unless WithEntryPoint names another one.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the stage whose entry point is selected
//   - source: the WGSL source code
//   - options: functional options to configure the shader
//
// Returns:
//   - Shader: the compiled shader
//   - error: a *CompileError when the source does not parse or validate, or an error when no entry point matches
func NewShader(key string, shaderType ShaderType, source string, options ...ShaderBuilderOption) (Shader, error) {
	s := &shader{
		key:        key,
		source:     source,
		shaderType: shaderType,
	}
	for _, option := range options {
		option(s)
	}

	module, err := compileModule(key, source)
	if err != nil {
		return nil, err
	}
	s.module = module

	if err := s.reflect(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewShaderFromFile reads WGSL from path and compiles it with NewShader.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage whose entry point is selected
//   - path: the file path to read WGSL source from
//   - options: functional options to configure the shader
//
// Returns:
//   - Shader: the compiled shader
//   - error: an error if the file cannot be read or the shader does not compile
func NewShaderFromFile(key string, shaderType ShaderType, path string, options ...ShaderBuilderOption) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to read source file %q: %w", key, path, err)
	}
	return NewShader(key, shaderType, string(data), options...)
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) EntryPoints(stage ShaderType) []string {
	var names []string
	for _, ep := range s.module.EntryPoints {
		if ep.Stage == irStage(stage) {
			names = append(names, ep.Name)
		}
	}
	return names
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workgroupSize
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}

func (s *shader) Binding(group, binding uint32) (Binding, bool) {
	for _, b := range s.bindings {
		if b.Group == group && b.Binding == binding {
			return b, true
		}
	}
	return Binding{}, false
}

func (s *shader) BindGroupVarName(group, binding uint32) string {
	b, ok := s.Binding(group, binding)
	if !ok {
		return ""
	}
	return b.Name
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) Module() *ir.Module {
	return s.module
}

// reflect selects the entry point and derives the workgroup size, resource bindings and vertex layouts.
func (s *shader) reflect() error {
	ep, err := selectEntryPoint(s.module, s.shaderType, s.entryPoint)
	if err != nil {
		return fmt.Errorf("shader %s: %w", s.key, err)
	}
	s.entryPoint = ep.Name

	if s.shaderType == ShaderTypeCompute {
		s.workgroupSize = ep.Workgroup
		for i := range s.workgroupSize {
			if s.workgroupSize[i] == 0 {
				s.workgroupSize[i] = 1
			}
		}
	}

	s.bindings, err = reflectBindings(s.module)
	if err != nil {
		return fmt.Errorf("shader %s: %w", s.key, err)
	}
	s.bindGroupLayoutDescriptors = layoutDescriptors(s.key, s.bindings, visibility(s.shaderType))

	if s.shaderType == ShaderTypeVertex {
		layout, err := reflectVertexLayout(s.module, ep)
		if err != nil {
			return fmt.Errorf("shader %s: %w", s.key, err)
		}
		if len(layout.Attributes) > 0 {
			s.vertexLayouts = []wgpu.VertexBufferLayout{layout}
		}
	}
	return nil
}

func visibility(t ShaderType) wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}
