package shader

import (
	"fmt"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga/ir"
)

// BindingKind classifies a module-scope resource declaration.
type BindingKind int

const (
	// BindingUniform is a var<uniform> buffer.
	BindingUniform BindingKind = iota
	// BindingStorage is a var<storage, read_write> buffer.
	BindingStorage
	// BindingReadOnlyStorage is a var<storage> or var<storage, read> buffer.
	BindingReadOnlyStorage
	// BindingSampler is a sampler or sampler_comparison.
	BindingSampler
	// BindingTexture is a sampled or depth texture.
	BindingTexture
	// BindingStorageTexture is a texture_storage_* texture.
	BindingStorageTexture
)

// IsBuffer reports whether the binding is backed by a buffer.
func (k BindingKind) IsBuffer() bool {
	return k == BindingUniform || k == BindingStorage || k == BindingReadOnlyStorage
}

// Binding is the backend-neutral description of one @group/@binding declaration.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
	Kind    BindingKind

	// Size is the fixed byte size of a buffer binding, used as its minimum binding size.
	// For a runtime-sized array it is the size of one element.
	Size uint64
	// ElementStride is the stride of the runtime-sized array at the end of the binding, 0 if there is none.
	ElementStride uint64

	comparison bool
	image      ir.ImageType
}

// reflectBindings collects every global variable carrying a resource binding.
func reflectBindings(module *ir.Module) ([]Binding, error) {
	var bindings []Binding
	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		b := Binding{
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
			Name:    gv.Name,
		}

		switch gv.Space {
		case ir.SpaceUniform:
			b.Kind = BindingUniform
		case ir.SpaceStorage:
			b.Kind = BindingStorage
			if gv.Access == ir.StorageRead {
				b.Kind = BindingReadOnlyStorage
			}
		case ir.SpaceHandle:
			switch inner := typeInner(module, gv.Type).(type) {
			case ir.SamplerType:
				b.Kind = BindingSampler
				b.comparison = inner.Comparison
			case ir.ImageType:
				b.Kind = BindingTexture
				if inner.Class == ir.ImageClassStorage {
					b.Kind = BindingStorageTexture
				}
				b.image = inner
			default:
				return nil, fmt.Errorf("binding %s (@group(%d) @binding(%d)) has an unsupported handle type", gv.Name, b.Group, b.Binding)
			}
		default:
			continue
		}

		if b.Kind.IsBuffer() {
			layout, ok := typeLayout(module, gv.Type)
			if !ok {
				return nil, fmt.Errorf("binding %s: cannot resolve buffer layout", gv.Name)
			}
			b.Size = layout.size
			b.ElementStride = layout.runtimeStride
		}
		bindings = append(bindings, b)
	}

	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].Group != bindings[j].Group {
			return bindings[i].Group < bindings[j].Group
		}
		return bindings[i].Binding < bindings[j].Binding
	})
	return bindings, nil
}

// layoutDescriptors converts reflected bindings to wgpu bind group layout descriptors.
func layoutDescriptors(key string, bindings []Binding, stage wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	for _, b := range bindings {
		groups[int(b.Group)] = append(groups[int(b.Group)], layoutEntry(b, stage))
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		result[g] = wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", key, g),
			Entries: entries,
		}
	}
	return result
}

func layoutEntry(b Binding, stage wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    b.Binding,
		Visibility: stage,
	}

	switch b.Kind {
	case BindingUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = b.Size
	case BindingStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		entry.Buffer.MinBindingSize = b.Size
	case BindingReadOnlyStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		entry.Buffer.MinBindingSize = b.Size
	case BindingSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		if b.comparison {
			entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
	case BindingTexture:
		entry.Texture.ViewDimension = viewDimension(b.image)
		entry.Texture.Multisampled = b.image.Multisampled
		entry.Texture.SampleType = sampleType(b.image)
	case BindingStorageTexture:
		entry.StorageTexture.ViewDimension = viewDimension(b.image)
		entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
	}
	return entry
}

func viewDimension(img ir.ImageType) wgpu.TextureViewDimension {
	switch img.Dim {
	case ir.Dim1D:
		return wgpu.TextureViewDimension1D
	case ir.Dim3D:
		return wgpu.TextureViewDimension3D
	case ir.DimCube:
		if img.Arrayed {
			return wgpu.TextureViewDimensionCubeArray
		}
		return wgpu.TextureViewDimensionCube
	default:
		if img.Arrayed {
			return wgpu.TextureViewDimension2DArray
		}
		return wgpu.TextureViewDimension2D
	}
}

func sampleType(img ir.ImageType) wgpu.TextureSampleType {
	if img.Class == ir.ImageClassDepth {
		return wgpu.TextureSampleTypeDepth
	}
	switch img.SampledKind {
	case ir.ScalarSint:
		return wgpu.TextureSampleTypeSint
	case ir.ScalarUint:
		return wgpu.TextureSampleTypeUint
	default:
		return wgpu.TextureSampleTypeFloat
	}
}

// reflectVertexLayout packs the @location inputs of a vertex entry point into one interleaved buffer layout.
// Inputs are taken from plain arguments and from the members of struct arguments, in declaration order.
func reflectVertexLayout(module *ir.Module, ep ir.EntryPoint) (wgpu.VertexBufferLayout, error) {
	var attrs []wgpu.VertexAttribute
	var offset uint64

	add := func(name string, binding *ir.Binding, ty ir.TypeHandle) error {
		if binding == nil {
			return nil
		}
		loc, ok := (*binding).(ir.LocationBinding)
		if !ok {
			return nil
		}
		format, size, ok := vertexFormat(module, ty)
		if !ok {
			return fmt.Errorf("vertex input %s has no vertex format", name)
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         format,
			Offset:         offset,
			ShaderLocation: loc.Location,
		})
		offset += size
		return nil
	}

	for _, arg := range ep.Function.Arguments {
		if st, ok := typeInner(module, arg.Type).(ir.StructType); ok && arg.Binding == nil {
			for _, m := range st.Members {
				if err := add(m.Name, m.Binding, m.Type); err != nil {
					return wgpu.VertexBufferLayout{}, err
				}
			}
			continue
		}
		if err := add(arg.Name, arg.Binding, arg.Type); err != nil {
			return wgpu.VertexBufferLayout{}, err
		}
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

func vertexFormat(module *ir.Module, h ir.TypeHandle) (wgpu.VertexFormat, uint64, bool) {
	switch t := typeInner(module, h).(type) {
	case ir.ScalarType:
		if t.Width != 4 {
			return 0, 0, false
		}
		switch t.Kind {
		case ir.ScalarFloat:
			return wgpu.VertexFormatFloat32, 4, true
		case ir.ScalarSint:
			return wgpu.VertexFormatSint32, 4, true
		case ir.ScalarUint:
			return wgpu.VertexFormatUint32, 4, true
		}
	case ir.VectorType:
		if t.Scalar.Kind == ir.ScalarFloat && t.Scalar.Width == 2 {
			switch t.Size {
			case ir.Vec2:
				return wgpu.VertexFormatFloat16x2, 4, true
			case ir.Vec4:
				return wgpu.VertexFormatFloat16x4, 8, true
			}
			return 0, 0, false
		}
		if t.Scalar.Width != 4 {
			return 0, 0, false
		}
		formats := map[ir.ScalarKind][3]wgpu.VertexFormat{
			ir.ScalarFloat: {wgpu.VertexFormatFloat32x2, wgpu.VertexFormatFloat32x3, wgpu.VertexFormatFloat32x4},
			ir.ScalarSint:  {wgpu.VertexFormatSint32x2, wgpu.VertexFormatSint32x3, wgpu.VertexFormatSint32x4},
			ir.ScalarUint:  {wgpu.VertexFormatUint32x2, wgpu.VertexFormatUint32x3, wgpu.VertexFormatUint32x4},
		}
		row, ok := formats[t.Scalar.Kind]
		if !ok || t.Size < ir.Vec2 || t.Size > ir.Vec4 {
			return 0, 0, false
		}
		return row[t.Size-ir.Vec2], uint64(t.Size) * 4, true
	}
	return 0, 0, false
}

// memoryLayout is the host-shareable size and alignment of a WGSL type.
type memoryLayout struct {
	size          uint64
	align         uint64
	runtimeStride uint64
}

// typeLayout resolves the memory layout of a type per the WGSL alignment and size rules.
// A runtime-sized array contributes one element to size and reports its stride.
func typeLayout(module *ir.Module, h ir.TypeHandle) (memoryLayout, bool) {
	switch t := typeInner(module, h).(type) {
	case ir.ScalarType:
		return memoryLayout{size: uint64(t.Width), align: uint64(t.Width)}, true
	case ir.AtomicType:
		return memoryLayout{size: uint64(t.Scalar.Width), align: uint64(t.Scalar.Width)}, true
	case ir.VectorType:
		w := uint64(t.Scalar.Width)
		n := uint64(t.Size)
		align := w * n
		if t.Size == ir.Vec3 {
			align = 4 * w
		}
		return memoryLayout{size: w * n, align: align}, true
	case ir.MatrixType:
		w := uint64(t.Scalar.Width)
		colAlign := w * uint64(t.Rows)
		if t.Rows == ir.Vec3 {
			colAlign = 4 * w
		}
		return memoryLayout{size: colAlign * uint64(t.Columns), align: colAlign}, true
	case ir.ArrayType:
		elem, ok := typeLayout(module, t.Base)
		if !ok {
			return memoryLayout{}, false
		}
		stride := uint64(t.Stride)
		if stride == 0 {
			stride = roundUp(elem.align, elem.size)
		}
		if t.Size.Constant == nil {
			return memoryLayout{size: stride, align: elem.align, runtimeStride: stride}, true
		}
		return memoryLayout{size: stride * uint64(*t.Size.Constant), align: elem.align}, true
	case ir.StructType:
		var align uint64 = 1
		var runtimeStride uint64
		for _, m := range t.Members {
			ml, ok := typeLayout(module, m.Type)
			if !ok {
				return memoryLayout{}, false
			}
			align = max(align, ml.align)
			runtimeStride = ml.runtimeStride
		}
		size := uint64(t.Span)
		if size == 0 {
			return memoryLayout{}, false
		}
		return memoryLayout{size: size, align: align, runtimeStride: runtimeStride}, true
	}
	return memoryLayout{}, false
}

func typeInner(module *ir.Module, h ir.TypeHandle) ir.TypeInner {
	if int(h) >= len(module.Types) {
		return nil
	}
	return module.Types[h].Inner
}

func roundUp(align, v uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}
