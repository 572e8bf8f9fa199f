package camera

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-sphere/common"
)

// GPUFrameUniform is the GPU-aligned representation of the points pipeline's Frame uniform.
// Size: 80 bytes (WGSL aligned).
type GPUFrameUniform struct {
	ViewProj common.Mat4 // offset  0: combined view-projection matrix (mat4x4<f32>)
	Color    [4]float32  // offset 64: point color (vec4<f32>)
}

// Size returns the size of the GPUFrameUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUFrameUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the uniform into a little-endian byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUFrameUniform) Marshal() []byte {
	values := make([]float32, 0, 20)
	values = append(values, g.ViewProj[:]...)
	values = append(values, g.Color[:]...)
	return common.Float32sToBytes(values...)
}
