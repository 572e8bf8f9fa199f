package common

import (
	"encoding/binary"
	"math"
)

// Vec4Stride is the byte size of one vec4<f32> element in a GPU buffer.
const Vec4Stride = 16

// PutVec4 writes v as four little-endian float32 values at element index i of buf.
// It reports false, writing nothing, when the element does not fit in buf.
//
// Parameters:
//   - buf: destination byte buffer laid out as array<vec4<f32>>
//   - i: element index
//   - v: the value to store
//
// Returns:
//   - bool: true if the element was written
func PutVec4(buf []byte, i int, v [4]float32) bool {
	off := i * Vec4Stride
	if i < 0 || off+Vec4Stride > len(buf) {
		return false
	}
	for c := range 4 {
		binary.LittleEndian.PutUint32(buf[off+c*4:], math.Float32bits(v[c]))
	}
	return true
}

// Vec4At reads element i of a buffer laid out as array<vec4<f32>>.
//
// Parameters:
//   - buf: source byte buffer
//   - i: element index
//
// Returns:
//   - [4]float32: the element, zero when it lies outside buf
func Vec4At(buf []byte, i int) [4]float32 {
	off := i * Vec4Stride
	var v [4]float32
	if i < 0 || off+Vec4Stride > len(buf) {
		return v
	}
	for c := range 4 {
		v[c] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+c*4:]))
	}
	return v
}

// Float32sToBytes encodes values as consecutive little-endian float32 values.
//
// Parameters:
//   - values: the values to encode
//
// Returns:
//   - []byte: the encoded bytes, 4 per value
func Float32sToBytes(values ...float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
