package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestMul4Identity(t *testing.T) {
	m := Mat4{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	assert.Equal(t, m, Mul4(Identity4(), m))
	assert.Equal(t, m, Mul4(m, Identity4()))
}

func TestInvert4(t *testing.T) {
	view := LookAt([3]float32{3, 4, 5}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})
	inv, ok := Invert4(view)
	assert.True(t, ok)

	product := Mul4(view, inv)
	identity := Identity4()
	for i := range product {
		assert.InDelta(t, identity[i], product[i], 1e-5)
	}

	_, ok = Invert4(Mat4{})
	assert.False(t, ok)
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := [3]float32{0, 0, 10}
	view := LookAt(eye, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})

	p := MulVec4(view, [4]float32{eye[0], eye[1], eye[2], 1})
	assert.InDelta(t, 0, p[0], 1e-5)
	assert.InDelta(t, 0, p[1], 1e-5)
	assert.InDelta(t, 0, p[2], 1e-5)

	target := MulVec4(view, [4]float32{0, 0, 0, 1})
	assert.InDelta(t, -10, target[2], 1e-5)
}

func TestPerspectiveDepthRange(t *testing.T) {
	proj := Perspective(math32.Pi/4, 1, 1, 100)

	near := MulVec4(proj, [4]float32{0, 0, -1, 1})
	far := MulVec4(proj, [4]float32{0, 0, -100, 1})
	assert.InDelta(t, 0, near[2]/near[3], 1e-5)
	assert.InDelta(t, 1, far[2]/far[3], 1e-4)
}

func TestVec4RoundTrip(t *testing.T) {
	buf := make([]byte, 2*Vec4Stride)
	assert.True(t, PutVec4(buf, 1, [4]float32{1.5, -2, 3.25, 1}))
	assert.Equal(t, [4]float32{1.5, -2, 3.25, 1}, Vec4At(buf, 1))
	assert.Equal(t, [4]float32{}, Vec4At(buf, 0))

	assert.False(t, PutVec4(buf, 2, [4]float32{1, 1, 1, 1}))
	assert.False(t, PutVec4(buf, -1, [4]float32{1, 1, 1, 1}))
}
