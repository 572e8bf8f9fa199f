package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sphere/common"
	"github.com/Carmen-Shannon/oxy-sphere/engine/geometry"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVec3(t *testing.T, want [3]float32, x, y, z float32) {
	t.Helper()
	assert.InDelta(t, want[0], x, 1e-4)
	assert.InDelta(t, want[1], y, 1e-4)
	assert.InDelta(t, want[2], z, 1e-4)
}

func TestCameraWithoutController(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, common.Identity4(), c.ViewProjectionMatrix())
	c.FitBounds(geometry.Bounds{-1, 1, -1, 1, -1, 1})
	assert.Equal(t, common.Identity4(), c.ViewMatrix())
	assert.Nil(t, c.Controller())
}

func TestControllerDefaults(t *testing.T) {
	cc := NewCameraController()
	x, y, z := cc.Position()
	assertVec3(t, [3]float32{0, 0, 10}, x, y, z)
	x, y, z = cc.Up()
	assertVec3(t, [3]float32{0, 1, 0}, x, y, z)
}

func TestControllerElevationBelow(t *testing.T) {
	cc := NewCameraController(WithElevationDegrees(-90), WithRadius(4))
	x, y, z := cc.Position()
	assertVec3(t, [3]float32{0, -4, 0}, x, y, z)

	// looking straight up, the view up is +Z
	x, y, z = cc.Up()
	assertVec3(t, [3]float32{0, 0, 1}, x, y, z)

	c := NewCamera(WithController(cc))
	for _, v := range c.ViewMatrix() {
		assert.False(t, math32.IsNaN(v))
	}
}

func TestControllerClamps(t *testing.T) {
	cc := NewCameraController(WithMouseSensitivity(0.1))
	cc.Drag(0, 1000)
	assert.InDelta(t, math32.Pi/2, cc.Elevation(), 1e-6)
	cc.Drag(0, -2000)
	assert.InDelta(t, -math32.Pi/2, cc.Elevation(), 1e-6)

	cc.Drag(10, 0)
	assert.InDelta(t, -1, cc.Azimuth(), 1e-6)

	cc.SetRadiusBounds(1, 2)
	assert.Equal(t, float32(2), cc.Radius())
	cc.SetRadius(0.5)
	assert.Equal(t, float32(1), cc.Radius())

	cc.SetRadiusBounds(1, 100)
	cc.SetRadius(10)
	cc.Zoom(1)
	assert.InDelta(t, 9, cc.Radius(), 1e-5)
}

func TestControllerPan(t *testing.T) {
	cc := NewCameraController(WithRadius(5))
	cc.PanRight(2)
	tx, ty, tz := cc.Target()
	assertVec3(t, [3]float32{2, 0, 0}, tx, ty, tz)
	x, y, z := cc.Position()
	assertVec3(t, [3]float32{2, 0, 5}, x, y, z)

	cc.PanUp(1)
	tx, ty, tz = cc.Target()
	assertVec3(t, [3]float32{2, 1, 0}, tx, ty, tz)
}

func TestFitBounds(t *testing.T) {
	cc := NewCameraController(WithElevationDegrees(-90))
	c := NewCamera(WithController(cc), WithAspect(800.0/600.0))

	bounds := geometry.Bounds{-5, 5, -5, 5, -5, 5}
	c.FitBounds(bounds)

	radius := 0.5 * math32.Sqrt(300)
	assert.InDelta(t, radius/math32.Sin(c.Fov()/2), cc.Radius(), 1e-3)
	assert.InDelta(t, -math32.Pi/2, cc.Elevation(), 1e-6)
	assert.Less(t, c.Near(), cc.Radius()-5)
	assert.Greater(t, c.Far(), cc.Radius()+5)

	viewProj := c.ViewProjectionMatrix()
	for _, p := range [][4]float32{
		{0, 0, 0, 1},
		{5, 0, 0, 1}, {-5, 0, 0, 1},
		{0, 5, 0, 1}, {0, -5, 0, 1},
		{0, 0, 5, 1}, {0, 0, -5, 1},
	} {
		clip := common.MulVec4(viewProj, p)
		require.Greater(t, clip[3], float32(0), "%v", p)
		ndc := [3]float32{clip[0] / clip[3], clip[1] / clip[3], clip[2] / clip[3]}
		assert.True(t, ndc[0] > -1 && ndc[0] < 1, "%v -> %v", p, ndc)
		assert.True(t, ndc[1] > -1 && ndc[1] < 1, "%v -> %v", p, ndc)
		assert.True(t, ndc[2] > 0 && ndc[2] < 1, "%v -> %v", p, ndc)
	}

	center := common.MulVec4(viewProj, [4]float32{0, 0, 0, 1})
	assert.InDelta(t, 0, center[0]/center[3], 1e-5)
	assert.InDelta(t, 0, center[1]/center[3], 1e-5)
}

func TestNearFarOptions(t *testing.T) {
	c := NewCamera(WithNear(0.5), WithFar(50))
	assert.Equal(t, float32(0.5), c.Near())
	assert.Equal(t, float32(50), c.Far())
}

func TestFrameUniform(t *testing.T) {
	c := NewCamera(WithController(NewCameraController()))
	data := c.FrameUniform([4]float32{0.25, 0.5, 0.75, 1})
	require.Len(t, data, 80)
	assert.Equal(t, 80, (&GPUFrameUniform{}).Size())

	vp := c.ViewProjectionMatrix()
	assert.Equal(t, common.Float32sToBytes(vp[:]...), data[:64])
	assert.Equal(t, common.Float32sToBytes(0.25, 0.5, 0.75, 1), data[64:])
}
