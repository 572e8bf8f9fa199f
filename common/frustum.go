package common

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the signed distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustum extracts frustum planes from a view-projection matrix that maps depth to [0, 1].
// Uses the Gribb/Hartmann method for plane extraction.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the combined projection * view matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustum(viewProj Mat4) Frustum {
	// row i of the column-major matrix is {m[i], m[4+i], m[8+i], m[12+i]}
	row := func(i int) [4]float32 {
		return [4]float32{viewProj[i], viewProj[4+i], viewProj[8+i], viewProj[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	combos := [6][4]float32{}
	for k := range 4 {
		combos[FrustumLeft][k] = r3[k] + r0[k]
		combos[FrustumRight][k] = r3[k] - r0[k]
		combos[FrustumBottom][k] = r3[k] + r1[k]
		combos[FrustumTop][k] = r3[k] - r1[k]
		// WebGPU clip depth starts at 0, so the near plane is row2 alone
		combos[FrustumNear][k] = r2[k]
		combos[FrustumFar][k] = r3[k] - r2[k]
	}

	var f Frustum
	for i, c := range combos {
		f.Planes[i] = Plane{Normal: [3]float32{c[0], c[1], c[2]}, Distance: c[3]}
		f.normalizePlane(i)
	}
	return f
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	if length := Length3(p.Normal); length > 0 {
		invLen := 1 / length
		p.Normal[0] *= invLen
		p.Normal[1] *= invLen
		p.Normal[2] *= invLen
		p.Distance *= invLen
	}
}

// IntersectsBox reports whether any part of the axis-aligned box lies inside the frustum.
// The test is conservative: boxes near a frustum corner may be reported as intersecting.
//
// Parameters:
//   - box: the box as [xmin, xmax, ymin, ymax, zmin, zmax]
//
// Returns:
//   - bool: false only if the box is entirely outside one plane
func (f Frustum) IntersectsBox(box [6]float32) bool {
	for _, p := range f.Planes {
		// the box corner furthest along the plane normal
		var corner [3]float32
		for axis := range 3 {
			if p.Normal[axis] >= 0 {
				corner[axis] = box[2*axis+1]
			} else {
				corner[axis] = box[2*axis]
			}
		}
		if dot3(p.Normal, corner)+p.Distance < 0 {
			return false
		}
	}
	return true
}
