package compute

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-sphere/common"
)

// WorkItem is the global ID of one work-item.
type WorkItem struct {
	X, Y, Z uint32
}

// HostKernelFunc is the Go implementation of a kernel run by the software backend. It is called
// once per work-item, concurrently across work-items.
type HostKernelFunc func(id WorkItem, args HostArgs)

// HostArgs exposes the arguments set on a kernel to its host implementation.
// Scalar indices count scalars only and buffer indices count buffers only.
type HostArgs struct {
	scalars []any
	buffers []Vec4View
}

// Float32 returns scalar i as a float32.
func (a HostArgs) Float32(i int) float32 {
	return a.scalars[i].(float32)
}

// Uint32 returns scalar i as a uint32.
func (a HostArgs) Uint32(i int) uint32 {
	return a.scalars[i].(uint32)
}

// Int32 returns scalar i as an int32.
func (a HostArgs) Int32(i int) int32 {
	return a.scalars[i].(int32)
}

// Buffer returns buffer i as an array of vec4<f32>.
func (a HostArgs) Buffer(i int) Vec4View {
	return a.buffers[i]
}

// vec4Stripes is the number of locks shared by the elements of one Vec4View.
const vec4Stripes = 64

// Vec4View is a bounds-checked array<vec4<f32>> over host memory. Work-items may store to the
// same element concurrently; each Store and Load covers a whole element, so a reader sees one
// writer's value and never a mix of two.
type Vec4View struct {
	data  []byte
	locks *[vec4Stripes]sync.Mutex
}

func newVec4View(data []byte) Vec4View {
	return Vec4View{data: data, locks: new([vec4Stripes]sync.Mutex)}
}

// Len returns the number of elements in the view.
func (v Vec4View) Len() int {
	return len(v.data) / common.Vec4Stride
}

// Store writes element i. Writes outside the view are dropped and reported as false.
func (v Vec4View) Store(i int, value [4]float32) bool {
	if i < 0 || i >= v.Len() {
		return false
	}
	mu := v.lock(i)
	mu.Lock()
	defer mu.Unlock()
	return common.PutVec4(v.data, i, value)
}

// Load reads element i, zero if i is outside the view.
func (v Vec4View) Load(i int) [4]float32 {
	if i < 0 || i >= v.Len() {
		return [4]float32{}
	}
	mu := v.lock(i)
	mu.Lock()
	defer mu.Unlock()
	return common.Vec4At(v.data, i)
}

func (v Vec4View) lock(i int) *sync.Mutex {
	return &v.locks[i%vec4Stripes]
}

var (
	hostKernelsMu sync.RWMutex
	hostKernels   = make(map[string]HostKernelFunc)
)

// RegisterHostKernel makes fn the software implementation of the compute entry point name.
// Packages providing kernels call it from init; a later registration replaces an earlier one.
//
// Parameters:
//   - name: the compute entry point name
//   - fn: the host implementation
func RegisterHostKernel(name string, fn HostKernelFunc) {
	hostKernelsMu.Lock()
	defer hostKernelsMu.Unlock()
	hostKernels[name] = fn
}

func lookupHostKernel(name string) (HostKernelFunc, bool) {
	hostKernelsMu.RLock()
	defer hostKernelsMu.RUnlock()
	fn, ok := hostKernels[name]
	return fn, ok
}
