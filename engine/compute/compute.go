// Package compute runs data-parallel kernels on memory shared with the graphics subsystem.
//
// A DeviceSelector picks a device from a Backend, a ContextBinder ties a ComputeContext and its
// in-order CommandQueue to the active GraphicsContext, and a SharedBuffer wraps a graphics-owned
// vertex buffer so kernels can write it without a host round-trip. Ownership of a SharedBuffer
// alternates strictly between graphics and compute through Acquire and Release.
package compute

import "fmt"

// BackendType identifies the compute API behind a Backend.
type BackendType int

const (
	// BackendTypeWGPU runs kernels as WebGPU compute pipelines on the renderer's device.
	BackendTypeWGPU BackendType = iota

	// BackendTypeSoftware runs kernels as Go host functions over host-memory graphics buffers.
	BackendTypeSoftware
)

func (t BackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return fmt.Sprintf("BackendType(%d)", int(t))
	}
}

// Capabilities are the properties of a Device relevant to interop.
type Capabilities struct {
	// Sharing reports whether the device can operate on graphics-owned buffers without a host copy.
	Sharing bool
	// MaxWorkgroupsPerDimension bounds the workgroup count of a single dispatch per dimension. Zero means unbounded.
	MaxWorkgroupsPerDimension uint32
	// MaxStorageBufferBindingSize bounds the byte size of a buffer bound to a kernel. Zero means unbounded.
	MaxStorageBufferBindingSize uint64
}

// GraphicsContext is the active rendering context a ComputeContext shares memory with.
// It is implemented by the renderer.
type GraphicsContext interface {
	// Backend reports which compute backend can share memory with this context.
	//
	// Returns:
	//   - BackendType: the compatible backend type
	Backend() BackendType

	// Current reports whether the context is ready to accept work from the calling thread.
	//
	// Returns:
	//   - bool: true once the context is current
	Current() bool

	// Native returns the API handle backing the context: *wgpu.Device for WGPU, nil for host memory.
	//
	// Returns:
	//   - any: the native handle
	Native() any
}

// GraphicsBuffer is a buffer allocated and owned by the graphics subsystem.
type GraphicsBuffer interface {
	// ID returns the graphics-side identity of the buffer, used by draw calls.
	//
	// Returns:
	//   - uint32: the buffer ID
	ID() uint32

	// Size returns the allocation size in bytes.
	//
	// Returns:
	//   - uint64: the size in bytes
	Size() uint64

	// Native returns the backing storage: *wgpu.Buffer for WGPU, []byte for host memory.
	//
	// Returns:
	//   - any: the native storage
	Native() any
}
