package compute

import "errors"

var (
	// ErrNoDevice is returned when the backend exposes no usable compute device.
	ErrNoDevice = errors.New("no compute device available")

	// ErrUnsupportedSharing is returned when a device cannot share buffers with the graphics context.
	ErrUnsupportedSharing = errors.New("device does not support sharing buffers with the graphics context")

	// ErrNoCurrentContext is returned when binding without a current graphics context.
	ErrNoCurrentContext = errors.New("no current graphics context")

	// ErrAlreadyBound is returned when a ContextBinder is asked to bind a second context.
	ErrAlreadyBound = errors.New("compute context already bound")

	// ErrAlreadyAcquired is returned when acquiring a buffer that compute already owns.
	ErrAlreadyAcquired = errors.New("shared buffer already acquired for compute")

	// ErrNotAcquired is returned when releasing, or dispatching against, a buffer compute does not own.
	ErrNotAcquired = errors.New("shared buffer not acquired for compute")

	// ErrContextMismatch is returned when objects from different compute contexts are mixed.
	ErrContextMismatch = errors.New("object belongs to a different compute context")

	// ErrBufferSize is returned when a graphics buffer does not match the requested vertex count.
	ErrBufferSize = errors.New("graphics buffer size does not match vertex count")

	// ErrKernelNotFound is returned when a program has no runnable compute entry point of the requested name.
	ErrKernelNotFound = errors.New("kernel not found")

	// ErrInvalidArgs is returned when kernel arguments do not match the kernel's bindings.
	ErrInvalidArgs = errors.New("invalid kernel arguments")

	// ErrWorkgroupMismatch is returned when a dispatch's local size differs from the kernel's workgroup size.
	ErrWorkgroupMismatch = errors.New("local size does not match kernel workgroup size")

	// ErrDispatchTooLarge is returned when a dispatch exceeds the device's workgroup limits.
	ErrDispatchTooLarge = errors.New("dispatch exceeds device limits")
)

// BuildError reports a kernel program that failed to compile. Log carries the compiler diagnostics.
type BuildError struct {
	Log string
}

func (e *BuildError) Error() string {
	return "kernel build failed:\n" + e.Log
}
