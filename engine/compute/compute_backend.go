package compute

// Backend is a compute API able to enumerate devices and bind contexts to a graphics context.
// The available implementations are returned by NewWGPUBackend and NewSoftwareBackend.
type Backend interface {
	// Type returns the API this backend drives.
	//
	// Returns:
	//   - BackendType: the backend type
	Type() BackendType

	// Devices lists the devices of the backend's default platform in preference order.
	//
	// Returns:
	//   - []Device: the devices, empty if none are available
	Devices() []Device

	bind(dev Device, gfx GraphicsContext) (contextBackend, error)
}

// contextBackend is the per-context half of a Backend. Every call happens on the thread that
// owns the bound graphics context.
type contextBackend interface {
	// importBuffer validates that gb can be shared and returns the backend's view of its storage.
	importBuffer(gb GraphicsBuffer) (any, error)

	// compileProgram builds backend state for a program that already passed front-end validation.
	compileProgram(p *program) (any, error)

	// makeKernel builds the runnable form of one compute entry point.
	makeKernel(k *kernel) (any, error)

	// dispatch runs or submits k over global work-items grouped into groups workgroups.
	dispatch(k *kernel, global [2]uint32, groups [2]uint32) error

	// finish blocks until every submitted dispatch has completed.
	finish() error
}
