package compute

import (
	"go.uber.org/zap"
)

// DeviceSelectorOption is a functional option used to configure a DeviceSelector.
type DeviceSelectorOption func(*deviceSelector)

// WithDeviceFilter restricts selection to devices for which filter returns true.
//
// Parameters:
//   - filter: the predicate a device must satisfy
//
// Returns:
//   - DeviceSelectorOption: a function that sets the filter
func WithDeviceFilter(filter func(Device) bool) DeviceSelectorOption {
	return func(s *deviceSelector) {
		s.filter = filter
	}
}

// WithSelectorLogger sets the logger the selector reports the chosen device to.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - DeviceSelectorOption: a function that sets the logger
func WithSelectorLogger(logger *zap.Logger) DeviceSelectorOption {
	return func(s *deviceSelector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ContextBinderOption is a functional option used to configure a ContextBinder.
type ContextBinderOption func(*contextBinder)

// WithBinderLogger sets the logger used by the binder and inherited by the contexts it binds.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - ContextBinderOption: a function that sets the logger
func WithBinderLogger(logger *zap.Logger) ContextBinderOption {
	return func(b *contextBinder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithCommandHistory sets how many recent commands a CommandQueue retains for inspection.
//
// Parameters:
//   - n: the number of commands to retain, at least 1
//
// Returns:
//   - ContextBinderOption: a function that sets the history length
func WithCommandHistory(n int) ContextBinderOption {
	return func(b *contextBinder) {
		if n > 0 {
			b.historyLimit = n
		}
	}
}

// SoftwareBackendOption is a functional option used to configure the software backend.
type SoftwareBackendOption func(*softwareBackend)

// WithWorkers sets the maximum number of goroutines executing work-items of one dispatch.
//
// Parameters:
//   - n: the worker count, at least 1
//
// Returns:
//   - SoftwareBackendOption: a function that sets the worker count
func WithWorkers(n int) SoftwareBackendOption {
	return func(b *softwareBackend) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithSharing sets whether the software device advertises buffer sharing.
//
// Parameters:
//   - sharing: the advertised capability
//
// Returns:
//   - SoftwareBackendOption: a function that sets the capability
func WithSharing(sharing bool) SoftwareBackendOption {
	return func(b *softwareBackend) {
		b.sharing = sharing
	}
}

// WithDeviceName sets the name reported by the software device.
//
// Parameters:
//   - name: the device name
//
// Returns:
//   - SoftwareBackendOption: a function that sets the name
func WithDeviceName(name string) SoftwareBackendOption {
	return func(b *softwareBackend) {
		b.name = name
	}
}

// WithNoDevices makes the software backend expose an empty platform.
//
// Returns:
//   - SoftwareBackendOption: a function that removes the device
func WithNoDevices() SoftwareBackendOption {
	return func(b *softwareBackend) {
		b.empty = true
	}
}

// WithHostKernel registers a host implementation visible only to this backend, taking
// precedence over kernels registered with RegisterHostKernel.
//
// Parameters:
//   - name: the compute entry point name the function implements
//   - fn: the host implementation
//
// Returns:
//   - SoftwareBackendOption: a function that registers the kernel
func WithHostKernel(name string, fn HostKernelFunc) SoftwareBackendOption {
	return func(b *softwareBackend) {
		b.kernels[name] = fn
	}
}
