package compute

import (
	"go.uber.org/zap"
)

// Device is a compute device exposed by a Backend.
type Device interface {
	// Name returns the human-readable device name.
	//
	// Returns:
	//   - string: the device name
	Name() string

	// Backend returns the type of backend that owns this device.
	//
	// Returns:
	//   - BackendType: the owning backend type
	Backend() BackendType

	// Capabilities returns the interop-relevant properties of the device.
	//
	// Returns:
	//   - Capabilities: the device capabilities
	Capabilities() Capabilities

	// Native returns the API handle of the device, nil for software devices.
	//
	// Returns:
	//   - any: the native handle
	Native() any
}

type device struct {
	name         string
	backendType  BackendType
	capabilities Capabilities
	native       any
}

var _ Device = &device{}

// NewDevice describes a device. Backends use it to populate Devices; tests use it to build
// devices with specific capabilities.
//
// Parameters:
//   - name: the device name
//   - backendType: the owning backend type
//   - capabilities: the device capabilities
//   - native: the API handle, may be nil
//
// Returns:
//   - Device: the device description
func NewDevice(name string, backendType BackendType, capabilities Capabilities, native any) Device {
	return &device{
		name:         name,
		backendType:  backendType,
		capabilities: capabilities,
		native:       native,
	}
}

func (d *device) Name() string {
	return d.name
}

func (d *device) Backend() BackendType {
	return d.backendType
}

func (d *device) Capabilities() Capabilities {
	return d.capabilities
}

func (d *device) Native() any {
	return d.native
}

// DeviceSelector chooses the compute device that will share memory with the renderer.
type DeviceSelector interface {
	// Backend returns the backend devices are selected from.
	//
	// Returns:
	//   - Backend: the backend
	Backend() Backend

	// SelectDefaultDevice returns the first device of the backend's default platform that passes
	// the selector's filter, and logs its name.
	//
	// Returns:
	//   - Device: the selected device
	//   - error: ErrNoDevice if no device qualifies
	SelectDefaultDevice() (Device, error)

	// SupportsSharing reports whether the device advertises graphics buffer sharing.
	//
	// Parameters:
	//   - dev: the device to inspect
	//
	// Returns:
	//   - bool: true if the device can share buffers with the graphics context
	SupportsSharing(dev Device) bool
}

type deviceSelector struct {
	backend Backend
	filter  func(Device) bool
	logger  *zap.Logger
}

var _ DeviceSelector = &deviceSelector{}

// NewDeviceSelector creates a selector over the devices of backend.
//
// Parameters:
//   - backend: the backend to enumerate
//   - options: a variadic list of DeviceSelectorOption functions
//
// Returns:
//   - DeviceSelector: the selector
func NewDeviceSelector(backend Backend, options ...DeviceSelectorOption) DeviceSelector {
	s := &deviceSelector{
		backend: backend,
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *deviceSelector) Backend() Backend {
	return s.backend
}

func (s *deviceSelector) SelectDefaultDevice() (Device, error) {
	for _, d := range s.backend.Devices() {
		if s.filter != nil && !s.filter(d) {
			continue
		}
		s.logger.Info("selected compute device",
			zap.String("device", d.Name()),
			zap.Stringer("backend", d.Backend()),
			zap.Bool("sharing", d.Capabilities().Sharing),
		)
		return d, nil
	}
	return nil, ErrNoDevice
}

func (s *deviceSelector) SupportsSharing(dev Device) bool {
	return dev != nil && dev.Capabilities().Sharing
}
