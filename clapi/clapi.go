// Package clapi defines the vocabulary shared by the native compute backends: opaque handles,
// status codes, device/platform descriptions and the Backend interface a backend must implement.
//
// Two backends are provided in sub-packages: clapi/opencl (the real OpenCL ICD loader, loaded
// with dlopen) and clapi/sim (a simulated catalog, used for tests and machines without drivers).
//
// Nothing here owns native resources: the ocl package decides who allocates and who releases.
package clapi

import "fmt"

// Handle is the opaque native identity of a platform, device, context or command queue.
// It is pointer-width and can be exchanged by value with other bindings in the same process.
//
// The zero Handle is never valid.
type Handle uintptr

// String implements fmt.Stringer.
func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uintptr(h))
}

// IsValid returns whether h is non-zero. It says nothing about whether the object is still alive.
func (h Handle) IsValid() bool {
	return h != 0
}

// DeviceType is the OpenCL device type bit field.
type DeviceType uint64

//go:generate go tool enumer -type DeviceType -trimprefix DeviceType -output devicetype_enumer.go clapi.go

const (
	DeviceTypeDefault     DeviceType = 1 << 0
	DeviceTypeCPU         DeviceType = 1 << 1
	DeviceTypeGPU         DeviceType = 1 << 2
	DeviceTypeAccelerator DeviceType = 1 << 3
	DeviceTypeCustom      DeviceType = 1 << 4
	DeviceTypeAll         DeviceType = 0xFFFFFFFF
)

// Matches returns whether a device reporting type t should be listed when querying for `query`.
// DeviceTypeDefault is not handled here: which device is the default is backend specific.
func (t DeviceType) Matches(query DeviceType) bool {
	if query == DeviceTypeAll {
		return true
	}
	return t&query != 0
}

// PlatformInfo holds the string attributes of a platform.
type PlatformInfo struct {
	Name, Vendor, Version, Profile, Extensions string
}

// DeviceInfo holds the attributes of a device, as reported by the backend.
type DeviceInfo struct {
	Name, Vendor, Version, DriverVersion, Profile string

	// Extensions is the space separated list of extensions, as reported by the driver.
	Extensions string

	Type     DeviceType
	Platform Handle

	MaxComputeUnits   uint32
	MaxClockFrequency uint32 // In MHz.
	MaxWorkGroupSize  uint64
	GlobalMemSize     uint64
	LocalMemSize      uint64
	MaxMemAllocSize   uint64
	Available         bool
}

// Backend is the native compute API the ocl package delegates to.
//
// All methods are synchronous. Implementations are not required to be safe for concurrent use.
type Backend interface {
	// Name returns the short name of the backend, e.g. "opencl" or "sim".
	Name() string

	// Description is a longer human-readable description.
	Description() string

	// PlatformIDs lists the platforms. It returns a StatusError with PlatformNotFoundKHR if there are none.
	PlatformIDs() ([]Handle, error)

	// PlatformInfo returns the attributes of the platform.
	PlatformInfo(platform Handle) (PlatformInfo, error)

	// DeviceIDs lists the devices of the platform matching the type. No devices is not an error.
	DeviceIDs(platform Handle, deviceType DeviceType) ([]Handle, error)

	// DeviceInfo returns the attributes of the device.
	DeviceInfo(device Handle) (DeviceInfo, error)

	// CreateContext allocates a new context on the platform for the given devices.
	// The caller owns the returned handle.
	CreateContext(platform Handle, devices []Handle) (Handle, error)

	// ContextDevices returns the devices associated with the context.
	ContextDevices(context Handle) ([]Handle, error)

	// ReleaseContext releases a context created with CreateContext.
	ReleaseContext(context Handle) error

	// CreateQueue allocates an in-order command queue for the device in the context.
	// The caller owns the returned handle.
	CreateQueue(context, device Handle) (Handle, error)

	// QueueInfo returns the context and device a queue is bound to.
	QueueInfo(queue Handle) (context, device Handle, err error)

	// Finish blocks until all commands submitted to the queue have completed.
	Finish(queue Handle) error

	// ReleaseQueue releases a queue created with CreateQueue.
	ReleaseQueue(queue Handle) error

	// Close releases the backend itself (e.g. unloads the library). Handles become invalid.
	Close() error
}
