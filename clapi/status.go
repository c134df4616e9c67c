package clapi

import "fmt"

// Status is a native status code, as returned by every OpenCL entry point.
type Status int32

const (
	Success                    Status = 0
	DeviceNotFound             Status = -1
	DeviceNotAvailable         Status = -2
	CompilerNotAvailable       Status = -3
	MemObjectAllocationFailure Status = -4
	OutOfResources             Status = -5
	OutOfHostMemory            Status = -6
	InvalidValue               Status = -30
	InvalidDeviceType          Status = -31
	InvalidPlatform            Status = -32
	InvalidDevice              Status = -33
	InvalidContext             Status = -34
	InvalidQueueProperties     Status = -35
	InvalidCommandQueue        Status = -36
	InvalidOperation           Status = -59

	// PlatformNotFoundKHR is returned by the ICD loader when no vendor driver is installed.
	PlatformNotFoundKHR Status = -1001
)

var statusNames = map[Status]string{
	Success:                    "CL_SUCCESS",
	DeviceNotFound:             "CL_DEVICE_NOT_FOUND",
	DeviceNotAvailable:         "CL_DEVICE_NOT_AVAILABLE",
	CompilerNotAvailable:       "CL_COMPILER_NOT_AVAILABLE",
	MemObjectAllocationFailure: "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	OutOfResources:             "CL_OUT_OF_RESOURCES",
	OutOfHostMemory:            "CL_OUT_OF_HOST_MEMORY",
	InvalidValue:               "CL_INVALID_VALUE",
	InvalidDeviceType:          "CL_INVALID_DEVICE_TYPE",
	InvalidPlatform:            "CL_INVALID_PLATFORM",
	InvalidDevice:              "CL_INVALID_DEVICE",
	InvalidContext:             "CL_INVALID_CONTEXT",
	InvalidQueueProperties:     "CL_INVALID_QUEUE_PROPERTIES",
	InvalidCommandQueue:        "CL_INVALID_COMMAND_QUEUE",
	InvalidOperation:           "CL_INVALID_OPERATION",
	PlatformNotFoundKHR:        "CL_PLATFORM_NOT_FOUND_KHR",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if name, found := statusNames[s]; found {
		return name
	}
	return fmt.Sprintf("CL_UNKNOWN_ERROR(%d)", int32(s))
}

// StatusError is returned by backends when a native call returns a status other than Success.
type StatusError struct {
	// Func is the name of the native entry point that failed, e.g. "clCreateContext".
	Func   string
	Status Status
}

// NewStatusError returns a *StatusError, or nil if status is Success.
func NewStatusError(fn string, status Status) error {
	if status == Success {
		return nil
	}
	return &StatusError{Func: fn, Status: status}
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with %s (%d)", e.Func, e.Status, int32(e.Status))
}
