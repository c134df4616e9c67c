package ocl

import (
	"fmt"

	"github.com/gomlx/govcl/clapi"
	"github.com/pkg/errors"
)

// ErrorKind classifies the errors returned by this package.
//
// ErrorKind implements error, so one can test for a kind with errors.Is(err, ocl.InvalidHandle).
type ErrorKind int

//go:generate go tool enumer -type ErrorKind -output errorkind_enumer.go error.go

const (
	// BackendFailure is a native failure that doesn't fall in any of the other kinds.
	BackendFailure ErrorKind = iota

	// BackendUnavailable means there is no compute backend or driver present.
	BackendUnavailable

	// InvalidHandle means an integer handle (or index) doesn't resolve to a live native object.
	InvalidHandle

	// AlreadyInitialized is returned when re-initializing or reconfiguring an object that already owns a native resource.
	AlreadyInitialized

	// DeviceNotCompatible means a platform/device/context mismatch.
	DeviceNotCompatible

	// ResourceExhausted means the native backend failed to allocate.
	ResourceExhausted

	// NotInitialized is returned by operations that need a native context that wasn't created yet.
	NotInitialized
)

// Error implements error.
func (k ErrorKind) Error() string {
	return k.String()
}

// Error is the error returned by the operations of this package.
type Error struct {
	Kind ErrorKind

	// Op is the name of the operation that failed, e.g. "Context.InitNew".
	Op string

	// Status is the native status, if the failure came from the backend, or clapi.Success otherwise.
	Status clapi.Status

	// Err is the underlying error, if any.
	Err error

	msg string
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the ErrorKind of e.
func (e *Error) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}

// KindOf returns the ErrorKind of err, and whether err was an *Error at all.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return BackendFailure, false
}

// NewError creates an *Error of the given kind for the operation op, with a stack trace.
// It is meant for packages layered on top of ocl that report failures in its terms.
func NewError(kind ErrorKind, op string, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, msg: fmt.Sprintf(format, args...)})
}

func newError(kind ErrorKind, op string, format string, args ...any) error {
	return NewError(kind, op, format, args...)
}

// kindOfStatus maps native status codes to error kinds.
func kindOfStatus(status clapi.Status) ErrorKind {
	switch status {
	case clapi.PlatformNotFoundKHR:
		return BackendUnavailable
	case clapi.InvalidPlatform, clapi.InvalidDevice, clapi.InvalidContext, clapi.InvalidCommandQueue:
		return InvalidHandle
	case clapi.DeviceNotFound, clapi.DeviceNotAvailable, clapi.InvalidDeviceType:
		return DeviceNotCompatible
	case clapi.OutOfResources, clapi.OutOfHostMemory, clapi.MemObjectAllocationFailure:
		return ResourceExhausted
	}
	return BackendFailure
}

// toError converts an error returned by the backend to an *Error, classifying it by its native status.
// It returns nil if err is nil, and errors that already are an *Error are only annotated with op.
func toError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return errors.WithMessage(err, op)
	}
	var statusErr *clapi.StatusError
	if errors.As(err, &statusErr) {
		return errors.WithStack(&Error{Kind: kindOfStatus(statusErr.Status), Op: op, Status: statusErr.Status, Err: err})
	}
	return errors.WithStack(&Error{Kind: BackendFailure, Op: op, Err: err})
}

// toErrorAs is like toError, but forces the kind of the error. Used when the native status of a failure
// matters less than what was being attempted, e.g. validating an adopted handle.
func toErrorAs(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var status clapi.Status
	var statusErr *clapi.StatusError
	if errors.As(err, &statusErr) {
		status = statusErr.Status
		if kindOfStatus(status) == BackendUnavailable {
			kind = BackendUnavailable
		}
	}
	return errors.WithStack(&Error{Kind: kind, Op: op, Status: status, Err: err})
}
