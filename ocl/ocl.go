// Package ocl manages compute platforms, devices, contexts and command queues on top of a clapi.Backend,
// with two-way interop by native handle: any object can be built from an integer handle obtained elsewhere
// (e.g. another binding in the same process) and exposes its own handle with Handle().
//
// Objects created from a foreign handle are adopted: they never release it. Only contexts and queues allocated
// by this package are owned, and they are released exactly once, by Destroy (or by a cleanup, once unreachable).
//
// The selection of the current context, and within it the current device and queue, is held by a Registry,
// which is passed explicitly to the operations that use it.
//
// Example:
//
//	reg, err := ocl.NewDefaultRegistry()
//	if err != nil { ... }
//	defer reg.Close()
//	ctx, err := reg.CurrentContext()
//	if err != nil { ... }
//	queue, err := ctx.CurrentQueue()
//	if err != nil { ... }
//	fmt.Printf("Running on %s\n", queue.Device())
//
// Errors are of type *Error, and can be tested by kind with errors.Is(err, ocl.DeviceNotCompatible).
package ocl

// ToError converts an error returned by a clapi.Backend to an *Error, classifying it by its native status
// (e.g. CL_OUT_OF_RESOURCES is ResourceExhausted). It returns nil if err is nil.
func ToError(op string, err error) error {
	return toError(op, err)
}
