package ocl

import (
	"fmt"

	"github.com/gomlx/govcl/clapi"
)

// Queue is an in-order command submission channel, bound to one Context and one Device.
//
// Queues are created by Context.InitNew and Context.AddNewQueue (owned), registered with
// Context.AddExistingQueue (not owned), or aliased with AdoptQueue (not owned, not registered).
type Queue struct {
	ctx    *Context
	device *Device
	ref    *nativeRef
}

// AdoptQueue returns a non-owning alias to a queue handle of the (initialized) context ctx: it doesn't allocate
// anything, it isn't registered with the context, and it never releases the native queue.
//
// It is the explicit way to have more than one Queue referring to the same native handle.
func AdoptQueue(ctx *Context, handle clapi.Handle) (*Queue, error) {
	const op = "AdoptQueue"
	if !ctx.IsInitialized() {
		return nil, newError(NotInitialized, op, "%s is not initialized", ctx)
	}
	if !handle.IsValid() {
		return nil, newError(InvalidHandle, op, "invalid queue handle %s", handle)
	}
	qContext, qDevice, err := ctx.reg.backend.QueueInfo(handle)
	if err != nil {
		return nil, toErrorAs(InvalidHandle, op, err)
	}
	if qContext != ctx.Handle() {
		return nil, newError(DeviceNotCompatible, op, "queue %s is bound to context %s, not to %s", handle, qContext, ctx)
	}
	var device *Device
	if idx := ctx.deviceIndex(qDevice); idx != -1 {
		device = ctx.devices[idx]
	} else if device, err = newDevice(ctx.reg, qDevice); err != nil {
		return nil, toErrorAs(InvalidHandle, op, err)
	}
	return &Queue{ctx: ctx, device: device, ref: &nativeRef{handle: handle, ownership: Adopted}}, nil
}

// Handle returns the native identity of the queue.
func (q *Queue) Handle() clapi.Handle {
	return q.ref.handle
}

// Context returns the context the queue is bound to.
func (q *Queue) Context() *Context {
	return q.ctx
}

// Device returns the device the queue submits to.
func (q *Queue) Device() *Device {
	return q.device
}

// IsOwned returns whether the native queue was allocated by this package.
func (q *Queue) IsOwned() bool {
	return q.ref.ownership == Owned
}

// String implements fmt.Stringer.
func (q *Queue) String() string {
	return fmt.Sprintf("Queue(%s, %s, %s)", q.ref.handle, q.ref.ownership, q.device.Name())
}

// Finish blocks until all the commands submitted to the queue have completed.
func (q *Queue) Finish() error {
	const op = "Queue.Finish"
	if q.ref.released {
		return newError(InvalidHandle, op, "%s was destroyed", q)
	}
	return toError(op, q.ctx.reg.backend.Finish(q.Handle()))
}

// Destroy unregisters the queue from its context and, if it is owned, releases the native queue.
// It is idempotent.
func (q *Queue) Destroy() error {
	q.ctx.removeQueue(q)
	return toError("Queue.Destroy", q.ref.release(q.ctx.reg.backend.ReleaseQueue))
}
