package ocl

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/gomlx/govcl/clapi"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Context groups one or more devices of a platform, and owns the command queues created on them.
//
// A Context is either created by NewContext (uninitialized: configure it with SetPlatformIndex, SetDeviceType
// and AddDevice, and then call InitNew) or adopted from a native handle with Registry.ContextFromHandle.
// Only contexts created with InitNew own their native handle; adopted ones are never released by this package.
//
// Within a context one device is current, and for each device one queue is current.
//
// Context is not safe for concurrent use.
type Context struct {
	reg *Registry
	res *contextResources

	initialized   bool
	platformIndex int
	deviceType    clapi.DeviceType

	devices       []*Device
	currentDevice int

	queues       map[clapi.Handle][]*Queue
	currentQueue int
}

// contextResources holds the native handles a Context is responsible for.
// It doesn't refer back to the Context, so it can be released by a cleanup once the Context is unreachable.
type contextResources struct {
	backend clapi.Backend
	context nativeRef
	queues  []*nativeRef
}

// release releases the owned queues, then the owned context. It is idempotent.
func (r *contextResources) release() error {
	var firstErr error
	for _, q := range r.queues {
		if err := q.release(r.backend.ReleaseQueue); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.queues = nil
	if err := r.context.release(r.backend.ReleaseContext); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func cleanupContextResources(r *contextResources) {
	if err := r.release(); err != nil {
		klog.Errorf("Context %s: failed to release native resources: %v", r.context.handle, err)
	}
}

// addCleanup releases the resources of c once it becomes unreachable, if Destroy wasn't called.
func (c *Context) addCleanup() {
	runtime.AddCleanup(c, cleanupContextResources, c.res)
}

func newContext(reg *Registry) *Context {
	return &Context{
		reg:        reg,
		res:        &contextResources{backend: reg.backend},
		deviceType: clapi.DeviceTypeDefault,
		queues:     make(map[clapi.Handle][]*Queue),
	}
}

// Handle returns the native identity of the context, or 0 if it is not initialized.
func (c *Context) Handle() clapi.Handle {
	return c.res.context.handle
}

// IsInitialized returns whether the context is bound to a native context, created with InitNew or adopted.
func (c *Context) IsInitialized() bool {
	return c.initialized
}

// IsOwned returns whether the native context was allocated by InitNew, and will be released by Destroy.
func (c *Context) IsOwned() bool {
	return c.initialized && c.res.context.ownership == Owned
}

// Registry the context belongs to.
func (c *Context) Registry() *Registry {
	return c.reg
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	if !c.initialized {
		return fmt.Sprintf("Context(uninitialized, platform #%d)", c.platformIndex)
	}
	return fmt.Sprintf("Context(%s, %s, %d devices)", c.Handle(), c.res.context.ownership, len(c.devices))
}

// Equal returns whether c and other refer to the same native context. Uninitialized contexts are only
// equal to themselves.
func (c *Context) Equal(other *Context) bool {
	if c == other {
		return true
	}
	if c == nil || other == nil {
		return false
	}
	return c.Handle().IsValid() && c.Handle() == other.Handle()
}

// PlatformIndex returns the index, in Registry.Platforms, of the platform the context binds (or is bound) to.
func (c *Context) PlatformIndex() int {
	return c.platformIndex
}

// SetPlatformIndex selects the platform a not yet initialized context will bind to.
// It fails with AlreadyInitialized after InitNew, and with DeviceNotCompatible if devices of another platform
// were already added. On failure the platform index is unchanged.
func (c *Context) SetPlatformIndex(index int) error {
	const op = "Context.SetPlatformIndex"
	if c.initialized {
		return newError(AlreadyInitialized, op, "can't change the platform of %s", c)
	}
	if index < 0 {
		return newError(InvalidHandle, op, "invalid platform index %d", index)
	}
	if len(c.devices) > 0 {
		previous := c.platformIndex
		c.platformIndex = index
		platform, err := c.platform(op)
		c.platformIndex = previous
		if err != nil {
			return err
		}
		for _, d := range c.devices {
			if d.PlatformHandle() != platform.Handle() {
				return newError(DeviceNotCompatible, op, "%s was already added and doesn't belong to platform #%d (%s)",
					d, index, platform.Handle())
			}
		}
	}
	c.platformIndex = index
	return nil
}

// DeviceType returns the type of device InitNew selects when no device was added explicitly.
func (c *Context) DeviceType() clapi.DeviceType {
	return c.deviceType
}

// SetDeviceType sets the type of device InitNew selects when no device was added explicitly.
// The default is clapi.DeviceTypeDefault.
func (c *Context) SetDeviceType(deviceType clapi.DeviceType) error {
	if c.initialized {
		return newError(AlreadyInitialized, "Context.SetDeviceType", "can't change the device type of %s", c)
	}
	c.deviceType = deviceType
	return nil
}

// platformHandle returns the handle of the platform the context is (or will be) bound to.
func (c *Context) platformHandle(op string) (clapi.Handle, error) {
	if c.initialized && len(c.devices) > 0 {
		return c.devices[0].PlatformHandle(), nil
	}
	platform, err := c.platform(op)
	if err != nil {
		return 0, err
	}
	return platform.Handle(), nil
}

// platform returns the platform selected by the platform index.
func (c *Context) platform(op string) (*Platform, error) {
	platforms, err := c.reg.Platforms()
	if err != nil {
		return nil, errors.WithMessage(err, op)
	}
	if c.platformIndex >= len(platforms) {
		return nil, newError(InvalidHandle, op, "platform index %d out of range, there are %d platforms",
			c.platformIndex, len(platforms))
	}
	return platforms[c.platformIndex], nil
}

// InitNew allocates a fresh native context on the selected platform, with the devices added with AddDevice, or if
// none were added, with the first device of the configured device type. One queue is created for each device.
//
// It fails with AlreadyInitialized if the context is already bound to a native context. On failure nothing is
// allocated and the context is left unchanged.
func (c *Context) InitNew() error {
	const op = "Context.InitNew"
	if c.initialized {
		return newError(AlreadyInitialized, op, "%s is already initialized", c)
	}
	platform, err := c.platform(op)
	if err != nil {
		return err
	}
	devices := c.devices
	if len(devices) == 0 {
		candidates, err := platform.DevicesOfType(c.deviceType)
		if err != nil {
			return errors.WithMessage(err, op)
		}
		if len(candidates) == 0 {
			return newError(DeviceNotCompatible, op, "%s has no device of type %s", platform, c.deviceType)
		}
		devices = candidates[:1]
	}
	handles := make([]clapi.Handle, len(devices))
	for ii, d := range devices {
		handles[ii] = d.Handle()
	}

	backend := c.reg.backend
	ctxHandle, err := backend.CreateContext(platform.Handle(), handles)
	if err != nil {
		return toError(op, err)
	}
	res := &contextResources{backend: backend, context: nativeRef{handle: ctxHandle, ownership: Owned}}
	queues := make(map[clapi.Handle][]*Queue, len(devices))
	for _, d := range devices {
		qHandle, err := backend.CreateQueue(ctxHandle, d.Handle())
		if err != nil {
			if err2 := res.release(); err2 != nil {
				klog.Errorf("%s: failed to release partially initialized context %s: %v", op, ctxHandle, err2)
			}
			return toError(op, err)
		}
		q := &Queue{ctx: c, device: d, ref: &nativeRef{handle: qHandle, ownership: Owned}}
		res.queues = append(res.queues, q.ref)
		queues[d.Handle()] = []*Queue{q}
	}

	c.res = res
	c.devices = devices
	c.queues = queues
	if c.currentDevice >= len(devices) {
		c.currentDevice = 0
	}
	c.currentQueue = 0
	c.initialized = true
	c.addCleanup()
	klog.V(1).Infof("created %s on %s", c, platform)
	return nil
}

// Destroy releases the queues and native context owned by c. Adopted handles are not released.
// After Destroy the context is uninitialized again. It is idempotent.
func (c *Context) Destroy() error {
	if !c.initialized {
		return nil
	}
	klog.V(1).Infof("destroying %s", c)
	err := c.res.release()
	c.res = &contextResources{backend: c.reg.backend}
	c.queues = make(map[clapi.Handle][]*Queue)
	c.currentQueue = 0
	c.initialized = false
	if err != nil {
		return toError("Context.Destroy", err)
	}
	return nil
}

// Devices returns the devices of the context, in order.
func (c *Context) Devices() []*Device {
	return slices.Clone(c.devices)
}

// deviceIndex returns the position of the device in the context, or -1.
func (c *Context) deviceIndex(handle clapi.Handle) int {
	return indexOf(c.devices, func(d *Device) bool { return d.Handle() == handle })
}

// CurrentDevice returns the active device of the context.
func (c *Context) CurrentDevice() (*Device, error) {
	if len(c.devices) == 0 {
		return nil, newError(NotInitialized, "Context.CurrentDevice", "%s has no devices", c)
	}
	return c.devices[c.currentDevice], nil
}

// AddDevice adds a device to a not yet initialized context. Adding a device twice is a no-op.
//
// It fails with DeviceNotCompatible if the device doesn't belong to the platform selected by the platform index,
// and with AlreadyInitialized if the native context was already created. On failure the device set is unchanged.
func (c *Context) AddDevice(d *Device) error {
	const op = "Context.AddDevice"
	if d == nil {
		return newError(InvalidHandle, op, "nil device")
	}
	if c.initialized {
		return newError(AlreadyInitialized, op, "can't add %s to %s", d, c)
	}
	platformHandle, err := c.platformHandle(op)
	if err != nil {
		return err
	}
	if d.PlatformHandle() != platformHandle {
		return newError(DeviceNotCompatible, op, "%s belongs to platform %s, but context is configured for platform #%d (%s)",
			d, d.PlatformHandle(), c.platformIndex, platformHandle)
	}
	if c.deviceIndex(d.Handle()) != -1 {
		return nil
	}
	c.devices = append(c.devices, d)
	return nil
}

// SwitchActiveDevice makes d the current device of the context, and its first queue the current queue.
// It fails with DeviceNotCompatible if d is not one of the devices of the context.
func (c *Context) SwitchActiveDevice(d *Device) error {
	const op = "Context.SwitchActiveDevice"
	if d == nil {
		return newError(InvalidHandle, op, "nil device")
	}
	idx := c.deviceIndex(d.Handle())
	if idx == -1 {
		if platformHandle, err := c.platformHandle(op); err == nil && platformHandle != d.PlatformHandle() {
			return newError(DeviceNotCompatible, op, "%s belongs to platform %s, not to the platform %s of %s",
				d, d.PlatformHandle(), platformHandle, c)
		}
		return newError(DeviceNotCompatible, op, "%s is not part of %s", d, c)
	}
	c.currentDevice = idx
	c.currentQueue = 0
	klog.V(2).Infof("%s: switched to %s", c, d)
	return nil
}

// Queues returns the queues registered for the given device.
func (c *Context) Queues(deviceHandle clapi.Handle) []*Queue {
	return slices.Clone(c.queues[deviceHandle])
}

// requireDevice returns an error if the context is not initialized, or the device is not part of it.
func (c *Context) requireDevice(op string, deviceHandle clapi.Handle) (*Device, error) {
	if !c.initialized {
		return nil, newError(NotInitialized, op, "%s is not initialized", c)
	}
	idx := c.deviceIndex(deviceHandle)
	if idx == -1 {
		return nil, newError(DeviceNotCompatible, op, "device %s is not part of %s", deviceHandle, c)
	}
	return c.devices[idx], nil
}

// GetQueue returns the queue number queueIndex of the given device.
func (c *Context) GetQueue(deviceHandle clapi.Handle, queueIndex int) (*Queue, error) {
	const op = "Context.GetQueue"
	if _, err := c.requireDevice(op, deviceHandle); err != nil {
		return nil, err
	}
	queues := c.queues[deviceHandle]
	if queueIndex < 0 || queueIndex >= len(queues) {
		return nil, newError(InvalidHandle, op, "queue index %d out of range, device %s has %d queues",
			queueIndex, deviceHandle, len(queues))
	}
	return queues[queueIndex], nil
}

// addQueue registers q with the context.
func (c *Context) addQueue(q *Queue) {
	deviceHandle := q.device.Handle()
	c.queues[deviceHandle] = append(c.queues[deviceHandle], q)
	c.res.queues = append(c.res.queues, q.ref)
}

// removeQueue unregisters q from the context, keeping the current queue selection consistent.
func (c *Context) removeQueue(q *Queue) bool {
	deviceHandle := q.device.Handle()
	queues := c.queues[deviceHandle]
	idx := slices.Index(queues, q)
	if idx == -1 {
		return false
	}
	c.queues[deviceHandle] = slices.Delete(queues, idx, idx+1)
	c.res.queues = slices.DeleteFunc(c.res.queues, func(r *nativeRef) bool { return r == q.ref })
	if current, err := c.CurrentDevice(); err == nil && current.Handle() == deviceHandle {
		if c.currentQueue > idx || c.currentQueue >= len(c.queues[deviceHandle]) {
			c.currentQueue = max(c.currentQueue-1, 0)
		}
	}
	return true
}

// AddNewQueue allocates a new queue for the device, owned by the context.
func (c *Context) AddNewQueue(deviceHandle clapi.Handle) (*Queue, error) {
	const op = "Context.AddNewQueue"
	d, err := c.requireDevice(op, deviceHandle)
	if err != nil {
		return nil, err
	}
	qHandle, err := c.reg.backend.CreateQueue(c.Handle(), deviceHandle)
	if err != nil {
		return nil, toError(op, err)
	}
	q := &Queue{ctx: c, device: d, ref: &nativeRef{handle: qHandle, ownership: Owned}}
	c.addQueue(q)
	klog.V(2).Infof("%s: new %s", c, q)
	return q, nil
}

// AddExistingQueue registers a queue allocated by someone else. The queue is not owned: it is never released
// by this package.
//
// It fails with InvalidHandle if the handle doesn't refer to a live queue or is already registered with the
// context (use AdoptQueue for an explicit alias), and with DeviceNotCompatible if the queue belongs to a
// different context or device.
func (c *Context) AddExistingQueue(deviceHandle, queueHandle clapi.Handle) (*Queue, error) {
	const op = "Context.AddExistingQueue"
	d, err := c.requireDevice(op, deviceHandle)
	if err != nil {
		return nil, err
	}
	if !queueHandle.IsValid() {
		return nil, newError(InvalidHandle, op, "invalid queue handle %s", queueHandle)
	}
	if existing := c.findQueue(queueHandle); existing != nil {
		return nil, newError(InvalidHandle, op, "queue %s is already registered with %s", queueHandle, c)
	}
	qContext, qDevice, err := c.reg.backend.QueueInfo(queueHandle)
	if err != nil {
		return nil, toErrorAs(InvalidHandle, op, err)
	}
	if qContext != c.Handle() || qDevice != deviceHandle {
		return nil, newError(DeviceNotCompatible, op, "queue %s is bound to context %s and device %s, not to %s and device %s",
			queueHandle, qContext, qDevice, c, deviceHandle)
	}
	q := &Queue{ctx: c, device: d, ref: &nativeRef{handle: queueHandle, ownership: Adopted}}
	c.addQueue(q)
	return q, nil
}

// findQueue returns the registered queue with the given handle, or nil.
func (c *Context) findQueue(queueHandle clapi.Handle) *Queue {
	for _, queues := range c.queues {
		for _, q := range queues {
			if q.Handle() == queueHandle {
				return q
			}
		}
	}
	return nil
}

// SwitchQueue makes q the current queue. The device of q becomes the current device.
// It fails with InvalidHandle if q is not registered with the context.
func (c *Context) SwitchQueue(q *Queue) error {
	const op = "Context.SwitchQueue"
	if q == nil {
		return newError(InvalidHandle, op, "nil queue")
	}
	deviceHandle := q.device.Handle()
	idx := indexOf(c.queues[deviceHandle], func(other *Queue) bool { return other.Handle() == q.Handle() })
	if idx == -1 {
		return newError(InvalidHandle, op, "%s is not registered with %s", q, c)
	}
	c.currentDevice = c.deviceIndex(deviceHandle)
	c.currentQueue = idx
	return nil
}

// CurrentQueue returns the current queue of the current device.
//
// If the current device has no queues (e.g. the context was adopted), a new queue owned by the context is created.
func (c *Context) CurrentQueue() (*Queue, error) {
	const op = "Context.CurrentQueue"
	if !c.initialized {
		return nil, newError(NotInitialized, op, "%s is not initialized", c)
	}
	d, err := c.CurrentDevice()
	if err != nil {
		return nil, err
	}
	queues := c.queues[d.Handle()]
	if len(queues) == 0 {
		return c.AddNewQueue(d.Handle())
	}
	return queues[c.currentQueue], nil
}
