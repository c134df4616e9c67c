package ocl

import (
	"maps"
	"slices"

	"github.com/gomlx/govcl/clapi"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Registry is the context-selection service: it holds the platform catalog of a backend, a set of contexts
// indexed by an integer id, and which one of them is current.
//
// Operations that don't take an explicit context (e.g. the solvers in the linalg package) target the
// current context of the Registry they are given, and within it the current device and queue.
//
// Registry is not safe for concurrent use: callers must serialize context switches and context mutations.
type Registry struct {
	backend     clapi.Backend
	ownsBackend bool

	platforms []*Platform

	contexts  map[int64]*Context
	currentID int64
}

// NewRegistry creates a Registry for the given backend. The backend is not closed by Registry.Close.
func NewRegistry(backend clapi.Backend) *Registry {
	return &Registry{
		backend:  backend,
		contexts: make(map[int64]*Context),
	}
}

// NewDefaultRegistry creates a Registry for the default backend (see clapi.New). The backend is closed with
// the registry.
func NewDefaultRegistry() (*Registry, error) {
	backend, err := clapi.New()
	if err != nil {
		return nil, toError("NewDefaultRegistry", err)
	}
	reg := NewRegistry(backend)
	reg.ownsBackend = true
	return reg, nil
}

// Backend returns the backend used by the registry.
func (r *Registry) Backend() clapi.Backend {
	return r.backend
}

// Platforms returns the platform catalog. It is enumerated on first use, and then only refreshed by
// RefreshPlatforms. It fails with BackendUnavailable if there is no compute backend or driver present.
func (r *Registry) Platforms() ([]*Platform, error) {
	if r.platforms != nil {
		return r.platforms, nil
	}
	return r.RefreshPlatforms()
}

// RefreshPlatforms enumerates the platforms again, e.g. after a driver reset.
// The order of the platforms is backend defined. If it fails, the previous catalog is kept.
func (r *Registry) RefreshPlatforms() ([]*Platform, error) {
	const op = "Registry.RefreshPlatforms"
	handles, err := r.backend.PlatformIDs()
	if err != nil {
		return nil, toError(op, err)
	}
	platforms := make([]*Platform, 0, len(handles))
	for _, h := range handles {
		p, err := newPlatform(r, h)
		if err != nil {
			return nil, toError(op, err)
		}
		platforms = append(platforms, p)
	}
	r.platforms = platforms
	klog.V(1).Infof("%s: %d platforms", r.backend.Name(), len(platforms))
	return platforms, nil
}

// platformIndex returns the index in the catalog of the platform with the given handle, or -1.
func (r *Registry) platformIndex(handle clapi.Handle) int {
	platforms, err := r.Platforms()
	if err != nil {
		return -1
	}
	return indexOf(platforms, func(p *Platform) bool { return p.Handle() == handle })
}

// AdoptPlatform wraps a platform handle obtained elsewhere (e.g. from another binding in the same process).
// It fails with InvalidHandle if the handle doesn't refer to a platform.
func (r *Registry) AdoptPlatform(handle clapi.Handle) (*Platform, error) {
	const op = "Registry.AdoptPlatform"
	if !handle.IsValid() {
		return nil, newError(InvalidHandle, op, "invalid platform handle %s", handle)
	}
	p, err := newPlatform(r, handle)
	if err != nil {
		return nil, toErrorAs(InvalidHandle, op, err)
	}
	return p, nil
}

// AdoptDevice wraps a device handle obtained elsewhere. It fails with InvalidHandle if the handle doesn't refer
// to a device. If its owner releases the device, the returned Device becomes invalid.
func (r *Registry) AdoptDevice(handle clapi.Handle) (*Device, error) {
	const op = "Registry.AdoptDevice"
	if !handle.IsValid() {
		return nil, newError(InvalidHandle, op, "invalid device handle %s", handle)
	}
	d, err := newDevice(r, handle)
	if err != nil {
		return nil, toErrorAs(InvalidHandle, op, err)
	}
	return d, nil
}

// NewContext returns a new uninitialized context, for platform index 0 and the default device type.
// It is not registered: see AddContext and SwitchContext.
func (r *Registry) NewContext() *Context {
	return newContext(r)
}

// ContextFromHandle adopts a native context created elsewhere. It doesn't create a new native context, and the
// returned Context never releases it. No queue is created until one is requested.
//
// It fails with InvalidHandle if the handle doesn't refer to a live context.
func (r *Registry) ContextFromHandle(handle clapi.Handle) (*Context, error) {
	const op = "Registry.ContextFromHandle"
	if !handle.IsValid() {
		return nil, newError(InvalidHandle, op, "invalid context handle %s", handle)
	}
	deviceHandles, err := r.backend.ContextDevices(handle)
	if err != nil {
		return nil, toErrorAs(InvalidHandle, op, err)
	}
	c := newContext(r)
	for _, dh := range deviceHandles {
		d, err := newDevice(r, dh)
		if err != nil {
			return nil, toError(op, err)
		}
		c.devices = append(c.devices, d)
	}
	if len(c.devices) > 0 {
		if idx := r.platformIndex(c.devices[0].PlatformHandle()); idx >= 0 {
			c.platformIndex = idx
		}
	}
	c.res.context = nativeRef{handle: handle, ownership: Adopted}
	c.initialized = true
	c.addCleanup()
	klog.V(1).Infof("adopted %s", c)
	return c, nil
}

// AddContext registers ctx under the given id. It fails with AlreadyInitialized if the id is taken by another context.
func (r *Registry) AddContext(id int64, ctx *Context) error {
	if existing, found := r.contexts[id]; found && existing != ctx {
		return newError(AlreadyInitialized, "Registry.AddContext", "context id %d is already in use by %s", id, existing)
	}
	r.contexts[id] = ctx
	return nil
}

// Context returns the context registered with the given id.
func (r *Registry) Context(id int64) (*Context, bool) {
	ctx, found := r.contexts[id]
	return ctx, found
}

// ContextIDs returns the ids of the registered contexts, sorted.
func (r *Registry) ContextIDs() []int64 {
	return slices.Sorted(maps.Keys(r.contexts))
}

// CurrentContextID returns the id of the current context.
func (r *Registry) CurrentContextID() int64 {
	return r.currentID
}

// CurrentContext returns the current context. If it doesn't exist or is not initialized yet, it is created
// (with SetupContext configuration, if any) and initialized. A context created here is only registered once
// initialized.
func (r *Registry) CurrentContext() (*Context, error) {
	ctx, found := r.contexts[r.currentID]
	if !found {
		ctx = newContext(r)
	}
	if !ctx.IsInitialized() {
		if err := ctx.InitNew(); err != nil {
			return nil, errors.WithMessage(err, "Registry.CurrentContext")
		}
	}
	r.contexts[r.currentID] = ctx
	return ctx, nil
}

// SwitchContext makes ctx the current context. If ctx is not registered, it is registered with the next
// free id. Nothing else is changed.
func (r *Registry) SwitchContext(ctx *Context) error {
	if ctx == nil {
		return newError(InvalidHandle, "Registry.SwitchContext", "nil context")
	}
	for id, registered := range r.contexts {
		if registered == ctx {
			r.currentID = id
			return nil
		}
	}
	var id int64
	for _, taken := range r.ContextIDs() {
		if taken >= id {
			id = taken + 1
		}
	}
	r.contexts[id] = ctx
	r.currentID = id
	return nil
}

// SwitchContextID makes the context with the given id current. The context is created (and initialized) lazily,
// on the next call to CurrentContext.
func (r *Registry) SwitchContextID(id int64) {
	r.currentID = id
}

// SetupContext configures the (not yet initialized) context with the given id to use the device, creating the
// context if needed. If the context has no devices yet, its platform index is set to the platform of the device.
func (r *Registry) SetupContext(id int64, device *Device) error {
	const op = "Registry.SetupContext"
	if device == nil {
		return newError(InvalidHandle, op, "nil device")
	}
	ctx, found := r.contexts[id]
	if !found {
		ctx = newContext(r)
	}
	if ctx.IsInitialized() {
		return newError(AlreadyInitialized, op, "context id %d is already initialized: %s", id, ctx)
	}
	if len(ctx.devices) == 0 {
		idx := r.platformIndex(device.PlatformHandle())
		if idx == -1 {
			return newError(DeviceNotCompatible, op, "%s doesn't belong to any enumerated platform", device)
		}
		ctx.platformIndex = idx
	}
	if err := ctx.AddDevice(device); err != nil {
		return err
	}
	r.contexts[id] = ctx
	return nil
}

// CurrentDevice returns the current device of the current context.
func (r *Registry) CurrentDevice() (*Device, error) {
	ctx, err := r.CurrentContext()
	if err != nil {
		return nil, err
	}
	return ctx.CurrentDevice()
}

// SwitchDevice makes d the current device of the current context.
func (r *Registry) SwitchDevice(d *Device) error {
	ctx, err := r.CurrentContext()
	if err != nil {
		return err
	}
	return ctx.SwitchActiveDevice(d)
}

// Close destroys all the registered contexts, and closes the backend if it was created by NewDefaultRegistry.
// Adopted handles are not released.
func (r *Registry) Close() error {
	var firstErr error
	for _, id := range r.ContextIDs() {
		if err := r.contexts[id].Destroy(); err != nil {
			klog.Errorf("Registry.Close: context id %d: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	clear(r.contexts)
	r.currentID = 0
	r.platforms = nil
	if r.ownsBackend {
		if err := r.backend.Close(); err != nil && firstErr == nil {
			firstErr = toError("Registry.Close", err)
		}
	}
	return firstErr
}
