// Package sim implements a simulated clapi.Backend: platforms and devices come from a YAML catalog,
// and contexts and queues are entries in an in-memory handle table.
//
// It keeps count of every allocation and release, so tests can check who allocates and who
// releases native objects, and it can inject failures in any entry point (see Backend.FailNext).
//
// Linear algebra (clapi.Solver) is computed on the host with gonum.
//
// It registers itself as the "sim" backend; the configuration string is an optional path to a YAML catalog.
package sim

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/govcl/clapi"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName is the name under which the simulated backend is registered.
const BackendName = "sim"

func init() {
	clapi.Register(BackendName, func(config string) (clapi.Backend, error) {
		if config == "" {
			return New(DefaultConfig()), nil
		}
		c, err := LoadConfig(config)
		if err != nil {
			return nil, err
		}
		return New(c), nil
	})
}

const (
	// firstHandle and handleStride make synthesized handles look like aligned pointers.
	firstHandle  clapi.Handle = 0x7f5a_0000_1000
	handleStride clapi.Handle = 0x40
)

type platform struct {
	handle  clapi.Handle
	info    clapi.PlatformInfo
	devices []*device
}

type device struct {
	handle    clapi.Handle
	info      clapi.DeviceInfo
	isDefault bool
}

type context struct {
	handle   clapi.Handle
	platform *platform
	devices  []*device

	// released is set once the owner released it; the handle stays in the table while queues reference it.
	released bool
	refs     int
}

type queue struct {
	handle  clapi.Handle
	context *context
	device  *device
}

// Stats counts native allocations and releases.
type Stats struct {
	ContextsCreated, ContextsReleased int
	QueuesCreated, QueuesReleased     int
	Finishes, Solves                  int
}

// LiveContexts returns the number of contexts created and not yet released.
func (s Stats) LiveContexts() int { return s.ContextsCreated - s.ContextsReleased }

// LiveQueues returns the number of queues created and not yet released.
func (s Stats) LiveQueues() int { return s.QueuesCreated - s.QueuesReleased }

// Backend is the simulated clapi.Backend. It is safe for concurrent use.
type Backend struct {
	mu     sync.Mutex
	config *Config

	platforms []*platform
	devices   map[clapi.Handle]*device
	contexts  map[clapi.Handle]*context
	queues    map[clapi.Handle]*queue

	nextHandle clapi.Handle
	stats      Stats
	faults     map[string]clapi.Status
	closed     bool
}

var (
	_ clapi.Backend = (*Backend)(nil)
	_ clapi.Solver  = (*Backend)(nil)
)

// New creates a simulated backend with the given catalog. The configuration must be valid (see Config.Validate).
func New(config *Config) *Backend {
	b := &Backend{
		config:     config,
		devices:    make(map[clapi.Handle]*device),
		contexts:   make(map[clapi.Handle]*context),
		queues:     make(map[clapi.Handle]*queue),
		faults:     make(map[string]clapi.Status),
		nextHandle: firstHandle,
	}
	for _, pc := range config.Platforms {
		p := &platform{
			handle: b.newHandle(),
			info: clapi.PlatformInfo{
				Name: pc.Name, Vendor: pc.Vendor, Version: pc.Version,
				Profile: pc.Profile, Extensions: pc.Extensions,
			},
		}
		for _, dc := range pc.Devices {
			deviceType, _ := parseDeviceType(dc.Type) // Validated by Config.Validate.
			d := &device{
				handle:    b.newHandle(),
				isDefault: dc.Default,
				info: clapi.DeviceInfo{
					Name: dc.Name, Vendor: dc.Vendor, Version: dc.Version,
					DriverVersion: dc.DriverVersion, Profile: dc.Profile,
					Extensions:        dc.Extensions,
					Type:              deviceType,
					Platform:          p.handle,
					MaxComputeUnits:   dc.ComputeUnits,
					MaxClockFrequency: dc.ClockMHz,
					MaxWorkGroupSize:  dc.MaxWorkGroupSize,
					GlobalMemSize:     dc.GlobalMemSize,
					LocalMemSize:      dc.LocalMemSize,
					MaxMemAllocSize:   dc.MaxMemAllocSize,
					Available:         !dc.Unavailable,
				},
			}
			p.devices = append(p.devices, d)
			b.devices[d.handle] = d
		}
		if len(p.devices) > 0 && !slices.ContainsFunc(p.devices, func(d *device) bool { return d.isDefault }) {
			p.devices[0].isDefault = true
		}
		b.platforms = append(b.platforms, p)
	}
	klog.V(1).Infof("simulated backend with %d platforms and %d devices", len(b.platforms), len(b.devices))
	return b
}

func (b *Backend) newHandle() clapi.Handle {
	h := b.nextHandle
	b.nextHandle += handleStride
	return h
}

// FailNext makes the next call to the named entry point (e.g. "clCreateCommandQueue") fail with status.
func (b *Backend) FailNext(fn string, status clapi.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[fn] = status
}

// Stats returns the allocation counters.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Config returns the catalog the backend was created with.
func (b *Backend) Config() *Config {
	return b.config
}

// enter must be called with b.mu locked at the start of every entry point.
func (b *Backend) enter(fn string) error {
	if b.closed {
		return errors.WithStack(clapi.NewStatusError(fn, clapi.PlatformNotFoundKHR))
	}
	if status, found := b.faults[fn]; found {
		delete(b.faults, fn)
		return errors.WithStack(clapi.NewStatusError(fn, status))
	}
	return nil
}

func statusError(fn string, status clapi.Status) error {
	return errors.WithStack(clapi.NewStatusError(fn, status))
}

// Name implements clapi.Backend.
func (b *Backend) Name() string { return BackendName }

// Description implements clapi.Backend.
func (b *Backend) Description() string {
	return fmt.Sprintf("simulated OpenCL backend (%d platforms, %d devices)", len(b.platforms), len(b.devices))
}

// PlatformIDs implements clapi.Backend.
func (b *Backend) PlatformIDs() ([]clapi.Handle, error) {
	const fn = "clGetPlatformIDs"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return nil, err
	}
	if len(b.platforms) == 0 {
		return nil, statusError(fn, clapi.PlatformNotFoundKHR)
	}
	ids := make([]clapi.Handle, len(b.platforms))
	for ii, p := range b.platforms {
		ids[ii] = p.handle
	}
	return ids, nil
}

func (b *Backend) findPlatform(h clapi.Handle) *platform {
	for _, p := range b.platforms {
		if p.handle == h {
			return p
		}
	}
	return nil
}

// PlatformInfo implements clapi.Backend.
func (b *Backend) PlatformInfo(h clapi.Handle) (clapi.PlatformInfo, error) {
	const fn = "clGetPlatformInfo"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return clapi.PlatformInfo{}, err
	}
	p := b.findPlatform(h)
	if p == nil {
		return clapi.PlatformInfo{}, statusError(fn, clapi.InvalidPlatform)
	}
	return p.info, nil
}

// DeviceIDs implements clapi.Backend.
func (b *Backend) DeviceIDs(h clapi.Handle, deviceType clapi.DeviceType) ([]clapi.Handle, error) {
	const fn = "clGetDeviceIDs"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return nil, err
	}
	p := b.findPlatform(h)
	if p == nil {
		return nil, statusError(fn, clapi.InvalidPlatform)
	}
	ids := []clapi.Handle{}
	for _, d := range p.devices {
		if deviceType == clapi.DeviceTypeDefault {
			if d.isDefault {
				ids = append(ids, d.handle)
			}
			continue
		}
		if d.info.Type.Matches(deviceType) {
			ids = append(ids, d.handle)
		}
	}
	return ids, nil
}

// DeviceInfo implements clapi.Backend.
func (b *Backend) DeviceInfo(h clapi.Handle) (clapi.DeviceInfo, error) {
	const fn = "clGetDeviceInfo"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return clapi.DeviceInfo{}, err
	}
	d, found := b.devices[h]
	if !found {
		return clapi.DeviceInfo{}, statusError(fn, clapi.InvalidDevice)
	}
	info := d.info
	if d.isDefault {
		info.Type |= clapi.DeviceTypeDefault
	}
	return info, nil
}

// CreateContext implements clapi.Backend.
func (b *Backend) CreateContext(platformHandle clapi.Handle, deviceHandles []clapi.Handle) (clapi.Handle, error) {
	const fn = "clCreateContext"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return 0, err
	}
	p := b.findPlatform(platformHandle)
	if p == nil {
		return 0, statusError(fn, clapi.InvalidPlatform)
	}
	if len(deviceHandles) == 0 {
		return 0, statusError(fn, clapi.InvalidValue)
	}
	devices := make([]*device, 0, len(deviceHandles))
	for _, dh := range deviceHandles {
		d, found := b.devices[dh]
		if !found || d.info.Platform != p.handle || !d.info.Available {
			return 0, statusError(fn, clapi.InvalidDevice)
		}
		devices = append(devices, d)
	}
	if limit := b.config.Limits.MaxContexts; limit > 0 && b.stats.LiveContexts() >= limit {
		return 0, statusError(fn, clapi.OutOfResources)
	}
	c := &context{handle: b.newHandle(), platform: p, devices: devices, refs: 1}
	b.contexts[c.handle] = c
	b.stats.ContextsCreated++
	klog.V(2).Infof("sim: created context %s with %d devices", c.handle, len(devices))
	return c.handle, nil
}

// liveContext must be called with b.mu locked.
func (b *Backend) liveContext(h clapi.Handle) *context {
	c, found := b.contexts[h]
	if !found || c.released {
		return nil
	}
	return c
}

// ContextDevices implements clapi.Backend.
func (b *Backend) ContextDevices(h clapi.Handle) ([]clapi.Handle, error) {
	const fn = "clGetContextInfo"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return nil, err
	}
	c := b.liveContext(h)
	if c == nil {
		return nil, statusError(fn, clapi.InvalidContext)
	}
	ids := make([]clapi.Handle, len(c.devices))
	for ii, d := range c.devices {
		ids[ii] = d.handle
	}
	return ids, nil
}

// unrefContext must be called with b.mu locked.
func (b *Backend) unrefContext(c *context) {
	c.refs--
	if c.refs <= 0 {
		delete(b.contexts, c.handle)
	}
}

// ReleaseContext implements clapi.Backend.
func (b *Backend) ReleaseContext(h clapi.Handle) error {
	const fn = "clReleaseContext"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return err
	}
	c := b.liveContext(h)
	if c == nil {
		return statusError(fn, clapi.InvalidContext)
	}
	c.released = true
	b.stats.ContextsReleased++
	b.unrefContext(c)
	klog.V(2).Infof("sim: released context %s", h)
	return nil
}

// CreateQueue implements clapi.Backend.
func (b *Backend) CreateQueue(contextHandle, deviceHandle clapi.Handle) (clapi.Handle, error) {
	const fn = "clCreateCommandQueue"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return 0, err
	}
	c := b.liveContext(contextHandle)
	if c == nil {
		return 0, statusError(fn, clapi.InvalidContext)
	}
	idx := slices.IndexFunc(c.devices, func(d *device) bool { return d.handle == deviceHandle })
	if idx == -1 {
		return 0, statusError(fn, clapi.InvalidDevice)
	}
	if limit := b.config.Limits.MaxQueuesPerDevice; limit > 0 {
		count := 0
		for _, q := range b.queues {
			if q.device.handle == deviceHandle {
				count++
			}
		}
		if count >= limit {
			return 0, statusError(fn, clapi.OutOfResources)
		}
	}
	q := &queue{handle: b.newHandle(), context: c, device: c.devices[idx]}
	b.queues[q.handle] = q
	c.refs++
	b.stats.QueuesCreated++
	klog.V(2).Infof("sim: created queue %s on device %s", q.handle, deviceHandle)
	return q.handle, nil
}

// QueueInfo implements clapi.Backend.
func (b *Backend) QueueInfo(h clapi.Handle) (contextHandle, deviceHandle clapi.Handle, err error) {
	const fn = "clGetCommandQueueInfo"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err = b.enter(fn); err != nil {
		return
	}
	q, found := b.queues[h]
	if !found {
		err = statusError(fn, clapi.InvalidCommandQueue)
		return
	}
	return q.context.handle, q.device.handle, nil
}

// Finish implements clapi.Backend. Simulated queues execute synchronously, so it only validates the queue.
func (b *Backend) Finish(h clapi.Handle) error {
	const fn = "clFinish"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return err
	}
	if _, found := b.queues[h]; !found {
		return statusError(fn, clapi.InvalidCommandQueue)
	}
	b.stats.Finishes++
	return nil
}

// ReleaseQueue implements clapi.Backend.
func (b *Backend) ReleaseQueue(h clapi.Handle) error {
	const fn = "clReleaseCommandQueue"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(fn); err != nil {
		return err
	}
	q, found := b.queues[h]
	if !found {
		return statusError(fn, clapi.InvalidCommandQueue)
	}
	delete(b.queues, h)
	b.unrefContext(q.context)
	b.stats.QueuesReleased++
	klog.V(2).Infof("sim: released queue %s", h)
	return nil
}

// Close implements clapi.Backend. Any further call fails with CL_PLATFORM_NOT_FOUND_KHR.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if live := b.stats.LiveContexts(); live > 0 {
		klog.Warningf("sim: backend closed with %d contexts and %d queues still alive", live, b.stats.LiveQueues())
	}
	b.closed = true
	return nil
}
