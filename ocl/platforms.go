package ocl

import (
	"fmt"

	"github.com/gomlx/govcl/clapi"
	"k8s.io/klog/v2"
)

// Platform identifies a vendor/driver instance. It is a read-only view: platforms are never released.
//
// Platforms are immutable once enumerated, but the list of devices is queried lazily on first use.
type Platform struct {
	reg    *Registry
	handle clapi.Handle
	info   clapi.PlatformInfo

	devices       []*Device
	devicesLoaded bool
}

// newPlatform queries the platform attributes and returns a Platform reference.
func newPlatform(reg *Registry, handle clapi.Handle) (*Platform, error) {
	info, err := reg.backend.PlatformInfo(handle)
	if err != nil {
		return nil, err
	}
	return &Platform{reg: reg, handle: handle, info: info}, nil
}

// Handle returns the native identity of the platform, as given by the backend or by AdoptPlatform.
func (p *Platform) Handle() clapi.Handle {
	return p.handle
}

// Name of the platform, e.g. "NVIDIA CUDA".
func (p *Platform) Name() string { return p.info.Name }

// Vendor of the platform.
func (p *Platform) Vendor() string { return p.info.Vendor }

// Version string of the platform, e.g. "OpenCL 3.0 CUDA 12.4.89".
func (p *Platform) Version() string { return p.info.Version }

// Profile is either "FULL_PROFILE" or "EMBEDDED_PROFILE".
func (p *Platform) Profile() string { return p.info.Profile }

// NativeInfo returns all the attributes reported by the backend.
func (p *Platform) NativeInfo() clapi.PlatformInfo { return p.info }

// Info returns a human-readable description of the platform.
func (p *Platform) Info() string {
	return fmt.Sprintf("%s: %s (%s)", p.info.Vendor, p.info.Name, p.info.Version)
}

// String implements fmt.Stringer.
func (p *Platform) String() string {
	return fmt.Sprintf("Platform(%s, %s)", p.info.Name, p.handle)
}

// Devices returns all the devices of the platform, in backend order. A platform with no devices returns an empty list.
//
// The list is queried on first use and cached.
func (p *Platform) Devices() ([]*Device, error) {
	if p.devicesLoaded {
		return p.devices, nil
	}
	devices, err := p.DevicesOfType(clapi.DeviceTypeAll)
	if err != nil {
		return nil, err
	}
	p.devices = devices
	p.devicesLoaded = true
	return p.devices, nil
}

// DevicesOfType queries the backend for the devices of the platform matching deviceType. It is not cached.
func (p *Platform) DevicesOfType(deviceType clapi.DeviceType) ([]*Device, error) {
	const op = "Platform.Devices"
	handles, err := p.reg.backend.DeviceIDs(p.handle, deviceType)
	if err != nil {
		return nil, toError(op, err)
	}
	devices := make([]*Device, 0, len(handles))
	for _, h := range handles {
		d, err := newDevice(p.reg, h)
		if err != nil {
			return nil, toError(op, err)
		}
		devices = append(devices, d)
	}
	klog.V(2).Infof("%s: %d devices of type %s", p, len(devices), deviceType)
	return devices, nil
}
