package ocl

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/govcl/clapi"
	"github.com/gomlx/govcl/dtypes"
)

// Device is a lightweight reference to a compute unit of a platform. It doesn't own the underlying object.
//
// The attributes are read once, when the reference is created. If the device handle was adopted and its owner
// releases it, the Device becomes invalid: using it in a context will fail with InvalidHandle.
type Device struct {
	reg    *Registry
	handle clapi.Handle
	info   clapi.DeviceInfo
}

// newDevice queries the device attributes and returns a Device reference.
func newDevice(reg *Registry, handle clapi.Handle) (*Device, error) {
	info, err := reg.backend.DeviceInfo(handle)
	if err != nil {
		return nil, err
	}
	return &Device{reg: reg, handle: handle, info: info}, nil
}

// Handle returns the native identity of the device.
func (d *Device) Handle() clapi.Handle {
	return d.handle
}

// Name of the device, e.g. "NVIDIA GeForce RTX 4090".
func (d *Device) Name() string { return d.info.Name }

// Vendor of the device.
func (d *Device) Vendor() string { return d.info.Vendor }

// Version is the OpenCL version supported by the device, e.g. "OpenCL 3.0 CUDA".
func (d *Device) Version() string { return d.info.Version }

// DriverVersion is the version of the vendor driver.
func (d *Device) DriverVersion() string { return d.info.DriverVersion }

// Type of the device. It may include DeviceTypeDefault, if the device is the default of its platform.
func (d *Device) Type() clapi.DeviceType { return d.info.Type }

// PlatformHandle returns the native identity of the platform the device belongs to.
func (d *Device) PlatformHandle() clapi.Handle { return d.info.Platform }

// GlobalMemSize in bytes.
func (d *Device) GlobalMemSize() uint64 { return d.info.GlobalMemSize }

// MaxComputeUnits is the number of parallel compute units.
func (d *Device) MaxComputeUnits() uint32 { return d.info.MaxComputeUnits }

// IsAvailable returns whether the device can be used.
func (d *Device) IsAvailable() bool { return d.info.Available }

// NativeInfo returns all the attributes reported by the backend.
func (d *Device) NativeInfo() clapi.DeviceInfo { return d.info }

// Extensions returns the list of extensions supported by the device.
func (d *Device) Extensions() []string {
	return strings.Fields(d.info.Extensions)
}

// HasExtension returns whether the device lists the given extension.
func (d *Device) HasExtension(extension string) bool {
	return slices.Contains(d.Extensions(), extension)
}

// DoubleSupport returns whether the device supports double precision (float64).
func (d *Device) DoubleSupport() bool {
	return d.HasExtension(dtypes.ExtensionFP64) || d.HasExtension("cl_amd_fp64")
}

// HalfSupport returns whether the device supports half precision (float16).
func (d *Device) HalfSupport() bool {
	return d.HasExtension(dtypes.ExtensionFP16)
}

// Supports returns whether the device can handle data of the given dtype.
func (d *Device) Supports(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Float64:
		return d.DoubleSupport()
	case dtypes.Float16:
		return d.HalfSupport()
	case dtypes.Float32:
		return true
	}
	return false
}

// typeName returns the name of the device type, without the default bit.
func (d *Device) typeName() string {
	t := d.info.Type &^ clapi.DeviceTypeDefault
	if t.IsADeviceType() {
		return t.String()
	}
	return fmt.Sprintf("DeviceType(0x%x)", uint64(t))
}

// Info returns a one-line human-readable description of the device.
func (d *Device) Info() string {
	return fmt.Sprintf("%s [%s] (%s, %s)", d.info.Name, d.typeName(), d.info.Vendor, d.info.Version)
}

// FullInfo returns a multi-line description with all the attributes of the device, each line prefixed by indent.
func (d *Device) FullInfo(indent string) string {
	var sb strings.Builder
	line := func(name, format string, args ...any) {
		fmt.Fprintf(&sb, "%s%-22s %s\n", indent, name+":", fmt.Sprintf(format, args...))
	}
	line("Name", "%s", d.info.Name)
	line("Vendor", "%s", d.info.Vendor)
	line("Type", "%s", d.typeName())
	line("Available", "%t", d.info.Available)
	line("Version", "%s", d.info.Version)
	line("Driver Version", "%s", d.info.DriverVersion)
	line("Profile", "%s", d.info.Profile)
	line("Max Compute Units", "%d", d.info.MaxComputeUnits)
	line("Max Clock Frequency", "%d MHz", d.info.MaxClockFrequency)
	line("Max Work Group Size", "%d", d.info.MaxWorkGroupSize)
	line("Global Mem Size", "%s", humanize.IBytes(d.info.GlobalMemSize))
	line("Local Mem Size", "%s", humanize.IBytes(d.info.LocalMemSize))
	line("Max Mem Alloc Size", "%s", humanize.IBytes(d.info.MaxMemAllocSize))
	line("Double Support", "%t", d.DoubleSupport())
	line("Half Support", "%t", d.HalfSupport())
	line("Extensions", "%s", strings.Join(d.Extensions(), " "))
	return sb.String()
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("Device(%s, %s)", d.info.Name, d.handle)
}
