//go:build linux && cgo

/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package opencl

// This file loads the ICD loader with dlopen and calls its entry points through function pointers.
//
// Dynamic loading is a modified version of https://github.com/coreos/pkg/blob/main/dlopen/dlopen.go,
// licenced with Apache 2.0 license https://github.com/coreos/pkg/blob/main/LICENSE

// #cgo LDFLAGS: -ldl
/*
#include <stdlib.h>
#include <stdint.h>
#include <dlfcn.h>

typedef int32_t cl_int;
typedef uint32_t cl_uint;
typedef uint64_t cl_ulong;
typedef void* cl_handle;

typedef cl_int (*get_platform_ids_fn)(cl_uint, cl_handle*, cl_uint*);
typedef cl_int (*get_info_fn)(cl_handle, cl_uint, size_t, void*, size_t*);
typedef cl_int (*get_device_ids_fn)(cl_handle, cl_ulong, cl_uint, cl_handle*, cl_uint*);
typedef cl_handle (*create_context_fn)(const intptr_t*, cl_uint, const cl_handle*, void*, void*, cl_int*);
typedef cl_handle (*create_queue_fn)(cl_handle, cl_handle, cl_ulong, cl_int*);
typedef cl_int (*handle_fn)(cl_handle);

static cl_int ocl_get_platform_ids(void *fn, cl_uint n, cl_handle *ids, cl_uint *num) {
	return ((get_platform_ids_fn)fn)(n, ids, num);
}

static cl_int ocl_get_info(void *fn, cl_handle h, cl_uint param, size_t size, void *value, size_t *ret) {
	return ((get_info_fn)fn)(h, param, size, value, ret);
}

static cl_int ocl_get_device_ids(void *fn, cl_handle platform, cl_ulong type, cl_uint n, cl_handle *ids, cl_uint *num) {
	return ((get_device_ids_fn)fn)(platform, type, n, ids, num);
}

static cl_handle ocl_create_context(void *fn, cl_handle platform, cl_uint n, const cl_handle *devices, cl_int *err) {
	intptr_t props[3] = { 0x1084, (intptr_t)platform, 0 }; // CL_CONTEXT_PLATFORM
	return ((create_context_fn)fn)(props, n, devices, NULL, NULL, err);
}

static cl_handle ocl_create_queue(void *fn, cl_handle context, cl_handle device, cl_int *err) {
	return ((create_queue_fn)fn)(context, device, 0, err);
}

static cl_int ocl_call_handle(void *fn, cl_handle h) {
	return ((handle_fn)fn)(h);
}
*/
import "C"
import (
	"fmt"
	"os"
	"strings"
	"unsafe"

	"github.com/gomlx/govcl/clapi"
	"github.com/gomlx/govcl/internal/ldpaths"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Parameter names of the clGet*Info calls.
const (
	platformProfile    = 0x0900
	platformVersion    = 0x0901
	platformName       = 0x0902
	platformVendor     = 0x0903
	platformExtensions = 0x0904

	deviceType              = 0x1000
	deviceMaxComputeUnits   = 0x1002
	deviceMaxWorkGroupSize  = 0x1004
	deviceMaxClockFrequency = 0x100C
	deviceMaxMemAllocSize   = 0x1010
	deviceGlobalMemSize     = 0x101F
	deviceLocalMemSize      = 0x1023
	deviceAvailable         = 0x1027
	deviceName              = 0x102B
	deviceVendor            = 0x102C
	driverVersion           = 0x102D
	deviceProfile           = 0x102E
	deviceVersion           = 0x102F
	deviceExtensions        = 0x1030
	devicePlatform          = 0x1031

	contextDevices = 0x1081

	queueContext = 0x1090
	queueDevice  = 0x1091
)

// requiredSymbols are resolved when the library is loaded: a missing one makes the library unusable.
var requiredSymbols = []string{
	"clGetPlatformIDs", "clGetPlatformInfo", "clGetDeviceIDs", "clGetDeviceInfo",
	"clCreateContext", "clGetContextInfo", "clReleaseContext",
	"clCreateCommandQueue", "clGetCommandQueueInfo", "clFinish", "clReleaseCommandQueue",
}

// Backend implements clapi.Backend with the OpenCL ICD loader.
type Backend struct {
	path    string
	handle  unsafe.Pointer
	symbols map[string]unsafe.Pointer
}

var _ clapi.Backend = (*Backend)(nil)

// New loads the OpenCL library and resolves its entry points.
//
// If library is empty, OCL_LIBRARY is used, and if that is not set, LibraryNames are searched.
// Failing to find or load the library is reported as a CL_PLATFORM_NOT_FOUND_KHR status, since no
// platform can be reached.
func New(library string) (*Backend, error) {
	if library == "" {
		library = os.Getenv(LibraryEnv)
	}
	names := LibraryNames
	if library != "" {
		names = []string{library}
	}
	libPath, err := ldpaths.Find(names, searchPaths())
	if err != nil {
		// Let dlopen use the dynamic linker's own search (e.g. the ld.so cache).
		klog.V(1).Infof("%v: trying dlopen(%q) directly", err, names[0])
		libPath = names[0]
	}

	b := &Backend{path: libPath, symbols: make(map[string]unsafe.Pointer, len(requiredSymbols))}
	nameC := C.CString(libPath)
	klog.V(2).Infof("trying to load library %s", libPath)
	b.handle = C.dlopen(nameC, C.RTLD_LAZY|C.RTLD_LOCAL)
	C.free(unsafe.Pointer(nameC))
	if b.handle == nil {
		msg := C.GoString(C.dlerror())
		return nil, errors.Wrapf(clapi.NewStatusError("dlopen", clapi.PlatformNotFoundKHR),
			"failed to dynamically load OpenCL library %q: %q -- is an OpenCL ICD loader installed? "+
				"Set %s to the directory where it is installed", libPath, msg, LibraryPathsEnv)
	}
	klog.V(1).Infof("loaded library %s", libPath)

	for _, symbol := range requiredSymbols {
		ptr, err := b.symbolPointer(symbol)
		if err != nil {
			if err2 := b.Close(); err2 != nil {
				klog.Warningf("Failed to close dynamic library %q: %v", libPath, err2)
			}
			return nil, errors.Wrapf(clapi.NewStatusError("dlsym", clapi.PlatformNotFoundKHR),
				"library %q doesn't export %q: %v", libPath, symbol, err)
		}
		b.symbols[symbol] = ptr
	}
	return b, nil
}

// symbolPointer takes a symbol name and returns a pointer to the symbol.
func (b *Backend) symbolPointer(symbol string) (unsafe.Pointer, error) {
	sym := C.CString(symbol)
	defer C.free(unsafe.Pointer(sym))

	C.dlerror()
	p := C.dlsym(b.handle, sym)
	e := C.dlerror()
	if e != nil {
		return nil, errors.Errorf("error resolving symbol %q: %v", symbol, errors.New(C.GoString(e)))
	}
	if p == nil {
		return nil, errors.Errorf("symbol %q resolved to nil", symbol)
	}
	return p, nil
}

// Close unloads the library. All handles obtained from it become invalid.
func (b *Backend) Close() error {
	if b.handle == nil {
		return nil
	}
	C.dlerror()
	C.dlclose(b.handle)
	b.handle = nil
	e := C.dlerror()
	if e != nil {
		return errors.Errorf("error closing %v: %v", b.path, errors.New(C.GoString(e)))
	}
	return nil
}

func (b *Backend) fn(name string) unsafe.Pointer {
	return b.symbols[name]
}

func toCHandle(h clapi.Handle) C.cl_handle {
	return C.cl_handle(unsafe.Pointer(uintptr(h)))
}

func fromCHandle(h C.cl_handle) clapi.Handle {
	return clapi.Handle(uintptr(unsafe.Pointer(h)))
}

func statusError(fn string, status C.cl_int) error {
	if status == 0 {
		return nil
	}
	return errors.WithStack(clapi.NewStatusError(fn, clapi.Status(status)))
}

// Name implements clapi.Backend.
func (b *Backend) Name() string { return BackendName }

// Description implements clapi.Backend.
func (b *Backend) Description() string {
	return fmt.Sprintf("OpenCL ICD loader (%s)", b.path)
}

// Path returns the path of the loaded library.
func (b *Backend) Path() string { return b.path }

// getHandles runs the usual two-step OpenCL query: first the count, then the values.
func getHandles(fn string, query func(n C.cl_uint, ids *C.cl_handle, num *C.cl_uint) C.cl_int) ([]clapi.Handle, error) {
	var num C.cl_uint
	if status := query(0, nil, &num); status != 0 {
		return nil, statusError(fn, status)
	}
	if num == 0 {
		return []clapi.Handle{}, nil
	}
	ids := (*C.cl_handle)(C.calloc(C.size_t(num), C.size_t(unsafe.Sizeof(C.cl_handle(nil)))))
	defer C.free(unsafe.Pointer(ids))
	if status := query(num, ids, nil); status != 0 {
		return nil, statusError(fn, status)
	}
	handles := make([]clapi.Handle, int(num))
	for ii, h := range unsafe.Slice(ids, int(num)) {
		handles[ii] = fromCHandle(h)
	}
	return handles, nil
}

// PlatformIDs implements clapi.Backend.
func (b *Backend) PlatformIDs() ([]clapi.Handle, error) {
	fn := b.fn("clGetPlatformIDs")
	handles, err := getHandles("clGetPlatformIDs", func(n C.cl_uint, ids *C.cl_handle, num *C.cl_uint) C.cl_int {
		return C.ocl_get_platform_ids(fn, n, ids, num)
	})
	if err == nil && len(handles) == 0 {
		err = statusError("clGetPlatformIDs", C.cl_int(clapi.PlatformNotFoundKHR))
	}
	return handles, err
}

// infoBytes queries a clGet*Info parameter of variable size.
func (b *Backend) infoBytes(fnName string, h clapi.Handle, param C.cl_uint) ([]byte, error) {
	fn := b.fn(fnName)
	var size C.size_t
	if status := C.ocl_get_info(fn, toCHandle(h), param, 0, nil, &size); status != 0 {
		return nil, statusError(fnName, status)
	}
	if size == 0 {
		return nil, nil
	}
	buf := C.malloc(size)
	defer C.free(buf)
	if status := C.ocl_get_info(fn, toCHandle(h), param, size, buf, nil); status != 0 {
		return nil, statusError(fnName, status)
	}
	return C.GoBytes(buf, C.int(size)), nil
}

func (b *Backend) infoString(fnName string, h clapi.Handle, param C.cl_uint) (string, error) {
	data, err := b.infoBytes(fnName, h, param)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\x00 "), nil
}

// infoScalar queries a fixed size clGet*Info parameter.
func infoScalar[T any](b *Backend, fnName string, h clapi.Handle, param C.cl_uint) (T, error) {
	var value T
	status := C.ocl_get_info(b.fn(fnName), toCHandle(h), param, C.size_t(unsafe.Sizeof(value)), unsafe.Pointer(&value), nil)
	return value, statusError(fnName, status)
}

// PlatformInfo implements clapi.Backend.
func (b *Backend) PlatformInfo(h clapi.Handle) (info clapi.PlatformInfo, err error) {
	const fn = "clGetPlatformInfo"
	for _, field := range []struct {
		param C.cl_uint
		value *string
	}{
		{platformName, &info.Name},
		{platformVendor, &info.Vendor},
		{platformVersion, &info.Version},
		{platformProfile, &info.Profile},
		{platformExtensions, &info.Extensions},
	} {
		*field.value, err = b.infoString(fn, h, field.param)
		if err != nil {
			return clapi.PlatformInfo{}, err
		}
	}
	return
}

// DeviceIDs implements clapi.Backend. CL_DEVICE_NOT_FOUND is converted to an empty list.
func (b *Backend) DeviceIDs(platform clapi.Handle, t clapi.DeviceType) ([]clapi.Handle, error) {
	fn := b.fn("clGetDeviceIDs")
	handles, err := getHandles("clGetDeviceIDs", func(n C.cl_uint, ids *C.cl_handle, num *C.cl_uint) C.cl_int {
		return C.ocl_get_device_ids(fn, toCHandle(platform), C.cl_ulong(t), n, ids, num)
	})
	var statusErr *clapi.StatusError
	if errors.As(err, &statusErr) && statusErr.Status == clapi.DeviceNotFound {
		return []clapi.Handle{}, nil
	}
	return handles, err
}

// DeviceInfo implements clapi.Backend.
func (b *Backend) DeviceInfo(h clapi.Handle) (info clapi.DeviceInfo, err error) {
	const fn = "clGetDeviceInfo"
	for _, field := range []struct {
		param C.cl_uint
		value *string
	}{
		{deviceName, &info.Name},
		{deviceVendor, &info.Vendor},
		{deviceVersion, &info.Version},
		{driverVersion, &info.DriverVersion},
		{deviceProfile, &info.Profile},
		{deviceExtensions, &info.Extensions},
	} {
		*field.value, err = b.infoString(fn, h, field.param)
		if err != nil {
			return clapi.DeviceInfo{}, err
		}
	}

	var (
		dt        C.cl_ulong
		platform  C.cl_handle
		available C.cl_uint // cl_bool
	)
	if dt, err = infoScalar[C.cl_ulong](b, fn, h, deviceType); err != nil {
		return clapi.DeviceInfo{}, err
	}
	info.Type = clapi.DeviceType(dt)
	if platform, err = infoScalar[C.cl_handle](b, fn, h, devicePlatform); err != nil {
		return clapi.DeviceInfo{}, err
	}
	info.Platform = fromCHandle(platform)
	if available, err = infoScalar[C.cl_uint](b, fn, h, deviceAvailable); err != nil {
		return clapi.DeviceInfo{}, err
	}
	info.Available = available != 0

	// The numeric limits are informative: failures are logged but don't invalidate the device.
	logFailure := func(param string, err error) {
		if err != nil {
			klog.Warningf("failed to query %s of device %s: %v", param, h, err)
		}
	}
	units, err := infoScalar[C.cl_uint](b, fn, h, deviceMaxComputeUnits)
	logFailure("CL_DEVICE_MAX_COMPUTE_UNITS", err)
	clock, err := infoScalar[C.cl_uint](b, fn, h, deviceMaxClockFrequency)
	logFailure("CL_DEVICE_MAX_CLOCK_FREQUENCY", err)
	workGroup, err := infoScalar[C.size_t](b, fn, h, deviceMaxWorkGroupSize)
	logFailure("CL_DEVICE_MAX_WORK_GROUP_SIZE", err)
	globalMem, err := infoScalar[C.cl_ulong](b, fn, h, deviceGlobalMemSize)
	logFailure("CL_DEVICE_GLOBAL_MEM_SIZE", err)
	localMem, err := infoScalar[C.cl_ulong](b, fn, h, deviceLocalMemSize)
	logFailure("CL_DEVICE_LOCAL_MEM_SIZE", err)
	maxAlloc, err := infoScalar[C.cl_ulong](b, fn, h, deviceMaxMemAllocSize)
	logFailure("CL_DEVICE_MAX_MEM_ALLOC_SIZE", err)
	info.MaxComputeUnits = uint32(units)
	info.MaxClockFrequency = uint32(clock)
	info.MaxWorkGroupSize = uint64(workGroup)
	info.GlobalMemSize = uint64(globalMem)
	info.LocalMemSize = uint64(localMem)
	info.MaxMemAllocSize = uint64(maxAlloc)
	return info, nil
}

// CreateContext implements clapi.Backend.
func (b *Backend) CreateContext(platform clapi.Handle, devices []clapi.Handle) (clapi.Handle, error) {
	const fn = "clCreateContext"
	if len(devices) == 0 {
		return 0, statusError(fn, C.cl_int(clapi.InvalidValue))
	}
	cDevices := (*C.cl_handle)(C.calloc(C.size_t(len(devices)), C.size_t(unsafe.Sizeof(C.cl_handle(nil)))))
	defer C.free(unsafe.Pointer(cDevices))
	for ii, d := range devices {
		unsafe.Slice(cDevices, len(devices))[ii] = toCHandle(d)
	}
	var status C.cl_int
	ctx := C.ocl_create_context(b.fn(fn), toCHandle(platform), C.cl_uint(len(devices)), cDevices, &status)
	if status != 0 {
		return 0, statusError(fn, status)
	}
	klog.V(2).Infof("clCreateContext: %s", fromCHandle(ctx))
	return fromCHandle(ctx), nil
}

// ContextDevices implements clapi.Backend.
func (b *Backend) ContextDevices(context clapi.Handle) ([]clapi.Handle, error) {
	const fn = "clGetContextInfo"
	data, err := b.infoBytes(fn, context, contextDevices)
	if err != nil {
		return nil, err
	}
	handleSize := int(unsafe.Sizeof(uintptr(0)))
	devices := make([]clapi.Handle, len(data)/handleSize)
	for ii := range devices {
		devices[ii] = *(*clapi.Handle)(unsafe.Pointer(&data[ii*handleSize]))
	}
	return devices, nil
}

// ReleaseContext implements clapi.Backend.
func (b *Backend) ReleaseContext(context clapi.Handle) error {
	const fn = "clReleaseContext"
	klog.V(2).Infof("clReleaseContext: %s", context)
	return statusError(fn, C.ocl_call_handle(b.fn(fn), toCHandle(context)))
}

// CreateQueue implements clapi.Backend.
func (b *Backend) CreateQueue(context, device clapi.Handle) (clapi.Handle, error) {
	const fn = "clCreateCommandQueue"
	var status C.cl_int
	q := C.ocl_create_queue(b.fn(fn), toCHandle(context), toCHandle(device), &status)
	if status != 0 {
		return 0, statusError(fn, status)
	}
	return fromCHandle(q), nil
}

// QueueInfo implements clapi.Backend.
func (b *Backend) QueueInfo(queue clapi.Handle) (context, device clapi.Handle, err error) {
	const fn = "clGetCommandQueueInfo"
	ctx, err := infoScalar[C.cl_handle](b, fn, queue, queueContext)
	if err != nil {
		return 0, 0, err
	}
	dev, err := infoScalar[C.cl_handle](b, fn, queue, queueDevice)
	if err != nil {
		return 0, 0, err
	}
	return fromCHandle(ctx), fromCHandle(dev), nil
}

// Finish implements clapi.Backend.
func (b *Backend) Finish(queue clapi.Handle) error {
	const fn = "clFinish"
	return statusError(fn, C.ocl_call_handle(b.fn(fn), toCHandle(queue)))
}

// ReleaseQueue implements clapi.Backend.
func (b *Backend) ReleaseQueue(queue clapi.Handle) error {
	const fn = "clReleaseCommandQueue"
	return statusError(fn, C.ocl_call_handle(b.fn(fn), toCHandle(queue)))
}
