//go:build !linux || !cgo

package opencl

import (
	"runtime"

	"github.com/gomlx/govcl/clapi"
	"github.com/pkg/errors"
)

// Backend is not available on this platform: New always fails.
type Backend struct {
	clapi.Backend
}

// New fails with a CL_PLATFORM_NOT_FOUND_KHR status: the OpenCL backend requires linux and cgo.
func New(library string) (*Backend, error) {
	return nil, errors.Wrapf(clapi.NewStatusError("dlopen", clapi.PlatformNotFoundKHR),
		"OpenCL backend not available for %s/%s (or built without cgo), can't load %q",
		runtime.GOOS, runtime.GOARCH, library)
}
