// Package opencl implements clapi.Backend on top of the system's OpenCL ICD loader (libOpenCL.so),
// loaded at runtime with dlopen: no OpenCL headers or link-time dependency are needed to build it.
//
// It registers itself as the "opencl" backend. The configuration string, if given, is the path
// (or file name) of the library to load.
//
// The library is searched in the directories listed in OCL_LIBRARY_PATH (a ":" separated list) or, if
// it is not set, in "~/.local/lib", "/usr/local/lib" and the standard library directories of the system
// (LD_LIBRARY_PATH and /etc/ld.so.conf).
package opencl

import (
	"github.com/gomlx/govcl/clapi"
	"github.com/gomlx/govcl/internal/ldpaths"
)

const (
	// BackendName is the name under which the OpenCL backend is registered.
	BackendName = "opencl"

	// LibraryPathsEnv is the name of the environment variable that define the search paths for the library.
	LibraryPathsEnv = "OCL_LIBRARY_PATH"

	// LibraryEnv overrides the name (or absolute path) of the library to load.
	LibraryEnv = "OCL_LIBRARY"
)

// LibraryNames are the file names tried, in order, in each of the search paths.
var LibraryNames = []string{"libOpenCL.so.1", "libOpenCL.so"}

func init() {
	clapi.Register(BackendName, func(config string) (clapi.Backend, error) {
		return New(config)
	})
}

// searchPaths returns the directories where to search for the library.
func searchPaths() []string {
	if paths, found := ldpaths.FromEnv(LibraryPathsEnv); found {
		return paths
	}
	return ldpaths.DefaultPaths()
}
