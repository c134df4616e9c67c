package clapi

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

// BackendEnv is the environment variable with the default backend configuration to use.
//
// The format is "<backend_name>[:<backend_configuration>]", e.g. "opencl" or "sim:/path/to/platforms.yaml".
const BackendEnv = "GOVCL_BACKEND"

// DefaultConfig is the backend configuration used by New if BackendEnv is not set.
var DefaultConfig string

var (
	// registeredConstructors maps backend names to their constructors. Protected by muRegistered.
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
	muRegistered           sync.Mutex
)

// Register backend with the given name.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muRegistered.Lock()
	defer muRegistered.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// Registered returns the sorted names of the registered backends.
func Registered() []string {
	muRegistered.Lock()
	defer muRegistered.Unlock()
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New returns a new default Backend.
//
// The default is:
//
//  1. The environment variable GOVCL_BACKEND is used as a configuration if defined.
//  2. Next the variable DefaultConfig is used as a configuration if defined.
//  3. The first registered backend is used with an empty configuration.
func New() (Backend, error) {
	if config, found := os.LookupEnv(BackendEnv); found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig creates a backend from a configuration formatted as "<backend_name>[:<backend_configuration>]".
// If the backend name is empty, the first registered backend is used.
func NewWithConfig(config string) (Backend, error) {
	muRegistered.Lock()
	if len(registeredConstructors) == 0 {
		muRegistered.Unlock()
		return nil, errors.New(`no registered compute backends -- maybe import one, e.g. _ "github.com/gomlx/govcl/clapi/opencl"?`)
	}
	backendName := firstRegistered
	backendConfig := ""
	if config != "" {
		backendName = config
		if idx := strings.Index(config, ":"); idx != -1 {
			backendName = config[:idx]
			backendConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[backendName]
	muRegistered.Unlock()
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given, registered backends: %v",
			backendName, config, Registered())
	}
	klog.V(1).Infof("creating backend %q (config %q)", backendName, backendConfig)
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create backend %q", backendName)
	}
	return backend, nil
}
