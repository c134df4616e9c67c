package sim

import (
	_ "embed"
	"os"
	"strings"

	"github.com/gomlx/govcl/clapi"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfigYAML []byte

// Config describes the simulated platforms and devices, and the resource limits of the simulation.
type Config struct {
	Platforms []PlatformConfig `yaml:"platforms"`
	Limits    LimitsConfig     `yaml:"limits"`
}

// PlatformConfig describes one simulated platform.
type PlatformConfig struct {
	Name       string         `yaml:"name"`
	Vendor     string         `yaml:"vendor"`
	Version    string         `yaml:"version"`
	Profile    string         `yaml:"profile"`
	Extensions string         `yaml:"extensions"`
	Devices    []DeviceConfig `yaml:"devices"`
}

// DeviceConfig describes one simulated device.
type DeviceConfig struct {
	Name          string `yaml:"name"`
	Vendor        string `yaml:"vendor"`
	Version       string `yaml:"version"`
	DriverVersion string `yaml:"driver_version"`
	Profile       string `yaml:"profile"`

	// Type is one of "cpu", "gpu", "accelerator" or "custom".
	Type       string `yaml:"type"`
	Extensions string `yaml:"extensions"`

	// Default marks the device returned when querying for the default device type.
	// If no device of a platform is marked, the first one is the default.
	Default bool `yaml:"default"`

	ComputeUnits     uint32 `yaml:"compute_units"`
	ClockMHz         uint32 `yaml:"clock_mhz"`
	MaxWorkGroupSize uint64 `yaml:"max_work_group_size"`
	GlobalMemSize    uint64 `yaml:"global_mem_size"`
	LocalMemSize     uint64 `yaml:"local_mem_size"`
	MaxMemAllocSize  uint64 `yaml:"max_mem_alloc_size"`

	// Unavailable marks a device as present but not available (CL_DEVICE_AVAILABLE=false).
	Unavailable bool `yaml:"unavailable"`
}

// LimitsConfig bounds the number of native objects that can be allocated: exceeding them fails
// with CL_OUT_OF_RESOURCES. Zero means unlimited.
type LimitsConfig struct {
	MaxContexts        int `yaml:"max_contexts"`
	MaxQueuesPerDevice int `yaml:"max_queues_per_device"`
}

// DefaultConfig returns the built-in catalog: a "Simulated OpenCL" platform with an fp64 capable CPU
// and a GPU without fp64, and an "Embedded OpenCL" platform with an fp16 only accelerator.
func DefaultConfig() *Config {
	config, err := ParseConfig(defaultConfigYAML)
	if err != nil {
		// The embedded configuration is part of the binary.
		panic(errors.WithMessage(err, "embedded default.yaml is invalid"))
	}
	return config
}

// ParseConfig parses a YAML catalog.
func ParseConfig(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse simulated backend configuration")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig reads and parses a YAML catalog file.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read simulated backend configuration %q", filePath)
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "configuration file %q", filePath)
	}
	return config, nil
}

// Validate checks the device types and limits.
func (c *Config) Validate() error {
	for pIdx, p := range c.Platforms {
		for dIdx, d := range p.Devices {
			if _, err := parseDeviceType(d.Type); err != nil {
				return errors.WithMessagef(err, "platform #%d (%q), device #%d (%q)", pIdx, p.Name, dIdx, d.Name)
			}
		}
	}
	if c.Limits.MaxContexts < 0 || c.Limits.MaxQueuesPerDevice < 0 {
		return errors.Errorf("limits can't be negative, got %+v", c.Limits)
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(filePath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal simulated backend configuration")
	}
	return errors.Wrapf(os.WriteFile(filePath, data, 0644), "failed to write %q", filePath)
}

func parseDeviceType(name string) (clapi.DeviceType, error) {
	switch strings.ToLower(name) {
	case "cpu":
		return clapi.DeviceTypeCPU, nil
	case "gpu", "":
		return clapi.DeviceTypeGPU, nil
	case "accelerator":
		return clapi.DeviceTypeAccelerator, nil
	case "custom":
		return clapi.DeviceTypeCustom, nil
	}
	return 0, errors.Errorf("unknown device type %q, valid values are cpu, gpu, accelerator or custom", name)
}
