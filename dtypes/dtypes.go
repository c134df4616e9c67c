// Package dtypes lists the element types that can be handed to a device, and the device extension each one
// requires.
//
// It also includes converters to/from the Go native types, and the Supported constraint to be used with generics.
package dtypes

import (
	"maps"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DType is the element type of the host data transferred to a device.
type DType int

//go:generate go tool enumer -type=DType -trimprefix=DType dtypes.go

const (
	InvalidDType DType = iota
	Float16
	Float32
	Float64
)

// Extensions a device must advertise to handle the corresponding floating point type.
const (
	ExtensionFP16 = "cl_khr_fp16"
	ExtensionFP64 = "cl_khr_fp64"
)

// MapOfNames maps names (and their lower-case and short versions) to DTypes.
var MapOfNames = map[string]DType{
	"InvalidDType": InvalidDType,
	"Float16":      Float16,
	"F16":          Float16,
	"Half":         Float16,
	"Float32":      Float32,
	"F32":          Float32,
	"Float":        Float32,
	"Float64":      Float64,
	"F64":          Float64,
	"Double":       Float64,
}

func init() {
	// Add a mapping to the lower-case version of dtypes.
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if _, found := MapOfNames[lowerKey]; found {
			continue
		}
		MapOfNames[lowerKey] = MapOfNames[key]
	}
}

// Supported lists the Go types that can be converted to/from device data.
type Supported interface {
	float16.Float16 | float32 | float64
}

// FromGenericsType returns the DType enum for the given type.
func FromGenericsType[T Supported]() DType {
	var t T
	switch (any(t)).(type) {
	case float64:
		return Float64
	case float32:
		return Float32
	case float16.Float16:
		return Float16
	}
	return InvalidDType
}

// Parse returns the DType for the given name, as listed in MapOfNames.
func Parse(name string) (DType, error) {
	if dtype, found := MapOfNames[name]; found {
		return dtype, nil
	}
	if dtype, found := MapOfNames[strings.ToLower(name)]; found {
		return dtype, nil
	}
	return InvalidDType, errors.Errorf("unknown dtype %q", name)
}

// Size returns the number of bytes for the given DType, or 0 for InvalidDType.
func (dtype DType) Size() int {
	switch dtype {
	case Float16:
		return 2
	case Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// RequiredExtension returns the device extension needed to handle the dtype, or "" if none is needed.
func (dtype DType) RequiredExtension() string {
	switch dtype {
	case Float16:
		return ExtensionFP16
	case Float64:
		return ExtensionFP64
	}
	return ""
}

// ToFloat64 converts a slice of any supported type to float64, the precision used on the host.
func ToFloat64[T Supported](values []T) []float64 {
	out := make([]float64, len(values))
	switch v := any(values).(type) {
	case []float64:
		copy(out, v)
	case []float32:
		for ii, x := range v {
			out[ii] = float64(x)
		}
	case []float16.Float16:
		for ii, x := range v {
			out[ii] = float64(x.Float32())
		}
	}
	return out
}

// FromFloat64 converts float64 values back to the supported type T, rounding as needed.
func FromFloat64[T Supported](values []float64) []T {
	out := make([]T, len(values))
	switch o := any(out).(type) {
	case []float64:
		copy(o, values)
	case []float32:
		for ii, x := range values {
			o[ii] = float32(x)
		}
	case []float16.Float16:
		for ii, x := range values {
			o[ii] = float16.Fromfloat32(float32(x))
		}
	}
	return out
}
