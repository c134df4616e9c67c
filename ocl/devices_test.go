package ocl

import (
	"fmt"
	"testing"

	"github.com/gomlx/govcl/clapi"
	"github.com/gomlx/govcl/dtypes"
	"github.com/stretchr/testify/require"
)

func TestDevices(t *testing.T) {
	reg := newTestRegistry(t)
	for _, p := range capture(reg.Platforms()).Test(t) {
		fmt.Printf("%s\n", p.Info())
		for _, d := range capture(p.Devices()).Test(t) {
			fmt.Printf("\t%s\n", d.Info())
			require.NotEmpty(t, d.Name())
			require.True(t, d.Supports(dtypes.Float32))
			require.Equal(t, d.DoubleSupport(), d.Supports(dtypes.Float64))
		}
	}
}

func TestSimDevices(t *testing.T) {
	reg, _ := newSimRegistry(t)
	cpu, gpu, npu := simDevices(t, reg)

	require.Equal(t, "sim-cpu", cpu.Name())
	require.Equal(t, "govcl", cpu.Vendor())
	require.Equal(t, "OpenCL 1.2", cpu.Version())
	require.Equal(t, "1.0", cpu.DriverVersion())
	require.True(t, cpu.Type().Matches(clapi.DeviceTypeCPU))
	require.True(t, cpu.Type().Matches(clapi.DeviceTypeDefault))
	require.False(t, gpu.Type().Matches(clapi.DeviceTypeDefault))
	require.True(t, cpu.IsAvailable())
	require.Equal(t, uint32(8), cpu.MaxComputeUnits())
	require.Equal(t, uint64(16<<30), cpu.GlobalMemSize())

	require.True(t, cpu.DoubleSupport())
	require.False(t, cpu.HalfSupport())
	require.False(t, gpu.DoubleSupport())
	require.True(t, npu.HalfSupport())
	require.True(t, npu.Supports(dtypes.Float16))
	require.False(t, npu.Supports(dtypes.Float64))
	require.False(t, npu.Supports(dtypes.InvalidDType))
	require.True(t, cpu.HasExtension("cl_khr_byte_addressable_store"))
	require.Len(t, cpu.Extensions(), 3)

	require.Equal(t, "sim-cpu [CPU] (govcl, OpenCL 1.2)", cpu.Info())
	fullInfo := cpu.FullInfo("  ")
	fmt.Print(fullInfo)
	require.Contains(t, fullInfo, "16 GiB")
	require.Contains(t, fullInfo, "2400 MHz")
	require.Contains(t, fullInfo, "  Type:")
	require.Contains(t, fullInfo, "Double Support:        true")

	gpus := capture(capture(reg.Platforms()).Test(t)[0].DevicesOfType(clapi.DeviceTypeGPU)).Test(t)
	require.Len(t, gpus, 1)
	require.Equal(t, gpu.Handle(), gpus[0].Handle())
}
