package main

import (
	"bytes"
	"testing"

	"github.com/gomlx/govcl/clapi"
	"github.com/gomlx/govcl/clapi/sim"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// run executes oclinfo with the simulated backend and returns its output.
func run(t *testing.T, args ...string) string {
	t.Helper()
	rootCmd := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--backend", sim.BackendName}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestPlatforms(t *testing.T) {
	out := run(t, "platforms")
	require.Contains(t, out, "Simulated OpenCL")
	require.Contains(t, out, "Embedded OpenCL")
	require.Contains(t, out, "EMBEDDED_PROFILE")
}

func TestDevices(t *testing.T) {
	out := run(t, "devices")
	require.Contains(t, out, "sim-cpu")
	require.Contains(t, out, "sim-npu")
	require.Contains(t, out, "16 GiB")
	require.Contains(t, out, "2400 MHz")

	out = run(t, "devices", "--platform", "1", "--full")
	require.NotContains(t, out, "sim-cpu")
	require.Contains(t, out, "sim-npu")
	require.Contains(t, out, "Half Support:          true")

	rootCmd := newRootCmd()
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--backend", sim.BackendName, "devices", "--platform", "7"})
	require.ErrorContains(t, rootCmd.Execute(), "--platform=7")
}

func TestContext(t *testing.T) {
	out := run(t, "context", "--device-type", "gpu")
	require.Contains(t, out, "sim-gpu [GPU]")
	require.NotContains(t, out, "sim-cpu")
	require.Contains(t, out, "current queue")
}

func TestSolve(t *testing.T) {
	out := run(t, "solve", "--dtype", "float64", "--n", "5")
	require.Contains(t, out, "Matrix[5x5](Float64)")
	require.Contains(t, out, "sim-cpu")

	// The default device of the simulated platform has no fp16 support.
	rootCmd := newRootCmd()
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--backend", sim.BackendName, "solve", "--dtype", "float16"})
	require.Error(t, rootCmd.Execute())
}

func TestUpperSystem(t *testing.T) {
	a, b := upperSystem(3)
	require.Equal(t, []float64{3, 0.5, 1.0 / 3, 0, 3, 0.5, 0, 0, 3}, a)
	require.InDeltaSlice(t, []float64{3 + 1 + 1, 6 + 1.5, 9}, b, 1e-12)
}

func TestFallbackToSim(t *testing.T) {
	// A backend that loads but has no platforms, like an ICD loader without vendor drivers.
	empty := sim.New(&sim.Config{})
	backend, err := fallbackToSim(empty, nil)
	require.NoError(t, err)
	require.False(t, backend == clapi.Backend(empty))
	require.Equal(t, sim.BackendName, backend.Name())
	platforms, err := backend.PlatformIDs()
	require.NoError(t, err)
	require.Len(t, platforms, 2)
	require.NoError(t, backend.Close())

	// A backend that failed to load.
	backend, err = fallbackToSim(nil, errors.New("libOpenCL.so not found"))
	require.NoError(t, err)
	require.Equal(t, sim.BackendName, backend.Name())
	require.NoError(t, backend.Close())

	// A usable backend is kept.
	usable := sim.New(sim.DefaultConfig())
	backend, err = fallbackToSim(usable, nil)
	require.NoError(t, err)
	require.True(t, backend == clapi.Backend(usable))
	require.NoError(t, usable.Close())

	// An explicitly configured backend is never replaced.
	flagBackend = ""
	t.Setenv(clapi.BackendEnv, sim.BackendName+":"+t.TempDir()+"/missing.yaml")
	_, err = newBackend()
	require.Error(t, err)
}
