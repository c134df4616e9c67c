package sim

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/govcl/clapi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func requireStatus(t *testing.T, err error, status clapi.Status) {
	t.Helper()
	var statusErr *clapi.StatusError
	require.Truef(t, errors.As(err, &statusErr), "expected a *clapi.StatusError, got %v", err)
	require.Equal(t, status, statusErr.Status)
}

func TestDefaultCatalog(t *testing.T) {
	b := New(DefaultConfig())
	platforms, err := b.PlatformIDs()
	require.NoError(t, err)
	require.Len(t, platforms, 2)

	info, err := b.PlatformInfo(platforms[0])
	require.NoError(t, err)
	require.Equal(t, "Simulated OpenCL", info.Name)

	all, err := b.DeviceIDs(platforms[0], clapi.DeviceTypeAll)
	require.NoError(t, err)
	require.Len(t, all, 2)
	gpus, err := b.DeviceIDs(platforms[0], clapi.DeviceTypeGPU)
	require.NoError(t, err)
	require.Len(t, gpus, 1)
	defaults, err := b.DeviceIDs(platforms[0], clapi.DeviceTypeDefault)
	require.NoError(t, err)
	require.Equal(t, all[:1], defaults)
	accelerators, err := b.DeviceIDs(platforms[0], clapi.DeviceTypeAccelerator)
	require.NoError(t, err)
	require.Empty(t, accelerators)

	dInfo, err := b.DeviceInfo(all[0])
	require.NoError(t, err)
	require.Equal(t, "sim-cpu", dInfo.Name)
	require.Equal(t, platforms[0], dInfo.Platform)
	require.True(t, dInfo.Type.Matches(clapi.DeviceTypeCPU))
	require.True(t, dInfo.Available)

	_, err = b.DeviceInfo(12345)
	requireStatus(t, err, clapi.InvalidDevice)
}

func TestContextAndQueueLifecycle(t *testing.T) {
	b := New(DefaultConfig())
	platforms, _ := b.PlatformIDs()
	devices, _ := b.DeviceIDs(platforms[0], clapi.DeviceTypeAll)
	otherDevices, _ := b.DeviceIDs(platforms[1], clapi.DeviceTypeAll)

	_, err := b.CreateContext(platforms[0], otherDevices)
	requireStatus(t, err, clapi.InvalidDevice)
	_, err = b.CreateContext(platforms[0], nil)
	requireStatus(t, err, clapi.InvalidValue)

	ctx, err := b.CreateContext(platforms[0], devices)
	require.NoError(t, err)
	ctxDevices, err := b.ContextDevices(ctx)
	require.NoError(t, err)
	require.Equal(t, devices, ctxDevices)

	q, err := b.CreateQueue(ctx, devices[1])
	require.NoError(t, err)
	_, err = b.CreateQueue(ctx, otherDevices[0])
	requireStatus(t, err, clapi.InvalidDevice)
	qCtx, qDev, err := b.QueueInfo(q)
	require.NoError(t, err)
	require.Equal(t, ctx, qCtx)
	require.Equal(t, devices[1], qDev)
	require.NoError(t, b.Finish(q))

	// Releasing the context keeps the queue usable until it's released.
	require.NoError(t, b.ReleaseContext(ctx))
	requireStatus(t, b.ReleaseContext(ctx), clapi.InvalidContext)
	_, err = b.ContextDevices(ctx)
	requireStatus(t, err, clapi.InvalidContext)
	require.NoError(t, b.Finish(q))
	require.NoError(t, b.ReleaseQueue(q))
	requireStatus(t, b.ReleaseQueue(q), clapi.InvalidCommandQueue)

	stats := b.Stats()
	require.Equal(t, Stats{ContextsCreated: 1, ContextsReleased: 1, QueuesCreated: 1, QueuesReleased: 1, Finishes: 2}, stats)
}

func TestLimitsAndFaults(t *testing.T) {
	config := DefaultConfig()
	config.Limits = LimitsConfig{MaxContexts: 1, MaxQueuesPerDevice: 1}
	b := New(config)
	platforms, _ := b.PlatformIDs()
	devices, _ := b.DeviceIDs(platforms[0], clapi.DeviceTypeCPU)

	ctx, err := b.CreateContext(platforms[0], devices)
	require.NoError(t, err)
	_, err = b.CreateContext(platforms[0], devices)
	requireStatus(t, err, clapi.OutOfResources)

	_, err = b.CreateQueue(ctx, devices[0])
	require.NoError(t, err)
	_, err = b.CreateQueue(ctx, devices[0])
	requireStatus(t, err, clapi.OutOfResources)

	b.FailNext("clGetPlatformIDs", clapi.OutOfHostMemory)
	_, err = b.PlatformIDs()
	requireStatus(t, err, clapi.OutOfHostMemory)
	_, err = b.PlatformIDs() // Faults only happen once.
	require.NoError(t, err)

	require.NoError(t, b.Close())
	_, err = b.PlatformIDs()
	requireStatus(t, err, clapi.PlatformNotFoundKHR)
}

func TestEmptyCatalog(t *testing.T) {
	b := New(&Config{})
	_, err := b.PlatformIDs()
	requireStatus(t, err, clapi.PlatformNotFoundKHR)
}

func TestConfigFile(t *testing.T) {
	config, err := ParseConfig([]byte(`
platforms:
  - name: Test
    devices:
      - name: dev0
        type: gpu
      - name: dev1
        type: cpu
        default: true
        unavailable: true
limits:
  max_contexts: 3
`))
	require.NoError(t, err)
	require.Len(t, config.Platforms, 1)
	require.Equal(t, 3, config.Limits.MaxContexts)

	filePath := filepath.Join(t.TempDir(), "platforms.yaml")
	require.NoError(t, config.Save(filePath))
	loaded, err := LoadConfig(filePath)
	require.NoError(t, err)
	require.Equal(t, config, loaded)

	backend, err := clapi.NewWithConfig(BackendName + ":" + filePath)
	require.NoError(t, err)
	b := backend.(*Backend)
	platforms, _ := b.PlatformIDs()
	defaults, _ := b.DeviceIDs(platforms[0], clapi.DeviceTypeDefault)
	require.Len(t, defaults, 1)
	info, _ := b.DeviceInfo(defaults[0])
	require.Equal(t, "dev1", info.Name)
	require.False(t, info.Available)

	// Unavailable devices can't be used in a context.
	_, err = b.CreateContext(platforms[0], defaults)
	requireStatus(t, err, clapi.InvalidDevice)

	_, err = ParseConfig([]byte("platforms: [{name: x, devices: [{name: y, type: fpga}]}]"))
	require.ErrorContains(t, err, "fpga")
}

func TestSolve(t *testing.T) {
	b := New(DefaultConfig())
	platforms, _ := b.PlatformIDs()
	devices, _ := b.DeviceIDs(platforms[0], clapi.DeviceTypeCPU)
	ctx, err := b.CreateContext(platforms[0], devices)
	require.NoError(t, err)
	q, err := b.CreateQueue(ctx, devices[0])
	require.NoError(t, err)

	// Upper triangular: [[2, 1], [0, 4]] * x = [4, 8] -> x = [1, 2]
	req := &clapi.SolveRequest{Op: clapi.OpSolve, Tag: clapi.TagUpper, N: 2,
		A: []float64{2, 1, 99, 4}, B: []float64{4, 8}, NRHS: 1}
	x, err := b.Solve(q, req)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, 2}, x, 1e-12)
	require.Equal(t, []float64{4, 8}, req.B, "request must not be modified")

	// Unit lower: diagonal is ignored; [[1, 0], [3, 1]] * x = [1, 5] -> x = [1, 2]
	x, err = b.Solve(q, &clapi.SolveRequest{Tag: clapi.TagUnitLower, N: 2,
		A: []float64{7, 99, 3, 7}, B: []float64{1, 5}, NRHS: 1})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, 2}, x, 1e-12)

	// Iterative tag on a symmetric positive definite system.
	x, err = b.Solve(q, &clapi.SolveRequest{Op: clapi.OpSolvePrecond, Tag: clapi.TagCG, Precond: clapi.PrecondJacobi,
		N: 2, A: []float64{4, 1, 1, 3}, B: []float64{1, 2}, NRHS: 1})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1.0 / 11, 7.0 / 11}, x, 1e-12)

	_, err = b.Solve(q, &clapi.SolveRequest{Tag: clapi.TagCG, N: 2,
		A: []float64{4, 1, 1, 3}, B: []float64{1, 2, 3, 4}, NRHS: 2})
	requireStatus(t, err, clapi.InvalidValue)

	_, err = b.Solve(q, &clapi.SolveRequest{Tag: clapi.TagUpper, N: 2,
		A: []float64{0, 1, 0, 0}, B: []float64{1, 1}, NRHS: 1})
	requireStatus(t, err, clapi.InvalidValue)

	require.NoError(t, b.ReleaseQueue(q))
	_, err = b.Solve(q, req)
	requireStatus(t, err, clapi.InvalidCommandQueue)
	require.Equal(t, 3, b.Stats().Solves)
}
