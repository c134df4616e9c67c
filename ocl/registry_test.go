package ocl

import (
	"testing"

	"github.com/gomlx/govcl/clapi"
	"github.com/gomlx/govcl/clapi/sim"
	"github.com/stretchr/testify/require"
)

func TestEnumeratePlatforms(t *testing.T) {
	reg := newTestRegistry(t)
	platforms := capture(reg.Platforms()).Test(t)
	require.NotEmpty(t, platforms)
	again := capture(reg.RefreshPlatforms()).Test(t)
	require.Len(t, again, len(platforms))

	infos := func(platforms []*Platform) map[string]int {
		m := make(map[string]int)
		for _, p := range platforms {
			m[p.Info()]++
		}
		return m
	}
	require.Equal(t, infos(platforms), infos(again))

	for _, p := range again {
		devices := capture(p.Devices()).Test(t)
		for _, d := range devices {
			require.Equal(t, p.Handle(), d.PlatformHandle())
		}
	}
}

func TestBackendUnavailable(t *testing.T) {
	reg, _ := newSimRegistryWithConfig(t, &sim.Config{})
	_, err := reg.Platforms()
	requireKind(t, err, BackendUnavailable)
	_, err = reg.CurrentContext()
	requireKind(t, err, BackendUnavailable)
	_, err = reg.CurrentDevice()
	requireKind(t, err, BackendUnavailable)
}

func TestPlatformWithoutDevices(t *testing.T) {
	config := sim.DefaultConfig()
	config.Platforms = append(config.Platforms, sim.PlatformConfig{Name: "Empty"})
	reg, _ := newSimRegistryWithConfig(t, config)
	platforms := capture(reg.Platforms()).Test(t)
	require.Len(t, platforms, 3)
	require.Equal(t, "Empty", platforms[2].Name())
	devices, err := platforms[2].Devices()
	require.NoError(t, err)
	require.Empty(t, devices)

	// A context on a platform without devices can't be initialized.
	ctx := reg.NewContext()
	require.NoError(t, ctx.SetPlatformIndex(2))
	requireKind(t, ctx.InitNew(), DeviceNotCompatible)
	require.False(t, ctx.IsInitialized())
}

func TestAdoptPlatformAndDevice(t *testing.T) {
	reg := newTestRegistry(t)
	platforms := capture(reg.Platforms()).Test(t)
	for _, p := range platforms {
		adopted := capture(reg.AdoptPlatform(p.Handle())).Test(t)
		require.Equal(t, p.Handle(), adopted.Handle())
		require.Equal(t, p.Info(), adopted.Info())

		for _, d := range capture(p.Devices()).Test(t) {
			adoptedDevice := capture(reg.AdoptDevice(d.Handle())).Test(t)
			require.Equal(t, d.Handle(), adoptedDevice.Handle())
			require.Equal(t, d.Name(), adoptedDevice.Name())
		}
	}

	_, err := reg.AdoptPlatform(0)
	requireKind(t, err, InvalidHandle)
	_, err = reg.AdoptDevice(0)
	requireKind(t, err, InvalidHandle)
}

func TestAdoptUnknownHandles(t *testing.T) {
	reg, _ := newSimRegistry(t)
	_, err := reg.AdoptPlatform(0x1234)
	requireKind(t, err, InvalidHandle)
	_, err = reg.AdoptDevice(0x1234)
	requireKind(t, err, InvalidHandle)
	_, err = reg.ContextFromHandle(0x1234)
	requireKind(t, err, InvalidHandle)
	_, err = reg.ContextFromHandle(0)
	requireKind(t, err, InvalidHandle)
}

func TestCurrentContextFailure(t *testing.T) {
	reg, backend := newSimRegistry(t)
	cpu, _, _ := simDevices(t, reg)

	// A failed lazy initialization leaves nothing registered.
	backend.FailNext("clCreateContext", clapi.OutOfHostMemory)
	_, err := reg.CurrentContext()
	requireKind(t, err, ResourceExhausted)
	require.Empty(t, reg.ContextIDs())
	_, found := reg.Context(0)
	require.False(t, found)
	require.Zero(t, backend.Stats().ContextsCreated)

	// The next access retries.
	ctx := capture(reg.CurrentContext()).Test(t)
	require.Equal(t, []int64{0}, reg.ContextIDs())
	require.Equal(t, cpu.Handle(), capture(ctx.CurrentDevice()).Test(t).Handle())

	// A configured context that fails to initialize stays registered, with its configuration.
	require.NoError(t, reg.SetupContext(3, cpu))
	reg.SwitchContextID(3)
	backend.FailNext("clCreateContext", clapi.OutOfResources)
	_, err = reg.CurrentContext()
	requireKind(t, err, ResourceExhausted)
	configured, found := reg.Context(3)
	require.True(t, found)
	require.False(t, configured.IsInitialized())
	require.Equal(t, []clapi.Handle{cpu.Handle()}, handlesOf(configured.Devices()))
}

func TestCurrentContext(t *testing.T) {
	reg, backend := newSimRegistry(t)
	cpu, gpu, npu := simDevices(t, reg)

	// The context id 0 is created and initialized on first use, with the default device.
	ctx0 := capture(reg.CurrentContext()).Test(t)
	require.True(t, ctx0.IsInitialized())
	require.True(t, ctx0.IsOwned())
	require.Equal(t, []int64{0}, reg.ContextIDs())
	require.Equal(t, cpu.Handle(), capture(reg.CurrentDevice()).Test(t).Handle())
	require.Same(t, ctx0, capture(reg.CurrentContext()).Test(t))
	require.Equal(t, 1, backend.Stats().ContextsCreated)

	// Switching to another context.
	other := reg.NewContext()
	require.NoError(t, other.AddDevice(gpu))
	require.NoError(t, other.InitNew())
	require.NoError(t, reg.SwitchContext(other))
	current := capture(reg.CurrentContext()).Test(t)
	require.True(t, current.Equal(other))
	require.Same(t, other, current)
	require.Equal(t, []int64{0, 1}, reg.ContextIDs())
	require.Equal(t, int64(1), reg.CurrentContextID())
	require.Equal(t, gpu.Handle(), capture(reg.CurrentDevice()).Test(t).Handle())

	// Nothing else changed.
	require.Equal(t, cpu.Handle(), capture(ctx0.CurrentDevice()).Test(t).Handle())
	require.Equal(t, 2, backend.Stats().ContextsCreated)
	require.Zero(t, backend.Stats().ContextsReleased)

	// Switching to an already registered context doesn't register it again.
	require.NoError(t, reg.SwitchContext(ctx0))
	require.Equal(t, []int64{0, 1}, reg.ContextIDs())
	require.Same(t, ctx0, capture(reg.CurrentContext()).Test(t))

	// Switching by id.
	reg.SwitchContextID(1)
	require.Same(t, other, capture(reg.CurrentContext()).Test(t))
	requireKind(t, reg.SwitchDevice(npu), DeviceNotCompatible)
	require.NoError(t, reg.SwitchDevice(gpu))
	requireKind(t, reg.SwitchContext(nil), InvalidHandle)

	require.NoError(t, reg.Close())
	require.Zero(t, backend.Stats().LiveContexts())
	require.Zero(t, backend.Stats().LiveQueues())
	require.Empty(t, reg.ContextIDs())
}

func TestSetupContext(t *testing.T) {
	reg, _ := newSimRegistry(t)
	_, gpu, npu := simDevices(t, reg)

	require.NoError(t, reg.SetupContext(5, gpu))
	reg.SwitchContextID(5)
	require.Equal(t, gpu.Handle(), capture(reg.CurrentDevice()).Test(t).Handle())
	requireKind(t, reg.SetupContext(5, npu), AlreadyInitialized)

	// A device on another platform selects the platform of a new context.
	require.NoError(t, reg.SetupContext(6, npu))
	ctx6, found := reg.Context(6)
	require.True(t, found)
	require.Equal(t, 1, ctx6.PlatformIndex())
	require.NoError(t, ctx6.InitNew())
	require.Equal(t, npu.Handle(), capture(ctx6.CurrentDevice()).Test(t).Handle())

	requireKind(t, reg.SetupContext(7, nil), InvalidHandle)
	_, found = reg.Context(7)
	require.False(t, found)
}

func TestAddContext(t *testing.T) {
	reg, _ := newSimRegistry(t)
	ctx := reg.NewContext()
	require.NoError(t, reg.AddContext(3, ctx))
	require.NoError(t, reg.AddContext(3, ctx))
	requireKind(t, reg.AddContext(3, reg.NewContext()), AlreadyInitialized)
	got, found := reg.Context(3)
	require.True(t, found)
	require.Same(t, ctx, got)

	// SwitchContext with an unregistered context takes the next free id.
	other := reg.NewContext()
	require.NoError(t, reg.SwitchContext(other))
	require.Equal(t, int64(4), reg.CurrentContextID())
}

func TestDefaultRegistry(t *testing.T) {
	if *flagBackend != sim.BackendName {
		t.Skipf("test requires the %q backend", sim.BackendName)
	}
	t.Setenv(clapi.BackendEnv, sim.BackendName)
	reg, err := NewDefaultRegistry()
	require.NoError(t, err)
	require.Equal(t, sim.BackendName, reg.Backend().Name())
	ctx := capture(reg.CurrentContext()).Test(t)
	require.True(t, ctx.IsOwned())
	require.NoError(t, reg.Close())

	// The backend was closed with the registry.
	_, err = reg.Backend().PlatformIDs()
	require.Error(t, err)

	t.Setenv(clapi.BackendEnv, "nonexistent")
	_, err = NewDefaultRegistry()
	require.Error(t, err)
}
