package clrt

import (
	"fmt"
	"testing"

	"github.com/gomlx/goclrt/cl"
	"github.com/gomlx/goclrt/cl/simulator"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestFindDevice(t *testing.T) {
	manager, _ := newTestManager(t, twoPlatforms(), simulator.Faults{})
	platforms := manager.Platforms()
	require.Len(t, platforms, 2)
	require.Equal(t, 5, manager.NumDevices())
	for _, p := range platforms {
		fmt.Printf("%s\n", p)
	}

	wantNames := []string{"A-gpu", "A-cpu", "B-gpu", "B-acc", "B-cpu"}
	for globalID, want := range wantNames {
		device, found := manager.FindDevice(globalID)
		require.Truef(t, found, "device #%d not found", globalID)
		require.Equal(t, want, device.Name())
		require.Equal(t, globalID, device.ID())
		wantPlatform := platforms[0]
		if globalID >= 2 {
			wantPlatform = platforms[1]
		}
		require.Contains(t, wantPlatform.Devices(), device)
	}
	_, found := manager.FindDevice(5)
	require.False(t, found)
	_, found = manager.FindDevice(-1)
	require.False(t, found)

	devices := manager.Devices()
	require.Len(t, devices, 5)
	for ii, d := range devices {
		require.Equal(t, ii, d.ID())
	}
	require.Equal(t, cl.DeviceTypeAccelerator, devices[3].Type())
	require.Equal(t, "A", platforms[0].Name())
	require.Equal(t, "FULL_PROFILE", platforms[0].Profile())
}

func TestFindDeviceIf(t *testing.T) {
	manager, _ := newTestManager(t, twoPlatforms(), simulator.Faults{})
	minUnits := func(n uint32) func(d *Device) bool {
		return func(d *Device) bool { return d.Info().MaxComputeUnits >= n }
	}
	device, found := manager.FindDeviceIf(minUnits(16))
	require.True(t, found)
	require.Equal(t, 0, device.ID())
	device, found = manager.FindDeviceIf(minUnits(20))
	require.True(t, found)
	require.Equal(t, "B-gpu", device.Name())
	device, found = manager.FindDeviceIf(minUnits(64))
	require.True(t, found)
	require.Equal(t, 3, device.ID())
	_, found = manager.FindDeviceIf(minUnits(100))
	require.False(t, found)

	device, found = manager.FindDeviceIf(func(d *Device) bool { return d.Type() == cl.DeviceTypeCPU })
	require.True(t, found)
	require.Equal(t, "A-cpu", device.Name())
}

func TestManagerWithoutPlatforms(t *testing.T) {
	// Not initialized.
	manager := NewManager(newSimulator(t, simulator.DefaultTopology(), simulator.Faults{}))
	_, found := manager.FindDevice(0)
	require.False(t, found)
	_, found = manager.FindDeviceIf(func(*Device) bool { return true })
	require.False(t, found)
	require.Zero(t, manager.NumDevices())

	// No platforms.
	manager = NewManager(newSimulator(t, simulator.Topology{}, simulator.Faults{}))
	err := manager.Init()
	require.ErrorIs(t, err, ErrNoPlatform)
	_, found = manager.FindDevice(0)
	require.False(t, found)
	_, err = manager.CreateProgram("kernel void k() {}", "", 0)
	require.ErrorIs(t, err, ErrNoDevice)
	require.NoError(t, manager.Close())

	// Init only once.
	manager, _ = newTestManager(t, simulator.DefaultTopology(), simulator.Faults{})
	require.ErrorIs(t, manager.Init(), ErrAlreadyInitialized)
	require.Equal(t, 2, manager.NumDevices())
}

func TestInitFailures(t *testing.T) {
	testCases := []struct {
		name     string
		topology simulator.Topology
		faults   simulator.Faults
		want     error
		status   cl.Status
	}{
		{"platform info", twoPlatforms(), simulator.Faults{PlatformInfo: true}, ErrPlatformInfo, cl.InvalidPlatform},
		{"device info", twoPlatforms(), simulator.Faults{DeviceInfo: true}, ErrDeviceInfo, cl.OutOfHostMemory},
		{"context creation", twoPlatforms(), simulator.Faults{ContextCreation: true}, ErrContextCreation,
			cl.OutOfResources},
		{"platform without devices", simulator.Topology{Platforms: []simulator.PlatformSpec{
			{Name: "A", Devices: []simulator.DeviceSpec{{Type: "gpu"}}},
			{Name: "Empty"},
		}}, simulator.Faults{}, ErrNoDevices, cl.Success},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sim := newSimulator(t, tc.topology, tc.faults)
			manager := NewManager(sim)
			err := manager.Init()
			require.ErrorIs(t, err, tc.want)
			if tc.status != cl.Success {
				require.True(t, cl.IsStatus(err, tc.status), "native cause missing from %+v", err)
			}
			fmt.Printf("Received expected error: %v\n", err)
			require.Empty(t, manager.Platforms())
			require.Empty(t, sim.Live(), "platforms created before the failure must be destroyed")
			require.NoError(t, manager.Close())
		})
	}

	// A native error listing devices is reported with its status.
	sim := newSimulator(t, twoPlatforms(), simulator.Faults{
		DeviceIDs: map[cl.DeviceType]cl.Status{cl.DeviceTypeAccelerator: cl.OutOfResources}})
	err := NewManager(sim).Init()
	require.True(t, cl.IsStatus(err, cl.OutOfResources), "unexpected error: %+v", err)
	require.Empty(t, sim.Live())
}

func TestDeviceTypeNotFoundIsSkipped(t *testing.T) {
	// Platform "A" has no accelerators, and GPUs are reported as not found: only the CPU is discovered.
	manager, _ := newTestManager(t, twoPlatforms(), simulator.Faults{
		DeviceIDs: map[cl.DeviceType]cl.Status{cl.DeviceTypeGPU: cl.DeviceNotFound}})
	require.Equal(t, 3, manager.NumDevices())
	device, found := manager.FindDevice(1)
	require.True(t, found)
	require.Equal(t, "B-acc", device.Name())
}

func TestContextNotification(t *testing.T) {
	diagnostics := &recorder{}
	newTestManager(t, simulator.DefaultTopology(), simulator.Faults{ContextNotify: "CL_OUT_OF_RESOURCES error"},
		WithDiagnostics(diagnostics))
	require.True(t, diagnostics.contains(SeverityError, "##### Error message via context notification #####"))
	require.True(t, diagnostics.contains(SeverityError, "CL_OUT_OF_RESOURCES error"))
}

func TestDeviceInfo(t *testing.T) {
	topology := simulator.DefaultTopology()
	topology.Platforms = append(topology.Platforms, simulator.PlatformSpec{
		Name:    "Embedded",
		Profile: "EMBEDDED_PROFILE",
		Devices: []simulator.DeviceSpec{{Name: "Tiny", Type: "accelerator"}},
	})
	manager, _ := newTestManager(t, topology, simulator.Faults{})
	gpu, cpu, tiny := manager.Devices()[0], manager.Devices()[1], manager.Devices()[2]

	info := gpu.Info()
	require.Equal(t, "Simulated GPU", info.Name)
	require.Equal(t, cl.DeviceTypeGPU, info.Type)
	require.Equal(t, uint32(32), info.MaxComputeUnits)
	require.Equal(t, uint32(3), info.MaxWorkItemDimensions)
	require.Len(t, info.MaxWorkItemSizes, 3)
	require.True(t, info.Available)
	require.True(t, gpu.HasExtension("cl_khr_fp16"))
	fmt.Printf("%s\n", gpu)

	require.True(t, gpu.SupportsDType(dtypes.Float16))
	require.True(t, gpu.SupportsDType(dtypes.Float64))
	require.False(t, cpu.SupportsDType(dtypes.Float16))
	require.True(t, cpu.SupportsDType(dtypes.Int64))
	require.True(t, tiny.SupportsDType(dtypes.Float32))
	require.False(t, tiny.SupportsDType(dtypes.Int64))
	require.False(t, tiny.SupportsDType(dtypes.Complex64))
}

func TestDeviceInfo32Bits(t *testing.T) {
	topology := simulator.Topology{Platforms: []simulator.PlatformSpec{{
		Name: "Legacy",
		Devices: []simulator.DeviceSpec{{
			Type:             "gpu",
			AddressBits:      32,
			MaxWorkGroupSize: 512,
			MaxWorkItemSizes: []uint64{512, 256, 64},
			GlobalMemSize:    1 << 33,
		}},
	}}}
	manager, _ := newTestManager(t, topology, simulator.Faults{})
	device, found := manager.FindDevice(0)
	require.True(t, found)
	info := device.Info()
	require.Equal(t, uint64(512), info.MaxWorkGroupSize)
	require.Equal(t, []uint64{512, 256, 64}, info.MaxWorkItemSizes)
	require.Equal(t, uint32(3), info.MaxWorkItemDimensions)
	require.Equal(t, uint64(1<<33), info.GlobalMemSize)
}

func TestClose(t *testing.T) {
	sim := newSimulator(t, twoPlatforms(), simulator.Faults{})
	manager := NewManager(sim)
	require.NoError(t, manager.Init())
	require.Equal(t, map[string]int{"context": 2, "queue": 5}, sim.Live())
	require.NoError(t, manager.Close())
	require.Empty(t, sim.Live())
	require.Empty(t, manager.Platforms())
	// Idempotent.
	require.NoError(t, manager.Close())
}
