package clrt

import (
	"testing"

	"github.com/gomlx/goclrt/cl/simulator"
	"github.com/gomlx/goclrt/host"
	"github.com/stretchr/testify/require"
)

func TestModule(t *testing.T) {
	sim := newSimulator(t, twoPlatforms(), simulator.Faults{})
	registry := host.NewRegistry()
	module := capture(registry.Register(NewModule(sim, WithDiagnostics(&recorder{})))).Test(t)
	require.Equal(t, ModuleID, module.ID())
	_, err := registry.Register(NewModule(sim))
	require.ErrorContains(t, err, "registered more than once")

	// Starting before initializing fails.
	require.ErrorIs(t, registry.StartAll(), ErrNotInitialized)

	require.NoError(t, registry.InitAll())
	require.NoError(t, registry.StartAll())
	manager, found := ManagerFrom(registry)
	require.True(t, found)
	require.Same(t, module, manager)
	require.Equal(t, 5, manager.NumDevices())

	program := capture(manager.CreateProgram("kernel void k() {}", "", 4)).Test(t)
	require.NoError(t, program.Release())

	require.NoError(t, registry.StopAll())
	require.Empty(t, sim.Live())
	_, found = ManagerFrom(host.NewRegistry())
	require.False(t, found)
}

func TestModuleFromConfig(t *testing.T) {
	clearConfigEnv(t)
	registry := host.NewRegistry()
	_, err := registry.Register(NewModuleFromConfig(Config{Backend: "no-such-backend"}))
	require.ErrorContains(t, err, "unknown cl back end")

	cfg := DefaultConfig()
	cfg.BuildOptions = "-DFROM_CONFIG=1"
	capture(registry.Register(NewModuleFromConfig(cfg))).Test(t)
	require.NoError(t, registry.InitAll())
	require.NoError(t, registry.StartAll())
	manager, found := ManagerFrom(registry)
	require.True(t, found)
	require.Equal(t, cfg, manager.Config())
	require.Equal(t, 2, manager.NumDevices())
	require.NoError(t, registry.StopAll())
}
