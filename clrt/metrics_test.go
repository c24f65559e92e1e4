package clrt

import (
	"testing"

	"github.com/gomlx/goclrt/cl/simulator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	sim := newSimulator(t, twoPlatforms(), simulator.Faults{})
	manager := NewManager(sim, WithMetrics(metrics), WithDiagnostics(&recorder{}))
	require.NoError(t, manager.Init())
	require.Equal(t, 5.0, testutil.ToFloat64(metrics.Devices))

	program := capture(manager.CreateProgram("kernel void k() {}", "", 0)).Test(t)
	require.NoError(t, program.Release())
	_, err := manager.CreateProgram("kernel void k( {}", "", 0)
	require.Error(t, err)
	_, err = manager.CreateProgram("kernel void k() {}", "", 5)
	require.Error(t, err)

	sim.SetFaults(simulator.Faults{NoKernelsInBatch: true})
	program = capture(manager.CreateProgram("kernel void k() {}", "", 1)).Test(t)
	require.NoError(t, program.Release())
	sim.SetFaults(simulator.Faults{KernelInfo: true})
	_, err = manager.CreateProgram("kernel void k() {}", "", 1)
	require.Error(t, err)

	for result, want := range map[string]float64{
		ResultOK: 1, ResultBuildFailed: 1, ResultNoDevice: 1, ResultDegraded: 1, ResultKernelsFailed: 1, ResultError: 0,
	} {
		require.Equalf(t, want, testutil.ToFloat64(metrics.ProgramsCompiled.WithLabelValues(result)), "result=%q", result)
	}
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.KernelsDegraded))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.BuildDuration))

	require.NoError(t, manager.Close())
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.Devices))
	require.Empty(t, sim.Live())
}

func TestNilMetrics(t *testing.T) {
	var metrics *Metrics
	metrics.compiled(ResultOK)
	metrics.setDevices(3)

	// Unregistered metrics still work.
	metrics = NewMetrics(nil)
	metrics.setDevices(3)
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.Devices))
}
