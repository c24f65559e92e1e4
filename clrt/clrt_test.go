package clrt

// Common initialization and testing tools for all test files.

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/gomlx/goclrt/cl/simulator"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

type errTester[T any] struct {
	value T
	err   error
}

// capture is a shortcut to test that there is no error and return the value.
func capture[T any](value T, err error) errTester[T] {
	return errTester[T]{value, err}
}

func (e errTester[T]) Test(t *testing.T) T {
	require.NoError(t, e.err)
	return e.value
}

type report struct {
	severity Severity
	message  string
}

// recorder is a Diagnostics sink that keeps the reports for inspection.
type recorder struct {
	mu      sync.Mutex
	reports []report
}

func (r *recorder) Report(severity Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Printf("\t[%s] %s\n", severity, message)
	r.reports = append(r.reports, report{severity, message})
}

func (r *recorder) get() []report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]report(nil), r.reports...)
}

func (r *recorder) count(severity Severity) int {
	var n int
	for _, rep := range r.get() {
		if rep.severity == severity {
			n++
		}
	}
	return n
}

func (r *recorder) contains(severity Severity, substr string) bool {
	for _, rep := range r.get() {
		if rep.severity == severity && strings.Contains(rep.message, substr) {
			return true
		}
	}
	return false
}

// twoPlatforms topology: platform "A" with 2 devices and "B" with 3. Within a platform devices are discovered
// GPUs first, then accelerators, then CPUs:
//
//	#0 A-gpu, #1 A-cpu, #2 B-gpu, #3 B-acc, #4 B-cpu
func twoPlatforms() simulator.Topology {
	return simulator.Topology{Platforms: []simulator.PlatformSpec{
		{Name: "A", Devices: []simulator.DeviceSpec{
			{Name: "A-cpu", Type: "cpu", ComputeUnits: 4},
			{Name: "A-gpu", Type: "gpu", ComputeUnits: 16},
		}},
		{Name: "B", Devices: []simulator.DeviceSpec{
			{Name: "B-cpu", Type: "cpu", ComputeUnits: 8},
			{Name: "B-gpu", Type: "gpu", ComputeUnits: 32},
			{Name: "B-acc", Type: "accelerator", ComputeUnits: 64},
		}},
	}}
}

// newSimulator creates a simulated back end, failing the test on error.
func newSimulator(t *testing.T, topology simulator.Topology, faults simulator.Faults) *simulator.Simulator {
	return capture(simulator.New(topology, simulator.WithFaults(faults))).Test(t)
}

// newTestManager creates and initializes a Manager over a new simulator. The Manager is closed at the end of the
// test, after which the simulator must have no live objects.
func newTestManager(t *testing.T, topology simulator.Topology, faults simulator.Faults, options ...Option) (
	*Manager, *simulator.Simulator) {
	sim := newSimulator(t, topology, faults)
	manager := NewManager(sim, options...)
	require.NoError(t, manager.Init())
	t.Cleanup(func() {
		require.NoError(t, manager.Close())
		require.Empty(t, sim.Live(), "native objects leaked")
	})
	return manager, sim
}
