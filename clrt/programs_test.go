package clrt

import (
	"sync"
	"testing"

	"github.com/gomlx/goclrt/cl/simulator"
	"github.com/stretchr/testify/require"
)

func TestProgramOutlivesManager(t *testing.T) {
	sim := newSimulator(t, simulator.DefaultTopology(), simulator.Faults{})
	manager := NewManager(sim)
	require.NoError(t, manager.Init())

	aliveBefore := ProgramsAlive()
	program := capture(manager.CreateProgram(saxpySource, "", 0)).Test(t)
	require.Equal(t, aliveBefore+1, ProgramsAlive())
	// Platform, 2 devices and the program.
	require.Equal(t, int64(4), program.Context().Refs())
	// Device #0 and the program.
	require.Equal(t, int64(2), program.Queue().Refs())

	require.NoError(t, manager.Close())
	require.Equal(t, int64(1), program.Context().Refs())
	require.Equal(t, int64(1), program.Queue().Refs())
	require.Equal(t, map[string]int{"context": 1, "queue": 1, "program": 1, "kernel": 2}, sim.Live())

	// Still usable.
	k, found := program.Kernel("scale")
	require.True(t, found)
	require.NotZero(t, k.Handle())
	require.NotZero(t, program.Context().Handle())

	require.NoError(t, program.Release())
	require.Empty(t, sim.Live())
	require.Equal(t, aliveBefore, ProgramsAlive())

	// Idempotent, and the program can't be used anymore.
	require.NoError(t, program.Release())
	require.Equal(t, aliveBefore, ProgramsAlive())
	_, err := program.LookupKernel("saxpy")
	require.ErrorIs(t, err, ErrReleased)
	require.Empty(t, program.Kernels())
}

func TestProgramReleaseWhileInUse(t *testing.T) {
	manager, _ := newTestManager(t, simulator.DefaultTopology(), simulator.Faults{})
	program := capture(manager.CreateProgram(saxpySource, "", 0)).Test(t)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if ctx, queue := program.Context(), program.Queue(); ctx == nil || queue == nil {
					return
				}
			}
		}()
	}
	require.NoError(t, program.Release())
	wg.Wait()
	require.Nil(t, program.Context())
	require.Nil(t, program.Queue())
}

func TestProgramIDs(t *testing.T) {
	manager, _ := newTestManager(t, simulator.DefaultTopology(), simulator.Faults{})
	p0 := capture(manager.CreateProgram("kernel void k() {}", "", 0)).Test(t)
	p1 := capture(manager.CreateProgram("kernel void k() {}", "", 0)).Test(t)
	require.NotEqual(t, p0.ID(), p1.ID())
	require.NotEqual(t, p0.Handle(), p1.Handle())
	// Both programs share the device's context and queue.
	require.Equal(t, p0.Context().Handle(), p1.Context().Handle())
	require.Equal(t, p0.Queue().Handle(), p1.Queue().Handle())
	require.NoError(t, p0.Release())
	require.NoError(t, p1.Release())
}

func TestLeases(t *testing.T) {
	sim := newSimulator(t, simulator.DefaultTopology(), simulator.Faults{})
	manager := NewManager(sim)
	require.NoError(t, manager.Init())
	device, _ := manager.FindDevice(0)

	ctx := device.Context().Acquire()
	queue := device.Queue().Acquire()
	require.Equal(t, int64(4), ctx.Refs())
	require.Equal(t, int64(2), queue.Refs())

	require.NoError(t, manager.Close())
	require.Equal(t, map[string]int{"context": 1, "queue": 1}, sim.Live())

	// Each lease is released only once.
	require.NoError(t, queue.Release())
	require.NoError(t, queue.Release())
	require.Equal(t, map[string]int{"context": 1}, sim.Live())
	require.NoError(t, ctx.Release())
	require.Empty(t, sim.Live())
	require.Panics(t, func() { ctx.Handle() })
}
