package cl_test

import (
	"testing"

	"github.com/gomlx/goclrt/cl"
	"github.com/gomlx/goclrt/cl/simulator"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestGetBackend(t *testing.T) {
	var opened int
	cl.RegisterBackend("Test-Backend", func() (cl.API, error) {
		opened++
		return simulator.New(simulator.DefaultTopology())
	})
	require.Contains(t, cl.Backends(), "test-backend")
	require.Contains(t, cl.Backends(), "sim")

	api0, err := cl.GetBackend("test-backend")
	require.NoError(t, err)
	api1, err := cl.GetBackend("TEST-BACKEND")
	require.NoError(t, err)
	require.Same(t, api0, api1)
	require.Equal(t, 1, opened)

	// Aliases.
	sim0, err := cl.GetBackend("sim")
	require.NoError(t, err)
	sim1, err := cl.GetBackend("Simulator")
	require.NoError(t, err)
	require.Same(t, sim0, sim1)

	_, err = cl.GetBackend("no-such-backend")
	require.ErrorContains(t, err, "unknown cl back end")
}

func TestGetBackendOpenError(t *testing.T) {
	cl.RegisterBackend("failing", func() (cl.API, error) {
		return nil, errors.New("no driver")
	})
	_, err := cl.GetBackend("failing")
	require.ErrorContains(t, err, "no driver")
	// Failures are not cached.
	_, err = cl.GetBackend("failing")
	require.ErrorContains(t, err, "failed to open cl back end")
}
