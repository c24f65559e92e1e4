package host

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	id        string
	events    *[]string
	failInit  bool
	failStart bool
	failStop  bool
}

func (m *fakeModule) ID() string { return m.id }

func (m *fakeModule) Init() error {
	*m.events = append(*m.events, "init "+m.id)
	if m.failInit {
		return errors.New("init failed")
	}
	return nil
}

func (m *fakeModule) Start() error {
	*m.events = append(*m.events, "start "+m.id)
	if m.failStart {
		return errors.New("start failed")
	}
	return nil
}

func (m *fakeModule) Stop() error {
	*m.events = append(*m.events, "stop "+m.id)
	if m.failStop {
		return errors.New("stop failed")
	}
	return nil
}

func factory(m *fakeModule) Factory {
	return func() (Module, error) { return m, nil }
}

func TestRegistry(t *testing.T) {
	var events []string
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		_, err := r.Register(factory(&fakeModule{id: id, events: &events}))
		require.NoError(t, err)
	}
	_, err := r.Register(factory(&fakeModule{id: "b", events: &events}))
	require.ErrorContains(t, err, `module "b" registered more than once`)
	_, err = r.Register(func() (Module, error) { return nil, errors.New("boom") })
	require.ErrorContains(t, err, "boom")

	require.Len(t, r.Modules(), 3)
	m, found := r.Lookup("c")
	require.True(t, found)
	require.Equal(t, "c", m.ID())
	_, found = r.Lookup("d")
	require.False(t, found)

	require.NoError(t, r.InitAll())
	require.NoError(t, r.StartAll())
	require.NoError(t, r.StopAll())
	require.Equal(t, []string{
		"init a", "init b", "init c",
		"start a", "start b", "start c",
		"stop c", "stop b", "stop a",
	}, events)

	// Stopping again is a no-op.
	events = nil
	require.NoError(t, r.StopAll())
	require.Empty(t, events)
}

func TestRegistryFailures(t *testing.T) {
	var events []string
	r := NewRegistry()
	_, _ = r.Register(factory(&fakeModule{id: "a", events: &events, failStop: true}))
	_, _ = r.Register(factory(&fakeModule{id: "b", events: &events}))
	_, _ = r.Register(factory(&fakeModule{id: "c", events: &events, failStart: true}))

	// A failed start stops the modules already started, in reverse order.
	err := r.StartAll()
	require.ErrorContains(t, err, `failed to start module "c"`)
	require.Equal(t, []string{"start a", "start b", "start c", "stop b", "stop a"}, events)

	r = NewRegistry()
	events = nil
	_, _ = r.Register(factory(&fakeModule{id: "a", events: &events, failInit: true}))
	_, _ = r.Register(factory(&fakeModule{id: "b", events: &events}))
	require.ErrorContains(t, r.InitAll(), `failed to initialize module "a"`)
	require.Equal(t, []string{"init a"}, events)

	// StopAll stops everything, and returns the first error.
	r = NewRegistry()
	events = nil
	_, _ = r.Register(factory(&fakeModule{id: "a", events: &events, failStop: true}))
	_, _ = r.Register(factory(&fakeModule{id: "b", events: &events, failStop: true}))
	require.NoError(t, r.StartAll())
	err = r.StopAll()
	require.ErrorContains(t, err, `failed to stop module "b"`)
	require.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
}
