// Package host is the minimal module registry of a host runtime: modules are created by factories, initialized and
// started in registration order, and stopped in reverse order.
//
// The registry owns the modules it creates.
package host

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Module is a subsystem with a lifecycle managed by a Registry.
type Module interface {
	// ID uniquely identifies the module in a Registry.
	ID() string

	// Init is called once, before Start. Modules are initialized in registration order.
	Init() error

	Start() error
	Stop() error
}

// Factory creates a new module, uniquely owned by the Registry that calls it.
type Factory func() (Module, error)

// Registry of modules.
type Registry struct {
	modules []Module
	byID    map[string]Module
	started int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Module)}
}

// Register creates a module with factory and adds it to the registry.
func (r *Registry) Register(factory Factory) (Module, error) {
	module, err := factory()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create module")
	}
	id := module.ID()
	if _, found := r.byID[id]; found {
		return nil, errors.Errorf("module %q registered more than once", id)
	}
	r.byID[id] = module
	r.modules = append(r.modules, module)
	return module, nil
}

// Lookup returns the module with the given id.
func (r *Registry) Lookup(id string) (Module, bool) {
	module, found := r.byID[id]
	return module, found
}

// Modules returns the modules in registration order.
func (r *Registry) Modules() []Module {
	return r.modules
}

// InitAll initializes the modules in registration order, stopping at the first error.
func (r *Registry) InitAll() error {
	for _, module := range r.modules {
		if err := module.Init(); err != nil {
			return errors.WithMessagef(err, "failed to initialize module %q", module.ID())
		}
		klog.V(1).Infof("module %q initialized", module.ID())
	}
	return nil
}

// StartAll starts the modules in registration order. If one fails, the ones already started are stopped.
func (r *Registry) StartAll() error {
	for _, module := range r.modules[r.started:] {
		if err := module.Start(); err != nil {
			if stopErr := r.StopAll(); stopErr != nil {
				klog.Errorf("failed to stop modules after start failure: %+v", stopErr)
			}
			return errors.WithMessagef(err, "failed to start module %q", module.ID())
		}
		r.started++
	}
	return nil
}

// StopAll stops the started modules in reverse order. All of them are stopped, the first error is returned.
func (r *Registry) StopAll() error {
	var firstErr error
	for ; r.started > 0; r.started-- {
		module := r.modules[r.started-1]
		if err := module.Stop(); err != nil && firstErr == nil {
			firstErr = errors.WithMessagef(err, "failed to stop module %q", module.ID())
		}
	}
	return firstErr
}
