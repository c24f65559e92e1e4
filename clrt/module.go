package clrt

import (
	"github.com/gomlx/goclrt/cl"
	"github.com/gomlx/goclrt/host"
	"github.com/pkg/errors"
)

// ModuleID of the Manager in a host.Registry.
const ModuleID = "opencl_manager"

var _ host.Module = (*Manager)(nil)

// ID implements host.Module.
func (m *Manager) ID() string {
	return ModuleID
}

// Start implements host.Module. Platforms are discovered by Init, there is nothing else to start.
func (m *Manager) Start() error {
	if !m.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Stop implements host.Module, it closes the Manager.
func (m *Manager) Stop() error {
	return m.Close()
}

// NewModule returns a host.Factory creating a Manager for api.
func NewModule(api cl.API, options ...Option) host.Factory {
	return func() (host.Module, error) {
		return NewManager(api, options...), nil
	}
}

// NewModuleFromConfig returns a host.Factory creating a Manager for the back end named in cfg.
func NewModuleFromConfig(cfg Config, options ...Option) host.Factory {
	return func() (host.Module, error) {
		api, err := cl.GetBackend(cfg.Backend)
		if err != nil {
			return nil, errors.WithMessage(err, "creating clrt module")
		}
		return NewManager(api, append([]Option{WithConfig(cfg)}, options...)...), nil
	}
}

// ManagerFrom returns the Manager registered in registry.
func ManagerFrom(registry *host.Registry) (*Manager, bool) {
	module, found := registry.Lookup(ModuleID)
	if !found {
		return nil, false
	}
	m, ok := module.(*Manager)
	return m, ok
}
