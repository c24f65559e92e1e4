// Package clrt manages the discovery and lifecycle of compute platforms, devices and compiled programs, on top of a
// cl back end.
//
// A Manager discovers all platforms once (Manager.Init), and addresses their devices with a flat global index in
// discovery order: devices of the first platform come first, then the ones of the second platform, etc.
// Programs are compiled from source against one device, and keep their own references to the device's context
// and command queue.
//
// Example:
//
//	api := must.M1(cl.GetBackend("sim"))
//	manager := clrt.NewManager(api)
//	must.M(manager.Init())
//	defer manager.Close()
//	program := must.M1(manager.CreateProgram("kernel void k() {}", "", 0))
//	defer program.Release()
//	k, _ := program.Kernel("k")
package clrt

import (
	"os"

	"github.com/gomlx/goclrt/cl"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FileReader reads a whole file, see WithFileReader.
type FileReader func(path string) ([]byte, error)

// Option configures a Manager.
type Option func(m *Manager)

// WithDiagnostics sets the sink for build logs and warnings. Default is KlogDiagnostics.
func WithDiagnostics(diagnostics Diagnostics) Option {
	return func(m *Manager) {
		m.diagnostics = diagnostics
	}
}

// WithFileReader sets how program source files are read. Default is os.ReadFile.
func WithFileReader(reader FileReader) Option {
	return func(m *Manager) {
		m.readFile = reader
	}
}

// WithConfig sets the configuration. Default is DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.config = cfg
	}
}

// WithMetrics records metrics about devices and compilations.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager owns the platforms of one back end, addresses their devices by a global index, and compiles programs.
//
// Init must be called once, before any other method. After that, FindDevice, FindDeviceIf and the program
// creation methods are safe for concurrent use: they only read the platforms.
type Manager struct {
	api         cl.API
	config      Config
	diagnostics Diagnostics
	readFile    FileReader
	metrics     *Metrics

	initialized bool
	closed      bool
	platforms   []*Platform
}

// NewManager creates a Manager for the given back end. Call Init to discover the platforms.
func NewManager(api cl.API, options ...Option) *Manager {
	m := &Manager{
		api:         api,
		config:      DefaultConfig(),
		diagnostics: KlogDiagnostics,
		readFile:    os.ReadFile,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// clPlatformIDs lists the platform ids with a count query followed by a fill query.
func clPlatformIDs(api cl.API) ([]cl.PlatformID, error) {
	num, status := api.GetPlatformIDs(nil)
	if status == cl.PlatformNotFoundKHR || (status == cl.Success && num == 0) {
		return nil, nil
	}
	if err := cl.StatusError("clGetPlatformIDs", status); err != nil {
		return nil, err
	}
	ids := make([]cl.PlatformID, num)
	num, status = api.GetPlatformIDs(ids)
	if err := cl.StatusError("clGetPlatformIDs", status); err != nil {
		return nil, err
	}
	return ids[:num], nil
}

// Init discovers all platforms and their devices. It can only be called once.
//
// Any platform failing to initialize aborts Init: platforms already created are destroyed, and the Manager is left
// without platforms.
func (m *Manager) Init() error {
	if m.initialized {
		return ErrAlreadyInitialized
	}
	m.initialized = true

	ids, err := clPlatformIDs(m.api)
	if err != nil {
		return errors.WithMessage(err, "failed to list platforms")
	}
	if len(ids) == 0 {
		return errors.WithStack(ErrNoPlatform)
	}

	opts := platformOptions{
		queueProperties: m.config.QueueProperties(),
		diagnostics:     m.diagnostics,
	}
	nextDeviceID := 0
	platforms := make([]*Platform, 0, len(ids))
	for ii, id := range ids {
		platform, err := newPlatform(m.api, id, nextDeviceID, opts)
		if err != nil {
			for _, p := range platforms {
				p.destroyOrLog()
			}
			return errors.WithMessagef(err, "failed to initialize platform #%d", ii)
		}
		klog.V(1).Infof("discovered %s", platform)
		platforms = append(platforms, platform)
		nextDeviceID += platform.NumDevices()
	}
	m.platforms = platforms
	m.metrics.setDevices(nextDeviceID)
	return nil
}

// Close destroys the platforms, in reverse discovery order. Programs still alive keep their own references to
// contexts and queues, and remain usable until released.
//
// It is idempotent.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var firstErr error
	for ii := len(m.platforms) - 1; ii >= 0; ii-- {
		if err := m.platforms[ii].Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.platforms = nil
	m.metrics.setDevices(0)
	return firstErr
}

// API returns the back end used by the Manager.
func (m *Manager) API() cl.API {
	return m.api
}

// Config returns the configuration of the Manager.
func (m *Manager) Config() Config {
	return m.config
}

// Platforms in discovery order. The slice is owned by the Manager, don't change it.
func (m *Manager) Platforms() []*Platform {
	return m.platforms
}

// NumDevices returns the total number of devices over all platforms.
func (m *Manager) NumDevices() int {
	var n int
	for _, p := range m.platforms {
		n += p.NumDevices()
	}
	return n
}

// Devices returns all devices in global index order.
func (m *Manager) Devices() []*Device {
	devices := make([]*Device, 0, m.NumDevices())
	for _, p := range m.platforms {
		devices = append(devices, p.Devices()...)
	}
	return devices
}

// FindDevice returns the device with the given global index, or false if there is no such device.
func (m *Manager) FindDevice(globalID int) (*Device, bool) {
	if len(m.platforms) == 0 || globalID < 0 {
		return nil, false
	}
	to := 0
	for _, p := range m.platforms {
		from := to
		to += p.NumDevices()
		if globalID >= from && globalID < to {
			return p.Devices()[globalID-from], true
		}
	}
	return nil, false
}

// FindDeviceIf returns the first device, in global index order, for which predicate returns true.
func (m *Manager) FindDeviceIf(predicate func(d *Device) bool) (*Device, bool) {
	for _, p := range m.platforms {
		for _, d := range p.Devices() {
			if predicate(d) {
				return d, true
			}
		}
	}
	return nil, false
}
