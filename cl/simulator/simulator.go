// Package simulator implements cl.API in pure Go, with a configurable topology of platforms and devices.
//
// It doesn't execute anything: programs are "compiled" by scanning the source for kernel entry points and
// structural errors. It keeps native reference counts for every context, command queue, program and kernel it
// creates, so callers can verify that all resources were released, see Simulator.Live.
//
// The package registers itself as the "sim" back end: import it with
//
//	import _ "github.com/gomlx/goclrt/cl/simulator"
//
// and call cl.GetBackend("sim"). The topology is read from the YAML file given by the GOCLRT_SIM_TOPOLOGY
// environment variable, or DefaultTopology if not set.
package simulator

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/goclrt/cl"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TopologyEnv is the environment variable with the path to a YAML topology used by the registered "sim" back end.
const TopologyEnv = "GOCLRT_SIM_TOPOLOGY"

func init() {
	cl.RegisterBackend("sim", func() (cl.API, error) {
		topology := DefaultTopology()
		if path := os.Getenv(TopologyEnv); path != "" {
			var err error
			topology, err = LoadTopology(path)
			if err != nil {
				return nil, err
			}
		}
		return New(topology)
	})
}

// Faults to inject in the simulated back end.
type Faults struct {
	// PlatformInfo makes GetPlatformInfo fail.
	PlatformInfo bool

	// DeviceIDs maps a device type class to the status GetDeviceIDs returns for it.
	DeviceIDs map[cl.DeviceType]cl.Status

	// DeviceInfo makes GetDeviceInfo fail.
	DeviceInfo bool

	// ContextCreation makes CreateContext fail.
	ContextCreation bool

	// ContextNotify, if not empty, is sent to the context notification callback once the context is created.
	ContextNotify string

	// BuildLog makes GetProgramBuildInfo fail.
	BuildLog bool

	// NoKernelsInBatch makes CreateKernelsInProgram report zero kernels for built programs, while CreateKernel
	// by name still works -- a behavior seen in some drivers.
	NoKernelsInBatch bool

	// KernelInfo makes GetKernelInfo fail.
	KernelInfo bool
}

// Option configures a Simulator.
type Option func(s *Simulator)

// WithFaults sets the faults injected from the start.
func WithFaults(faults Faults) Option {
	return func(s *Simulator) {
		s.faults = faults
	}
}

type objectKind int

const (
	kindContext objectKind = iota
	kindQueue
	kindProgram
	kindKernel
)

var kindNames = map[objectKind]string{
	kindContext: "context",
	kindQueue:   "queue",
	kindProgram: "program",
	kindKernel:  "kernel",
}

// object is a reference counted native object. Dependent objects hold a reference to their parent (a queue or a
// program on its context, a kernel on its program), as the native API does.
type object struct {
	kind   objectKind
	refs   int
	parent uintptr

	// context
	devices []cl.DeviceID

	// queue
	device     cl.DeviceID
	properties cl.QueueProperties

	// program
	source  string
	built   bool
	options string
	log     string
	kernels []string

	// kernel
	name string
}

type platform struct {
	spec    *PlatformSpec
	devices []cl.DeviceID
}

type device struct {
	spec     *DeviceSpec
	platform cl.PlatformID
}

// Simulator implements cl.API. It is safe for concurrent use.
type Simulator struct {
	mu           sync.Mutex
	topology     Topology
	faults       Faults
	platformIDs  []cl.PlatformID
	platforms    map[cl.PlatformID]*platform
	devices      map[cl.DeviceID]*device
	objects      map[uintptr]*object
	nextHandle   uintptr
	buildsCalled int
}

var _ cl.API = (*Simulator)(nil)

// New creates a simulated back end with the given topology.
func New(topology Topology, options ...Option) (*Simulator, error) {
	if err := topology.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid simulator topology")
	}
	s := &Simulator{
		topology:   topology,
		platforms:  make(map[cl.PlatformID]*platform),
		devices:    make(map[cl.DeviceID]*device),
		objects:    make(map[uintptr]*object),
		nextHandle: 0x1000,
	}
	for _, option := range options {
		option(s)
	}
	for pIdx := range s.topology.Platforms {
		pSpec := &s.topology.Platforms[pIdx]
		pID := cl.PlatformID(s.newHandle())
		p := &platform{spec: pSpec}
		for dIdx := range pSpec.Devices {
			dID := cl.DeviceID(s.newHandle())
			p.devices = append(p.devices, dID)
			s.devices[dID] = &device{spec: &pSpec.Devices[dIdx], platform: pID}
		}
		s.platforms[pID] = p
		s.platformIDs = append(s.platformIDs, pID)
	}
	klog.V(2).Infof("simulator created with %d platform(s)", len(s.platformIDs))
	return s, nil
}

// SetFaults replaces the injected faults.
func (s *Simulator) SetFaults(faults Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = faults
}

// Live returns the number of native objects still referenced, per kind ("context", "queue", "program",
// "kernel"). Kinds with no live objects are omitted.
func (s *Simulator) Live() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make(map[string]int)
	for _, obj := range s.objects {
		live[kindNames[obj.kind]]++
	}
	return live
}

// Builds returns how many times BuildProgram was called.
func (s *Simulator) Builds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildsCalled
}

func (s *Simulator) newHandle() uintptr {
	s.nextHandle += 0x10
	return s.nextHandle
}

// newObject registers a new object with one reference, and takes a reference on its parent.
func (s *Simulator) newObject(obj *object) uintptr {
	obj.refs = 1
	if obj.parent != 0 {
		s.objects[obj.parent].refs++
	}
	handle := s.newHandle()
	s.objects[handle] = obj
	return handle
}

// getObject returns the live object of the given kind, or nil.
func (s *Simulator) getObject(handle uintptr, kind objectKind) *object {
	obj, found := s.objects[handle]
	if !found || obj.kind != kind {
		return nil
	}
	return obj
}

// releaseObject drops one reference, deleting the object (and releasing its parent) when it reaches zero.
func (s *Simulator) releaseObject(handle uintptr, kind objectKind, invalid cl.Status) cl.Status {
	obj := s.getObject(handle, kind)
	if obj == nil {
		return invalid
	}
	obj.refs--
	if obj.refs < 0 {
		exceptions.Panicf("simulator: %s %#x released more times than retained", kindNames[kind], handle)
	}
	for obj != nil && obj.refs == 0 {
		delete(s.objects, handle)
		handle = obj.parent
		obj = nil
		if handle != 0 {
			obj = s.objects[handle]
			obj.refs--
		}
	}
	return cl.Success
}

// GetPlatformIDs implements cl.API.
func (s *Simulator) GetPlatformIDs(ids []cl.PlatformID) (int, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.platformIDs) == 0 {
		return 0, cl.PlatformNotFoundKHR
	}
	if len(ids) == 0 {
		return len(s.platformIDs), cl.Success
	}
	return copy(ids, s.platformIDs), cl.Success
}

// GetPlatformInfo implements cl.API.
func (s *Simulator) GetPlatformInfo(platformID cl.PlatformID, param cl.PlatformInfo, value []byte) (int, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.platforms[platformID]
	if !found || s.faults.PlatformInfo {
		return 0, cl.InvalidPlatform
	}
	switch param {
	case cl.PlatformName:
		return cl.PutString(p.spec.Name, value)
	case cl.PlatformVendor:
		return cl.PutString(p.spec.Vendor, value)
	case cl.PlatformVersion:
		return cl.PutString(p.spec.Version, value)
	case cl.PlatformProfile:
		return cl.PutString(p.spec.Profile, value)
	case cl.PlatformExtensions:
		return cl.PutString(strings.Join(p.spec.Extensions, " "), value)
	}
	return 0, cl.InvalidValue
}

// GetDeviceIDs implements cl.API.
func (s *Simulator) GetDeviceIDs(platformID cl.PlatformID, deviceType cl.DeviceType, ids []cl.DeviceID) (int, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.platforms[platformID]
	if !found {
		return 0, cl.InvalidPlatform
	}
	if status, found := s.faults.DeviceIDs[deviceType]; found && status != cl.Success {
		return 0, status
	}
	var matches []cl.DeviceID
	for _, dID := range p.devices {
		if s.devices[dID].spec.deviceType&deviceType != 0 {
			matches = append(matches, dID)
		}
	}
	if len(matches) == 0 {
		return 0, cl.DeviceNotFound
	}
	if len(ids) == 0 {
		return len(matches), cl.Success
	}
	return copy(ids, matches), cl.Success
}

// GetDeviceInfo implements cl.API.
func (s *Simulator) GetDeviceInfo(deviceID cl.DeviceID, param cl.DeviceInfo, value []byte) (int, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, found := s.devices[deviceID]
	if !found {
		return 0, cl.InvalidDevice
	}
	if s.faults.DeviceInfo {
		return 0, cl.OutOfHostMemory
	}
	spec := d.spec
	switch param {
	case cl.DeviceInfoType:
		return cl.PutUint64(uint64(spec.deviceType), value)
	case cl.DeviceInfoMaxComputeUnits:
		return cl.PutUint32(spec.ComputeUnits, value)
	case cl.DeviceInfoMaxWorkItemDimensions:
		return cl.PutUint32(uint32(len(spec.MaxWorkItemSizes)), value)
	case cl.DeviceInfoMaxWorkGroupSize:
		if spec.AddressBits == 32 {
			return cl.PutUint32(uint32(spec.MaxWorkGroupSize), value)
		}
		return cl.PutUint64(spec.MaxWorkGroupSize, value)
	case cl.DeviceInfoMaxWorkItemSizes:
		if spec.AddressBits == 32 {
			return cl.PutUint32Slice(spec.MaxWorkItemSizes, value)
		}
		return cl.PutUint64Slice(spec.MaxWorkItemSizes, value)
	case cl.DeviceInfoMaxClockFrequency:
		return cl.PutUint32(spec.ClockMHz, value)
	case cl.DeviceInfoMaxMemAllocSize:
		return cl.PutUint64(spec.MaxMemAllocSize, value)
	case cl.DeviceInfoGlobalMemSize:
		return cl.PutUint64(spec.GlobalMemSize, value)
	case cl.DeviceInfoLocalMemSize:
		return cl.PutUint64(spec.LocalMemSize, value)
	case cl.DeviceInfoAvailable:
		var available uint32
		if !spec.Unavailable {
			available = 1
		}
		return cl.PutUint32(available, value)
	case cl.DeviceInfoName:
		return cl.PutString(spec.Name, value)
	case cl.DeviceInfoVendor:
		return cl.PutString(spec.Vendor, value)
	case cl.DeviceInfoDriverVersion:
		return cl.PutString(spec.DriverVersion, value)
	case cl.DeviceInfoProfile:
		return cl.PutString(spec.Profile, value)
	case cl.DeviceInfoVersion:
		return cl.PutString(spec.Version, value)
	case cl.DeviceInfoExtensions:
		return cl.PutString(strings.Join(spec.Extensions, " "), value)
	}
	return 0, cl.InvalidValue
}

// CreateContext implements cl.API.
func (s *Simulator) CreateContext(devices []cl.DeviceID, notify cl.NotifyFn) (cl.Context, cl.Status) {
	s.mu.Lock()
	if len(devices) == 0 {
		s.mu.Unlock()
		return 0, cl.InvalidValue
	}
	for _, dID := range devices {
		if _, found := s.devices[dID]; !found {
			s.mu.Unlock()
			return 0, cl.InvalidDevice
		}
	}
	if s.faults.ContextCreation {
		s.mu.Unlock()
		return 0, cl.OutOfResources
	}
	handle := s.newObject(&object{kind: kindContext, devices: slices.Clone(devices)})
	message := s.faults.ContextNotify
	s.mu.Unlock()

	if message != "" && notify != nil {
		notify(message)
	}
	return cl.Context(handle), cl.Success
}

// ReleaseContext implements cl.API.
func (s *Simulator) ReleaseContext(ctx cl.Context) cl.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseObject(uintptr(ctx), kindContext, cl.InvalidContext)
}

// CreateCommandQueue implements cl.API.
func (s *Simulator) CreateCommandQueue(ctx cl.Context, deviceID cl.DeviceID, properties cl.QueueProperties) (cl.CommandQueue, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctxObj := s.getObject(uintptr(ctx), kindContext)
	if ctxObj == nil {
		return 0, cl.InvalidContext
	}
	if !slices.Contains(ctxObj.devices, deviceID) {
		return 0, cl.InvalidDevice
	}
	if properties&^(cl.QueueOutOfOrderExecModeEnable|cl.QueueProfilingEnable) != 0 {
		return 0, cl.InvalidQueueProperties
	}
	handle := s.newObject(&object{kind: kindQueue, parent: uintptr(ctx), device: deviceID, properties: properties})
	return cl.CommandQueue(handle), cl.Success
}

// ReleaseCommandQueue implements cl.API.
func (s *Simulator) ReleaseCommandQueue(queue cl.CommandQueue) cl.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseObject(uintptr(queue), kindQueue, cl.InvalidCommandQueue)
}

// CreateProgramWithSource implements cl.API.
func (s *Simulator) CreateProgramWithSource(ctx cl.Context, source string) (cl.Program, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getObject(uintptr(ctx), kindContext) == nil {
		return 0, cl.InvalidContext
	}
	if source == "" {
		return 0, cl.InvalidValue
	}
	handle := s.newObject(&object{kind: kindProgram, parent: uintptr(ctx), source: source})
	return cl.Program(handle), cl.Success
}

// BuildProgram implements cl.API.
func (s *Simulator) BuildProgram(program cl.Program, devices []cl.DeviceID, options string) cl.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildsCalled++
	prog := s.getObject(uintptr(program), kindProgram)
	if prog == nil {
		return cl.InvalidProgram
	}
	ctxDevices := s.objects[prog.parent].devices
	for _, dID := range devices {
		if !slices.Contains(ctxDevices, dID) {
			return cl.InvalidDevice
		}
	}
	if !validOptions(options) {
		return cl.InvalidBuildOptions
	}
	for _, dID := range devices {
		if s.devices[dID].spec.Unavailable {
			return cl.DeviceNotAvailable
		}
	}
	prog.options = options
	result := compileSource(prog.source)
	prog.log = result.log
	if !result.ok {
		prog.built = false
		return cl.BuildProgramFailure
	}
	prog.built = true
	prog.kernels = result.kernels
	return cl.Success
}

// GetProgramBuildInfo implements cl.API.
func (s *Simulator) GetProgramBuildInfo(program cl.Program, deviceID cl.DeviceID, param cl.ProgramBuildInfo, value []byte) (int, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog := s.getObject(uintptr(program), kindProgram)
	if prog == nil {
		return 0, cl.InvalidProgram
	}
	if _, found := s.devices[deviceID]; !found {
		return 0, cl.InvalidDevice
	}
	if s.faults.BuildLog {
		return 0, cl.OutOfHostMemory
	}
	switch param {
	case cl.ProgramBuildLog:
		return cl.PutString(prog.log, value)
	case cl.ProgramBuildOptions:
		return cl.PutString(prog.options, value)
	case cl.ProgramBuildStatus:
		// CL_BUILD_SUCCESS is 0, CL_BUILD_ERROR is -2.
		var status int32
		if !prog.built {
			status = -2
		}
		return cl.PutUint32(uint32(status), value)
	}
	return 0, cl.InvalidValue
}

// ReleaseProgram implements cl.API.
func (s *Simulator) ReleaseProgram(program cl.Program) cl.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseObject(uintptr(program), kindProgram, cl.InvalidProgram)
}

// CreateKernelsInProgram implements cl.API.
func (s *Simulator) CreateKernelsInProgram(program cl.Program, kernels []cl.Kernel) (int, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog := s.getObject(uintptr(program), kindProgram)
	if prog == nil {
		return 0, cl.InvalidProgram
	}
	if !prog.built {
		return 0, cl.InvalidProgramExecutable
	}
	if s.faults.NoKernelsInBatch {
		return 0, cl.Success
	}
	if len(kernels) == 0 {
		return len(prog.kernels), cl.Success
	}
	if len(kernels) < len(prog.kernels) {
		return 0, cl.InvalidValue
	}
	for ii, name := range prog.kernels {
		kernels[ii] = cl.Kernel(s.newObject(&object{kind: kindKernel, parent: uintptr(program), name: name}))
	}
	return len(prog.kernels), cl.Success
}

// CreateKernel implements cl.API.
func (s *Simulator) CreateKernel(program cl.Program, name string) (cl.Kernel, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog := s.getObject(uintptr(program), kindProgram)
	if prog == nil {
		return 0, cl.InvalidProgram
	}
	if !prog.built {
		return 0, cl.InvalidProgramExecutable
	}
	if !slices.Contains(prog.kernels, name) {
		return 0, cl.InvalidKernelName
	}
	return cl.Kernel(s.newObject(&object{kind: kindKernel, parent: uintptr(program), name: name})), cl.Success
}

// GetKernelInfo implements cl.API.
func (s *Simulator) GetKernelInfo(kernel cl.Kernel, param cl.KernelInfo, value []byte) (int, cl.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.getObject(uintptr(kernel), kindKernel)
	if k == nil {
		return 0, cl.InvalidKernel
	}
	if s.faults.KernelInfo {
		return 0, cl.OutOfResources
	}
	switch param {
	case cl.KernelFunctionName:
		return cl.PutString(k.name, value)
	case cl.KernelNumArgs:
		return cl.PutUint32(0, value)
	}
	return 0, cl.InvalidValue
}

// ReleaseKernel implements cl.API.
func (s *Simulator) ReleaseKernel(kernel cl.Kernel) cl.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseObject(uintptr(kernel), kindKernel, cl.InvalidKernel)
}
