package clrt

import (
	"time"

	"github.com/gomlx/goclrt/cl"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const (
	buildLogHeader = "############## Build log ##############"
	buildLogFooter = "#######################################"

	noKernelsWarning = "Could not build all kernels in program. Since this happens on some platforms, the kernel table " +
		"is left empty and kernels will be looked up individually by name."
)

// clBuildLog fetches the build log of program for device.
func clBuildLog(api cl.API, program cl.Program, device cl.DeviceID) (string, error) {
	return cl.QueryString("clGetProgramBuildInfo", func(value []byte) (int, cl.Status) {
		return api.GetProgramBuildInfo(program, device, cl.ProgramBuildLog, value)
	})
}

// clKernels enumerates the kernels of a built program. It returns an empty table if the back end reports no kernels
// in batch (or fails to count them), and an error if creating or naming the kernels fails.
func clKernels(api cl.API, program cl.Program) (kernels map[string]*Kernel, degraded bool, err error) {
	num, status := api.CreateKernelsInProgram(program, nil)
	if status != cl.Success || num == 0 {
		klog.V(1).Infof("clCreateKernelsInProgram reported %d kernels, status %s", num, status)
		return map[string]*Kernel{}, true, nil
	}
	handles := make([]cl.Kernel, num)
	if _, status = api.CreateKernelsInProgram(program, handles); status != cl.Success {
		err = cl.StatusError("clCreateKernelsInProgram", status)
		return nil, false, withCause(ErrKernelEnumeration, err, "listing %d kernels", num)
	}

	kernels = make(map[string]*Kernel, num)
	for ii, handle := range handles {
		name, err := cl.QueryString("clGetKernelInfo", func(value []byte) (int, cl.Status) {
			return api.GetKernelInfo(handle, cl.KernelFunctionName, value)
		})
		if err != nil {
			// Discard the partially built table: every handle enumerated is owned here.
			for _, h := range handles {
				if status := api.ReleaseKernel(h); status != cl.Success {
					klog.Errorf("failed to release kernel %#x: %s", uintptr(h), status)
				}
			}
			return nil, false, withCause(ErrKernelEnumeration, err, "kernel #%d of %d", ii, num)
		}
		kernels[name] = &Kernel{name: name, handle: handle}
	}
	return kernels, false, nil
}

// CreateProgram compiles source for the device with the given global index, see CreateProgramOnDevice.
func (m *Manager) CreateProgram(source, options string, deviceID int) (*Program, error) {
	device, found := m.FindDevice(deviceID)
	if !found {
		m.metrics.compiled(ResultNoDevice)
		return nil, errors.WithMessagef(ErrNoDevice, "create program: device #%d (%d devices available)", deviceID, m.NumDevices())
	}
	return m.CreateProgramOnDevice(source, options, device)
}

// CreateProgramFromFile reads the source from path and compiles it for the device with the given global index.
// It fails with ErrPathNotFound if the file can't be read.
func (m *Manager) CreateProgramFromFile(path, options string, deviceID int) (*Program, error) {
	source, err := m.readSource(path)
	if err != nil {
		return nil, err
	}
	return m.CreateProgram(source, options, deviceID)
}

// CreateProgramFromFileOnDevice reads the source from path and compiles it for device.
// It fails with ErrPathNotFound if the file can't be read.
func (m *Manager) CreateProgramFromFileOnDevice(path, options string, device *Device) (*Program, error) {
	source, err := m.readSource(path)
	if err != nil {
		return nil, err
	}
	return m.CreateProgramOnDevice(source, options, device)
}

func (m *Manager) readSource(path string) (string, error) {
	contents, err := m.readFile(path)
	if err != nil {
		return "", withCause(ErrPathNotFound, err, "create program from file %q", path)
	}
	return string(contents), nil
}

// CreateProgramOnDevice compiles source for device and enumerates its kernels.
//
// The configured default build options (Config.BuildOptions) are prepended to options.
//
// If the build fails, the build log is sent to the diagnostics sink and a *BuildError (matching ErrBuildFailed) is
// returned. If the back end doesn't enumerate the kernels of a successful build, a warning is reported and the
// Program is returned with an empty kernel table: use Program.LookupKernel to find kernels by name.
func (m *Manager) CreateProgramOnDevice(source, options string, device *Device) (program *Program, err error) {
	if device == nil {
		m.metrics.compiled(ResultNoDevice)
		return nil, errors.WithMessage(ErrNoDevice, "create program: nil device")
	}
	if device.Context().released() || device.Queue().released() {
		m.metrics.compiled(ResultNoDevice)
		return nil, errors.WithMessagef(ErrNoDevice, "device %s was released with its platform", device)
	}
	result := ResultError
	defer func() { m.metrics.compiled(result) }()

	clProgram, status := m.api.CreateProgramWithSource(device.Context().Handle(), source)
	if err = cl.StatusError("clCreateProgramWithSource", status); err != nil {
		return nil, errors.WithMessagef(err, "create program for %s", device)
	}
	// The module is owned here until it's handed to the Program.
	defer func() {
		if err != nil {
			if status := m.api.ReleaseProgram(clProgram); status != cl.Success {
				klog.Errorf("failed to release program after error: %s", status)
			}
		}
	}()

	options = m.config.buildOptions(options)
	start := time.Now()
	status = m.api.BuildProgram(clProgram, []cl.DeviceID{device.handle}, options)
	m.metrics.observeBuild(start)
	if status != cl.Success {
		buildErr := &BuildError{Device: device.Name(), cause: cl.StatusError("clBuildProgram", status)}
		if status == cl.BuildProgramFailure {
			result = ResultBuildFailed
			buildLog, logErr := clBuildLog(m.api, clProgram, device.handle)
			if logErr != nil {
				m.diagnostics.Report(SeverityError, "failed to retrieve build log: "+logErr.Error())
			} else {
				buildErr.Log = buildLog
				m.diagnostics.Report(SeverityError, buildLogHeader+"\n"+buildLog+"\n"+buildLogFooter)
			}
		}
		return nil, buildErr
	}

	kernels, degraded, err := clKernels(m.api, clProgram)
	if err != nil {
		result = ResultKernelsFailed
		return nil, errors.WithMessagef(err, "create program for %s", device)
	}
	if degraded {
		result = ResultDegraded
		m.diagnostics.Report(SeverityWarning, noKernelsWarning)
	} else {
		result = ResultOK
	}
	program = newProgram(m.api, device, clProgram, options, kernels)
	klog.V(1).Infof("compiled %s", program)
	return program, nil
}

// ProgramRequest is one compilation of CreatePrograms.
type ProgramRequest struct {
	Source, Options string

	// Device to compile for. If nil, DeviceID is resolved with FindDevice.
	Device   *Device
	DeviceID int
}

// CreatePrograms compiles the requests concurrently. It returns the programs in request order, or the first error,
// in which case every program already built is released.
func (m *Manager) CreatePrograms(requests []ProgramRequest) ([]*Program, error) {
	programs := make([]*Program, len(requests))
	var g errgroup.Group
	for ii, req := range requests {
		g.Go(func() error {
			var err error
			if req.Device != nil {
				programs[ii], err = m.CreateProgramOnDevice(req.Source, req.Options, req.Device)
			} else {
				programs[ii], err = m.CreateProgram(req.Source, req.Options, req.DeviceID)
			}
			return errors.WithMessagef(err, "request #%d", ii)
		})
	}
	if err := g.Wait(); err != nil {
		for _, p := range programs {
			if p != nil {
				p.releaseOrLog()
			}
		}
		return nil, err
	}
	return programs, nil
}
