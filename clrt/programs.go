package clrt

import (
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gomlx/goclrt/cl"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Kernel is a named entry point of a compiled Program. It is owned by its Program.
type Kernel struct {
	name   string
	handle cl.Kernel
}

// Name of the kernel function.
func (k *Kernel) Name() string {
	return k.name
}

// Handle returns the native kernel, valid until its Program is released.
func (k *Kernel) Handle() cl.Kernel {
	return k.handle
}

// Program is a compiled module and its kernels, built for one device.
//
// It holds its own leases on the device's context and command queue, so it stays valid even if the Platform it
// was built from is destroyed. Release it when no longer needed; it is also released when garbage collected.
type Program struct {
	api        cl.API
	id         uuid.UUID
	deviceName string
	options    string
	context    *Context
	queue      *CommandQueue
	program    cl.Program

	mu      sync.RWMutex
	kernels map[string]*Kernel
}

var numPrograms atomic.Int64

// ProgramsAlive returns the number of Programs created and not yet released.
func ProgramsAlive() int64 {
	return numPrograms.Load()
}

// newProgram takes ownership of program and kernels, and acquires new leases on the device's context and queue.
func newProgram(api cl.API, device *Device, program cl.Program, options string, kernels map[string]*Kernel) *Program {
	p := &Program{
		api:        api,
		id:         uuid.New(),
		deviceName: device.Name(),
		options:    options,
		context:    device.Context().Acquire(),
		queue:      device.Queue().Acquire(),
		program:    program,
		kernels:    kernels,
	}
	numPrograms.Add(1)
	runtime.SetFinalizer(p, func(p *Program) { p.releaseOrLog() })
	return p
}

// Release the kernels, the compiled module and the program's leases on context and queue.
// It is idempotent.
func (p *Program) Release() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.context == nil {
		// Already released, no-op.
		return nil
	}
	defer runtime.KeepAlive(p)
	var firstErr error
	keepFirst := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, kernel := range p.kernels {
		keepFirst(cl.StatusError("clReleaseKernel", p.api.ReleaseKernel(kernel.handle)))
	}
	p.kernels = nil
	keepFirst(cl.StatusError("clReleaseProgram", p.api.ReleaseProgram(p.program)))
	keepFirst(p.queue.Release())
	keepFirst(p.context.Release())
	p.context, p.queue = nil, nil
	numPrograms.Add(-1)
	return firstErr
}

// releaseOrLog releases the Program and logs any errors.
func (p *Program) releaseOrLog() {
	if err := p.Release(); err != nil {
		klog.Errorf("Program.Release failed: %+v", err)
	}
}

// ID uniquely identifies the program within the process.
func (p *Program) ID() uuid.UUID {
	return p.id
}

// Options returns the build options used to compile the program.
func (p *Program) Options() string {
	return p.options
}

// Kernel returns the kernel with the given name, if it is in the kernel table.
func (p *Program) Kernel(name string) (*Kernel, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	k, found := p.kernels[name]
	return k, found
}

// Kernels returns the sorted names of the kernels in the kernel table.
func (p *Program) Kernels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.kernels))
	for name := range p.kernels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NumKernels returns the number of kernels in the kernel table.
func (p *Program) NumKernels() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.kernels)
}

// LookupKernel returns the kernel with the given name, creating it by name and inserting it in the kernel table if
// it is not there yet. This is how kernels are found on back ends that don't enumerate kernels in batch.
//
// It returns an error matching ErrKernelNotFound if the program has no entry point with that name.
func (p *Program) LookupKernel(name string) (*Kernel, error) {
	if k, found := p.Kernel(name); found {
		return k, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.context == nil {
		return nil, errors.WithMessagef(ErrReleased, "looking up kernel %q", name)
	}
	if k, found := p.kernels[name]; found {
		return k, nil
	}
	handle, status := p.api.CreateKernel(p.program, name)
	if status == cl.InvalidKernelName {
		return nil, errors.WithMessagef(ErrKernelNotFound, "program %s has no kernel %q", p.id, name)
	}
	if err := cl.StatusError("clCreateKernel", status); err != nil {
		return nil, errors.WithMessagef(err, "program %s, kernel %q", p.id, name)
	}
	k := &Kernel{name: name, handle: handle}
	if p.kernels == nil {
		p.kernels = make(map[string]*Kernel)
	}
	p.kernels[name] = k
	return k, nil
}

// Context returns the program's lease on the shared context, for the dispatcher building units of work.
// Use Context.Acquire to keep it beyond the lifetime of the program.
func (p *Program) Context() *Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.context
}

// Queue returns the program's lease on the command queue of the device it was built for.
func (p *Program) Queue() *CommandQueue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.queue
}

// Handle returns the native compiled module, valid until the program is released.
func (p *Program) Handle() cl.Program {
	return p.program
}

// String implements fmt.Stringer.
func (p *Program) String() string {
	return fmt.Sprintf("Program[%s, device=%q, kernels=%v]", p.id, p.deviceName, p.Kernels())
}
