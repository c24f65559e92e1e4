//go:build opencl && cgo

package opencl

/*
#cgo linux LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <stdint.h>
#include <stdlib.h>
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif

extern void goContextNotify(char *errinfo, uintptr_t userData);

static void CL_CALLBACK contextNotify(const char *errinfo, const void *privateInfo, size_t cb, void *userData) {
	goContextNotify((char *)errinfo, (uintptr_t)userData);
}

static cl_context createContext(cl_uint numDevices, const cl_device_id *devices, uintptr_t userData, cl_int *err) {
	if (userData == 0) {
		return clCreateContext(NULL, numDevices, devices, NULL, NULL, err);
	}
	return clCreateContext(NULL, numDevices, devices, contextNotify, (void *)userData, err);
}
*/
import "C"
import (
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/gomlx/goclrt/cl"
)

func init() {
	cl.RegisterBackend("opencl", func() (cl.API, error) {
		return New(), nil
	})
}

// API implements cl.API with the native OpenCL library.
type API struct {
	// notifyHandles keep the context notification callbacks alive until their context is released.
	muNotify      sync.Mutex
	notifyHandles map[cl.Context]cgo.Handle
}

var _ cl.API = (*API)(nil)

// New returns the OpenCL back end.
func New() *API {
	return &API{notifyHandles: make(map[cl.Context]cgo.Handle)}
}

func status(st C.cl_int) cl.Status {
	return cl.Status(st)
}

// bufPtr returns a pointer to the start of value, or nil for a size query.
func bufPtr(value []byte) unsafe.Pointer {
	if len(value) == 0 {
		return nil
	}
	return unsafe.Pointer(&value[0])
}

func cPlatform(id cl.PlatformID) C.cl_platform_id {
	return C.cl_platform_id(unsafe.Pointer(uintptr(id)))
}

func cDevice(id cl.DeviceID) C.cl_device_id {
	return C.cl_device_id(unsafe.Pointer(uintptr(id)))
}

func cDevices(ids []cl.DeviceID) []C.cl_device_id {
	devices := make([]C.cl_device_id, len(ids))
	for ii, id := range ids {
		devices[ii] = cDevice(id)
	}
	return devices
}

func cContext(ctx cl.Context) C.cl_context {
	return C.cl_context(unsafe.Pointer(uintptr(ctx)))
}

func cQueue(queue cl.CommandQueue) C.cl_command_queue {
	return C.cl_command_queue(unsafe.Pointer(uintptr(queue)))
}

func cProgram(program cl.Program) C.cl_program {
	return C.cl_program(unsafe.Pointer(uintptr(program)))
}

func cKernel(kernel cl.Kernel) C.cl_kernel {
	return C.cl_kernel(unsafe.Pointer(uintptr(kernel)))
}

// GetPlatformIDs implements cl.API.
func (a *API) GetPlatformIDs(ids []cl.PlatformID) (int, cl.Status) {
	var num C.cl_uint
	if len(ids) == 0 {
		st := C.clGetPlatformIDs(0, nil, &num)
		return int(num), status(st)
	}
	platforms := make([]C.cl_platform_id, len(ids))
	st := C.clGetPlatformIDs(C.cl_uint(len(platforms)), &platforms[0], &num)
	for ii := 0; ii < int(num) && ii < len(ids); ii++ {
		ids[ii] = cl.PlatformID(uintptr(unsafe.Pointer(platforms[ii])))
	}
	return min(int(num), len(ids)), status(st)
}

// GetPlatformInfo implements cl.API.
func (a *API) GetPlatformInfo(platform cl.PlatformID, param cl.PlatformInfo, value []byte) (int, cl.Status) {
	var size C.size_t
	st := C.clGetPlatformInfo(cPlatform(platform), C.cl_platform_info(param), C.size_t(len(value)), bufPtr(value), &size)
	return int(size), status(st)
}

// GetDeviceIDs implements cl.API.
func (a *API) GetDeviceIDs(platform cl.PlatformID, deviceType cl.DeviceType, ids []cl.DeviceID) (int, cl.Status) {
	var num C.cl_uint
	if len(ids) == 0 {
		st := C.clGetDeviceIDs(cPlatform(platform), C.cl_device_type(deviceType), 0, nil, &num)
		return int(num), status(st)
	}
	devices := make([]C.cl_device_id, len(ids))
	st := C.clGetDeviceIDs(cPlatform(platform), C.cl_device_type(deviceType), C.cl_uint(len(devices)), &devices[0], &num)
	for ii := 0; ii < int(num) && ii < len(ids); ii++ {
		ids[ii] = cl.DeviceID(uintptr(unsafe.Pointer(devices[ii])))
	}
	return min(int(num), len(ids)), status(st)
}

// GetDeviceInfo implements cl.API.
func (a *API) GetDeviceInfo(device cl.DeviceID, param cl.DeviceInfo, value []byte) (int, cl.Status) {
	var size C.size_t
	st := C.clGetDeviceInfo(cDevice(device), C.cl_device_info(param), C.size_t(len(value)), bufPtr(value), &size)
	return int(size), status(st)
}

// CreateContext implements cl.API.
func (a *API) CreateContext(devices []cl.DeviceID, notify cl.NotifyFn) (cl.Context, cl.Status) {
	if len(devices) == 0 {
		return 0, cl.InvalidValue
	}
	ids := cDevices(devices)
	var handle cgo.Handle
	if notify != nil {
		handle = cgo.NewHandle(notify)
	}
	var st C.cl_int
	cCtx := C.createContext(C.cl_uint(len(ids)), &ids[0], C.uintptr_t(handle), &st)
	if st != C.CL_SUCCESS {
		if handle != 0 {
			handle.Delete()
		}
		return 0, status(st)
	}
	ctx := cl.Context(uintptr(unsafe.Pointer(cCtx)))
	if handle != 0 {
		a.muNotify.Lock()
		a.notifyHandles[ctx] = handle
		a.muNotify.Unlock()
	}
	return ctx, cl.Success
}

// ReleaseContext implements cl.API.
func (a *API) ReleaseContext(ctx cl.Context) cl.Status {
	st := status(C.clReleaseContext(cContext(ctx)))
	a.muNotify.Lock()
	if handle, found := a.notifyHandles[ctx]; found {
		handle.Delete()
		delete(a.notifyHandles, ctx)
	}
	a.muNotify.Unlock()
	return st
}

// CreateCommandQueue implements cl.API.
func (a *API) CreateCommandQueue(ctx cl.Context, device cl.DeviceID, properties cl.QueueProperties) (cl.CommandQueue, cl.Status) {
	var st C.cl_int
	queue := C.clCreateCommandQueue(cContext(ctx), cDevice(device), C.cl_command_queue_properties(properties), &st)
	if st != C.CL_SUCCESS {
		return 0, status(st)
	}
	return cl.CommandQueue(uintptr(unsafe.Pointer(queue))), cl.Success
}

// ReleaseCommandQueue implements cl.API.
func (a *API) ReleaseCommandQueue(queue cl.CommandQueue) cl.Status {
	return status(C.clReleaseCommandQueue(cQueue(queue)))
}

// CreateProgramWithSource implements cl.API.
func (a *API) CreateProgramWithSource(ctx cl.Context, source string) (cl.Program, cl.Status) {
	cSource := C.CString(source)
	defer C.free(unsafe.Pointer(cSource))
	length := C.size_t(len(source))
	var st C.cl_int
	program := C.clCreateProgramWithSource(cContext(ctx), 1, &cSource, &length, &st)
	if st != C.CL_SUCCESS {
		return 0, status(st)
	}
	return cl.Program(uintptr(unsafe.Pointer(program))), cl.Success
}

// BuildProgram implements cl.API.
func (a *API) BuildProgram(program cl.Program, devices []cl.DeviceID, options string) cl.Status {
	var cOptions *C.char
	if options != "" {
		cOptions = C.CString(options)
		defer C.free(unsafe.Pointer(cOptions))
	}
	var idsPtr *C.cl_device_id
	ids := cDevices(devices)
	if len(ids) > 0 {
		idsPtr = &ids[0]
	}
	return status(C.clBuildProgram(cProgram(program), C.cl_uint(len(ids)), idsPtr, cOptions, nil, nil))
}

// GetProgramBuildInfo implements cl.API.
func (a *API) GetProgramBuildInfo(program cl.Program, device cl.DeviceID, param cl.ProgramBuildInfo, value []byte) (int, cl.Status) {
	var size C.size_t
	st := C.clGetProgramBuildInfo(cProgram(program), cDevice(device), C.cl_program_build_info(param),
		C.size_t(len(value)), bufPtr(value), &size)
	return int(size), status(st)
}

// ReleaseProgram implements cl.API.
func (a *API) ReleaseProgram(program cl.Program) cl.Status {
	return status(C.clReleaseProgram(cProgram(program)))
}

// CreateKernelsInProgram implements cl.API.
func (a *API) CreateKernelsInProgram(program cl.Program, kernels []cl.Kernel) (int, cl.Status) {
	var num C.cl_uint
	if len(kernels) == 0 {
		st := C.clCreateKernelsInProgram(cProgram(program), 0, nil, &num)
		return int(num), status(st)
	}
	cKernels := make([]C.cl_kernel, len(kernels))
	st := C.clCreateKernelsInProgram(cProgram(program), C.cl_uint(len(cKernels)), &cKernels[0], &num)
	if st != C.CL_SUCCESS {
		return 0, status(st)
	}
	for ii := 0; ii < int(num) && ii < len(kernels); ii++ {
		kernels[ii] = cl.Kernel(uintptr(unsafe.Pointer(cKernels[ii])))
	}
	return min(int(num), len(kernels)), cl.Success
}

// CreateKernel implements cl.API.
func (a *API) CreateKernel(program cl.Program, name string) (cl.Kernel, cl.Status) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	var st C.cl_int
	kernel := C.clCreateKernel(cProgram(program), cName, &st)
	if st != C.CL_SUCCESS {
		return 0, status(st)
	}
	return cl.Kernel(uintptr(unsafe.Pointer(kernel))), cl.Success
}

// GetKernelInfo implements cl.API.
func (a *API) GetKernelInfo(kernel cl.Kernel, param cl.KernelInfo, value []byte) (int, cl.Status) {
	var size C.size_t
	st := C.clGetKernelInfo(cKernel(kernel), C.cl_kernel_info(param), C.size_t(len(value)), bufPtr(value), &size)
	return int(size), status(st)
}

// ReleaseKernel implements cl.API.
func (a *API) ReleaseKernel(kernel cl.Kernel) cl.Status {
	return status(C.clReleaseKernel(cKernel(kernel)))
}
