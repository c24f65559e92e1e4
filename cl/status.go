package cl

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status is the native return code of an API call. Success is 0, errors are negative.
type Status int32

const (
	Success                  Status = 0
	DeviceNotFound           Status = -1
	DeviceNotAvailable       Status = -2
	CompilerNotAvailable     Status = -3
	MemObjectAllocFailure    Status = -4
	OutOfResources           Status = -5
	OutOfHostMemory          Status = -6
	BuildProgramFailure      Status = -11
	InvalidValue             Status = -30
	InvalidDeviceType        Status = -31
	InvalidPlatform          Status = -32
	InvalidDevice            Status = -33
	InvalidContext           Status = -34
	InvalidQueueProperties   Status = -35
	InvalidCommandQueue      Status = -36
	InvalidBinary            Status = -42
	InvalidBuildOptions      Status = -43
	InvalidProgram           Status = -44
	InvalidProgramExecutable Status = -45
	InvalidKernelName        Status = -46
	InvalidKernelDefinition  Status = -47
	InvalidKernel            Status = -48
	PlatformNotFoundKHR      Status = -1001
)

var statusNames = map[Status]string{
	Success:                  "CL_SUCCESS",
	DeviceNotFound:           "CL_DEVICE_NOT_FOUND",
	DeviceNotAvailable:       "CL_DEVICE_NOT_AVAILABLE",
	CompilerNotAvailable:     "CL_COMPILER_NOT_AVAILABLE",
	MemObjectAllocFailure:    "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	OutOfResources:           "CL_OUT_OF_RESOURCES",
	OutOfHostMemory:          "CL_OUT_OF_HOST_MEMORY",
	BuildProgramFailure:      "CL_BUILD_PROGRAM_FAILURE",
	InvalidValue:             "CL_INVALID_VALUE",
	InvalidDeviceType:        "CL_INVALID_DEVICE_TYPE",
	InvalidPlatform:          "CL_INVALID_PLATFORM",
	InvalidDevice:            "CL_INVALID_DEVICE",
	InvalidContext:           "CL_INVALID_CONTEXT",
	InvalidQueueProperties:   "CL_INVALID_QUEUE_PROPERTIES",
	InvalidCommandQueue:      "CL_INVALID_COMMAND_QUEUE",
	InvalidBinary:            "CL_INVALID_BINARY",
	InvalidBuildOptions:      "CL_INVALID_BUILD_OPTIONS",
	InvalidProgram:           "CL_INVALID_PROGRAM",
	InvalidProgramExecutable: "CL_INVALID_PROGRAM_EXECUTABLE",
	InvalidKernelName:        "CL_INVALID_KERNEL_NAME",
	InvalidKernelDefinition:  "CL_INVALID_KERNEL_DEFINITION",
	InvalidKernel:            "CL_INVALID_KERNEL",
	PlatformNotFoundKHR:      "CL_PLATFORM_NOT_FOUND_KHR",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CL_UNKNOWN_ERROR(%d)", int32(s))
}

// Error is a failed native API call.
type Error struct {
	// Func is the name of the native function that failed, e.g. "clBuildProgram".
	Func   string
	Status Status
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %s (%d)", e.Func, e.Status, int32(e.Status))
}

// StatusError converts the status returned by the native function fn to a Go error, with a stack trace (see
// github.com/pkg/errors package). It returns nil if status is Success.
func StatusError(fn string, status Status) error {
	if status == Success {
		return nil
	}
	return errors.WithStack(&Error{Func: fn, Status: status})
}

// IsStatus reports whether err was caused by a native call that returned status.
func IsStatus(err error, status Status) bool {
	var clErr *Error
	if errors.As(err, &clErr) {
		return clErr.Status == status
	}
	return false
}
