package clrt

import (
	"github.com/pkg/errors"
)

// Errors returned by the runtime. They are wrapped with context, test for them with errors.Is.
var (
	ErrNoPlatform         = errors.New("no OpenCL platform found")
	ErrNoDevices          = errors.New("no devices for the platform found")
	ErrNoDevice           = errors.New("no device found")
	ErrPathNotFound       = errors.New("path not found")
	ErrBuildFailed        = errors.New("clBuildProgram failed")
	ErrKernelEnumeration  = errors.New("kernel enumeration failed")
	ErrKernelNotFound     = errors.New("kernel not found")
	ErrPlatformInfo       = errors.New("platform info query failed")
	ErrDeviceInfo         = errors.New("device info query failed")
	ErrContextCreation    = errors.New("context creation failed")
	ErrAlreadyInitialized = errors.New("manager already initialized")
	ErrNotInitialized     = errors.New("manager not initialized")
	ErrReleased           = errors.New("program already released")
)

// BuildError is returned when a program fails to compile. It matches ErrBuildFailed with errors.Is.
type BuildError struct {
	// Device is the name of the device the program was built for.
	Device string

	// Log is the compiler output, empty if it could not be retrieved.
	Log string

	cause error
}

// Error implements error.
func (e *BuildError) Error() string {
	return ErrBuildFailed.Error() + " for device " + e.Device + ": " + e.cause.Error()
}

// Is makes errors.Is(err, ErrBuildFailed) true.
func (e *BuildError) Is(target error) bool {
	return target == ErrBuildFailed
}

// Unwrap returns the native error.
func (e *BuildError) Unwrap() error {
	return e.cause
}

// causeError tags a native cause with one of the sentinel errors above: it matches the sentinel with errors.Is, and
// unwraps to the cause, so cl.IsStatus keeps working.
type causeError struct {
	sentinel, cause error
}

func (e *causeError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *causeError) Is(target error) bool {
	return target == e.sentinel
}

func (e *causeError) Unwrap() error {
	return e.cause
}

// withCause returns cause tagged with sentinel and annotated with the formatted message.
func withCause(sentinel, cause error, format string, args ...any) error {
	return errors.WithMessagef(&causeError{sentinel: sentinel, cause: cause}, format, args...)
}
