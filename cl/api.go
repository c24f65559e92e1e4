package cl

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// API is the native compute API implemented by a back end.
//
// Methods follow the native conventions: calls that fill a caller supplied slice work as a two-step query. When
// given a nil (or empty) destination they only report the required size (in elements for handle lists, in bytes
// for info queries), and when given a large enough destination they fill it and report the number of elements or
// bytes written.
//
// Implementations must be safe for concurrent use.
type API interface {
	// GetPlatformIDs lists the available platforms.
	GetPlatformIDs(ids []PlatformID) (num int, status Status)

	// GetPlatformInfo queries a platform string attribute. Strings are NUL terminated.
	GetPlatformInfo(platform PlatformID, param PlatformInfo, value []byte) (size int, status Status)

	// GetDeviceIDs lists the devices of the given type class. It returns DeviceNotFound if there are none.
	GetDeviceIDs(platform PlatformID, deviceType DeviceType, ids []DeviceID) (num int, status Status)

	// GetDeviceInfo queries a device attribute, see DeviceInfo for the value encodings.
	GetDeviceInfo(device DeviceID, param DeviceInfo, value []byte) (size int, status Status)

	// CreateContext creates one context spanning all given devices. The notify callback may be called from any
	// goroutine, and may be nil.
	CreateContext(devices []DeviceID, notify NotifyFn) (Context, Status)
	ReleaseContext(ctx Context) Status

	CreateCommandQueue(ctx Context, device DeviceID, properties QueueProperties) (CommandQueue, Status)
	ReleaseCommandQueue(queue CommandQueue) Status

	// CreateProgramWithSource creates a (not yet built) program from source text.
	CreateProgramWithSource(ctx Context, source string) (Program, Status)

	// BuildProgram compiles and links the program for the given devices. It returns BuildProgramFailure if the
	// source doesn't compile, in which case the build log is available with GetProgramBuildInfo.
	BuildProgram(program Program, devices []DeviceID, options string) Status
	GetProgramBuildInfo(program Program, device DeviceID, param ProgramBuildInfo, value []byte) (size int, status Status)
	ReleaseProgram(program Program) Status

	// CreateKernelsInProgram creates a kernel for every entry point of a built program.
	CreateKernelsInProgram(program Program, kernels []Kernel) (num int, status Status)

	// CreateKernel creates the kernel for the entry point named name.
	CreateKernel(program Program, name string) (Kernel, Status)
	GetKernelInfo(kernel Kernel, param KernelInfo, value []byte) (size int, status Status)
	ReleaseKernel(kernel Kernel) Status
}

// QueryString runs a two-step string query: query is first called with a nil buffer to get the required size, and
// then with a buffer of that size. The trailing NUL terminator is removed.
func QueryString(fn string, query func(value []byte) (int, Status)) (string, error) {
	size, status := query(nil)
	if err := StatusError(fn, status); err != nil {
		return "", errors.WithMessage(err, "failed to query size")
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, size)
	_, status = query(buf)
	if err := StatusError(fn, status); err != nil {
		return "", err
	}
	if idx := bytes.IndexByte(buf, 0); idx >= 0 {
		buf = buf[:idx]
	}
	return string(buf), nil
}

// QueryUint runs a fixed size numeric query, for parameters of width 4 (uint32) or 8 (uint64 or size_t) bytes.
//
// size_t parameters are 4 bytes wide on 32-bit drivers: a query of width 8 also accepts a 4 bytes answer.
func QueryUint(fn string, width int, query func(value []byte) (int, Status)) (uint64, error) {
	buf := make([]byte, width)
	n, status := query(buf)
	if err := StatusError(fn, status); err != nil {
		return 0, err
	}
	switch {
	case n == 4 && (width == 4 || width == 8):
		return uint64(binary.NativeEndian.Uint32(buf)), nil
	case n == 8 && width == 8:
		return binary.NativeEndian.Uint64(buf), nil
	}
	return 0, errors.Errorf("%s returned %d bytes, expected %d", fn, n, width)
}

// QueryUintSlice runs a two-step query of an array of count size_t values, each 4 or 8 bytes wide depending on the
// driver. If count is 0, the values are assumed to be 8 bytes wide.
func QueryUintSlice(fn string, count int, query func(value []byte) (int, Status)) ([]uint64, error) {
	size, status := query(nil)
	if err := StatusError(fn, status); err != nil {
		return nil, errors.WithMessage(err, "failed to query size")
	}
	buf := make([]byte, size)
	if size > 0 {
		if _, status = query(buf); status != Success {
			return nil, StatusError(fn, status)
		}
	}
	width := 8
	if count > 0 {
		width = size / count
		if (width != 4 && width != 8) || width*count != size {
			return nil, errors.Errorf("%s returned %d bytes for %d values", fn, size, count)
		}
	}
	values := make([]uint64, size/width)
	for ii := range values {
		if width == 4 {
			values[ii] = uint64(binary.NativeEndian.Uint32(buf[ii*4:]))
		} else {
			values[ii] = binary.NativeEndian.Uint64(buf[ii*8:])
		}
	}
	return values, nil
}

// PutString encodes s as a NUL terminated string into value, following the two-step query convention. It returns
// the required size and the status: InvalidValue if value is not empty but too small.
//
// It is a helper for back end implementations.
func PutString(s string, value []byte) (int, Status) {
	size := len(s) + 1
	if len(value) == 0 {
		return size, Success
	}
	if len(value) < size {
		return size, InvalidValue
	}
	copy(value, s)
	value[len(s)] = 0
	return size, Success
}

// PutUint32 encodes v into value, a helper for back end implementations.
func PutUint32(v uint32, value []byte) (int, Status) {
	if len(value) == 0 {
		return 4, Success
	}
	if len(value) < 4 {
		return 4, InvalidValue
	}
	binary.NativeEndian.PutUint32(value, v)
	return 4, Success
}

// PutUint64 encodes v into value, a helper for back end implementations.
func PutUint64(v uint64, value []byte) (int, Status) {
	if len(value) == 0 {
		return 8, Success
	}
	if len(value) < 8 {
		return 8, InvalidValue
	}
	binary.NativeEndian.PutUint64(value, v)
	return 8, Success
}

// PutUint32Slice encodes vs as 4 bytes values into value, a helper for back end implementations.
func PutUint32Slice(vs []uint64, value []byte) (int, Status) {
	size := 4 * len(vs)
	if len(value) == 0 {
		return size, Success
	}
	if len(value) < size {
		return size, InvalidValue
	}
	for ii, v := range vs {
		binary.NativeEndian.PutUint32(value[ii*4:], uint32(v))
	}
	return size, Success
}

// PutUint64Slice encodes vs into value, a helper for back end implementations.
func PutUint64Slice(vs []uint64, value []byte) (int, Status) {
	size := 8 * len(vs)
	if len(value) == 0 {
		return size, Success
	}
	if len(value) < size {
		return size, InvalidValue
	}
	for ii, v := range vs {
		binary.NativeEndian.PutUint64(value[ii*8:], v)
	}
	return size, Success
}
