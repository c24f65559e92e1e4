// Package cl models the native heterogeneous compute API (platforms, devices, contexts, command queues,
// programs and kernels) used by the goclrt runtime.
//
// The API interface mirrors the native call sequence one-to-one, so that a back end is a thin translation layer:
// see sub-packages `simulator` (pure Go, always available) and `opencl` (cgo, requires the "opencl" build tag).
//
// Back ends are registered by name with RegisterBackend, and opened with GetBackend.
package cl

import (
	"strings"

	"github.com/pkg/errors"
)

// Opaque native handles. Their values are only meaningful to the back end that created them.
type (
	PlatformID   uintptr
	DeviceID     uintptr
	Context      uintptr
	CommandQueue uintptr
	Program      uintptr
	Kernel       uintptr
)

// DeviceType is the bit-field of device type classes, used to discover devices.
type DeviceType uint64

const (
	DeviceTypeDefault     DeviceType = 1 << 0
	DeviceTypeCPU         DeviceType = 1 << 1
	DeviceTypeGPU         DeviceType = 1 << 2
	DeviceTypeAccelerator DeviceType = 1 << 3
	DeviceTypeCustom      DeviceType = 1 << 4
	DeviceTypeAll         DeviceType = 0xFFFFFFFF
)

// DiscoveryOrder is the fixed priority in which device type classes are queried when a platform is created.
var DiscoveryOrder = []DeviceType{DeviceTypeGPU, DeviceTypeAccelerator, DeviceTypeCPU}

// String implements fmt.Stringer.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeDefault:
		return "default"
	case DeviceTypeCPU:
		return "cpu"
	case DeviceTypeGPU:
		return "gpu"
	case DeviceTypeAccelerator:
		return "accelerator"
	case DeviceTypeCustom:
		return "custom"
	case DeviceTypeAll:
		return "all"
	}
	return "unknown"
}

// ParseDeviceType converts a device type class name ("gpu", "cpu", "accelerator") to a DeviceType.
func ParseDeviceType(name string) (DeviceType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gpu":
		return DeviceTypeGPU, nil
	case "cpu":
		return DeviceTypeCPU, nil
	case "accelerator", "acc":
		return DeviceTypeAccelerator, nil
	}
	return 0, errors.Errorf("unknown device type %q, valid values are gpu, cpu and accelerator", name)
}

// PlatformInfo parameters for API.GetPlatformInfo.
type PlatformInfo uint32

const (
	PlatformProfile    PlatformInfo = 0x0900
	PlatformVersion    PlatformInfo = 0x0901
	PlatformName       PlatformInfo = 0x0902
	PlatformVendor     PlatformInfo = 0x0903
	PlatformExtensions PlatformInfo = 0x0904
)

// DeviceInfo parameters for API.GetDeviceInfo.
//
// String parameters return NUL terminated text. Numeric parameters return native-endian values of the width
// documented next to them.
type DeviceInfo uint32

const (
	DeviceInfoType                  DeviceInfo = 0x1000 // uint64 bit-field
	DeviceInfoMaxComputeUnits       DeviceInfo = 0x1002 // uint32
	DeviceInfoMaxWorkItemDimensions DeviceInfo = 0x1003 // uint32
	DeviceInfoMaxWorkGroupSize      DeviceInfo = 0x1004 // size_t (uint64)
	DeviceInfoMaxWorkItemSizes      DeviceInfo = 0x1005 // size_t[dimensions]
	DeviceInfoMaxClockFrequency     DeviceInfo = 0x100C // uint32, MHz
	DeviceInfoMaxMemAllocSize       DeviceInfo = 0x1010 // uint64
	DeviceInfoGlobalMemSize         DeviceInfo = 0x101F // uint64
	DeviceInfoLocalMemSize          DeviceInfo = 0x1023 // uint64
	DeviceInfoAvailable             DeviceInfo = 0x1027 // uint32 bool
	DeviceInfoName                  DeviceInfo = 0x102B // string
	DeviceInfoVendor                DeviceInfo = 0x102C // string
	DeviceInfoDriverVersion         DeviceInfo = 0x102D // string
	DeviceInfoProfile               DeviceInfo = 0x102E // string
	DeviceInfoVersion               DeviceInfo = 0x102F // string
	DeviceInfoExtensions            DeviceInfo = 0x1030 // string
)

// ProgramBuildInfo parameters for API.GetProgramBuildInfo.
type ProgramBuildInfo uint32

const (
	ProgramBuildStatus  ProgramBuildInfo = 0x1181
	ProgramBuildOptions ProgramBuildInfo = 0x1182
	ProgramBuildLog     ProgramBuildInfo = 0x1183
)

// KernelInfo parameters for API.GetKernelInfo.
type KernelInfo uint32

const (
	KernelFunctionName KernelInfo = 0x1190
	KernelNumArgs      KernelInfo = 0x1191
)

// QueueProperties bit-field for API.CreateCommandQueue.
type QueueProperties uint64

const (
	QueueOutOfOrderExecModeEnable QueueProperties = 1 << 0
	QueueProfilingEnable          QueueProperties = 1 << 1
)

// NotifyFn receives error information reported asynchronously by a context.
type NotifyFn func(errInfo string)
