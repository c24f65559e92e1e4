package clrt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/goclrt/cl"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// DeviceInfo describes a device. It is queried once, when the device is discovered.
type DeviceInfo struct {
	Name, Vendor, Version, DriverVersion, Profile string
	Type                                          cl.DeviceType

	MaxComputeUnits       uint32
	MaxWorkGroupSize      uint64
	MaxWorkItemDimensions uint32
	MaxWorkItemSizes      []uint64

	// Memory sizes in bytes.
	GlobalMemSize, LocalMemSize, MaxMemAllocSize uint64

	// MaxClockFrequency in MHz.
	MaxClockFrequency uint32

	Extensions []string
	Available  bool
}

func clDeviceString(api cl.API, device cl.DeviceID, param cl.DeviceInfo) (string, error) {
	return cl.QueryString("clGetDeviceInfo", func(value []byte) (int, cl.Status) {
		return api.GetDeviceInfo(device, param, value)
	})
}

func clDeviceUint(api cl.API, device cl.DeviceID, param cl.DeviceInfo, width int) (uint64, error) {
	return cl.QueryUint("clGetDeviceInfo", width, func(value []byte) (int, cl.Status) {
		return api.GetDeviceInfo(device, param, value)
	})
}

// clDeviceInfo queries all the attributes of DeviceInfo. Any failure is reported, since a device that can't be
// described can't be selected by callers either.
func clDeviceInfo(api cl.API, device cl.DeviceID) (info DeviceInfo, err error) {
	strParams := []struct {
		param cl.DeviceInfo
		dst   *string
	}{
		{cl.DeviceInfoName, &info.Name},
		{cl.DeviceInfoVendor, &info.Vendor},
		{cl.DeviceInfoVersion, &info.Version},
		{cl.DeviceInfoDriverVersion, &info.DriverVersion},
		{cl.DeviceInfoProfile, &info.Profile},
	}
	for _, p := range strParams {
		if *p.dst, err = clDeviceString(api, device, p.param); err != nil {
			return info, errors.WithMessagef(err, "param=%#x", uint32(p.param))
		}
	}
	var extensions string
	if extensions, err = clDeviceString(api, device, cl.DeviceInfoExtensions); err != nil {
		return info, errors.WithMessage(err, "extensions")
	}
	info.Extensions = strings.Fields(extensions)

	var v uint64
	u32Params := []struct {
		param cl.DeviceInfo
		dst   *uint32
	}{
		{cl.DeviceInfoMaxComputeUnits, &info.MaxComputeUnits},
		{cl.DeviceInfoMaxWorkItemDimensions, &info.MaxWorkItemDimensions},
		{cl.DeviceInfoMaxClockFrequency, &info.MaxClockFrequency},
	}
	for _, p := range u32Params {
		if v, err = clDeviceUint(api, device, p.param, 4); err != nil {
			return info, errors.WithMessagef(err, "param=%#x", uint32(p.param))
		}
		*p.dst = uint32(v)
	}
	u64Params := []struct {
		param cl.DeviceInfo
		dst   *uint64
	}{
		{cl.DeviceInfoMaxWorkGroupSize, &info.MaxWorkGroupSize},
		{cl.DeviceInfoGlobalMemSize, &info.GlobalMemSize},
		{cl.DeviceInfoLocalMemSize, &info.LocalMemSize},
		{cl.DeviceInfoMaxMemAllocSize, &info.MaxMemAllocSize},
	}
	for _, p := range u64Params {
		if *p.dst, err = clDeviceUint(api, device, p.param, 8); err != nil {
			return info, errors.WithMessagef(err, "param=%#x", uint32(p.param))
		}
	}
	if v, err = clDeviceUint(api, device, cl.DeviceInfoType, 8); err != nil {
		return info, errors.WithMessage(err, "device type")
	}
	info.Type = cl.DeviceType(v)
	if v, err = clDeviceUint(api, device, cl.DeviceInfoAvailable, 4); err != nil {
		return info, errors.WithMessage(err, "availability")
	}
	info.Available = v != 0
	info.MaxWorkItemSizes, err = cl.QueryUintSlice("clGetDeviceInfo", int(info.MaxWorkItemDimensions), func(value []byte) (int, cl.Status) {
		return api.GetDeviceInfo(device, cl.DeviceInfoMaxWorkItemSizes, value)
	})
	if err != nil {
		return info, errors.WithMessage(err, "max work item sizes")
	}
	return info, nil
}

// Device is one compute device of a Platform.
//
// It holds a lease on the context shared by all devices of its platform, and owns a command queue on that
// context. Devices are created during platform discovery, and released with their Platform.
type Device struct {
	id      int
	handle  cl.DeviceID
	context *Context
	queue   *CommandQueue
	info    DeviceInfo
}

// newDevice creates the device's command queue and takes a lease on the platform context.
func newDevice(api cl.API, context *Context, handle cl.DeviceID, id int, queueProperties cl.QueueProperties) (*Device, error) {
	info, err := clDeviceInfo(api, handle)
	if err != nil {
		return nil, withCause(ErrDeviceInfo, err, "device #%d", id)
	}
	queueHandle, status := api.CreateCommandQueue(context.Handle(), handle, queueProperties)
	if err = cl.StatusError("clCreateCommandQueue", status); err != nil {
		return nil, errors.WithMessagef(err, "failed to create command queue for device #%d (%s)", id, info.Name)
	}
	return &Device{
		id:      id,
		handle:  handle,
		context: context.Acquire(),
		queue:   newCommandQueue(api, queueHandle),
		info:    info,
	}, nil
}

// release the device's leases on its queue and context.
func (d *Device) release() error {
	errQueue := d.queue.Release()
	errCtx := d.context.Release()
	if errQueue != nil {
		return errQueue
	}
	return errCtx
}

// ID returns the global device index, assigned sequentially across all platforms in discovery order.
func (d *Device) ID() int {
	return d.id
}

// Info returns the device description.
func (d *Device) Info() DeviceInfo {
	return d.info
}

// Name of the device, as reported by the driver.
func (d *Device) Name() string {
	return d.info.Name
}

// Type returns the device type class.
func (d *Device) Type() cl.DeviceType {
	return d.info.Type
}

// Context returns the device's lease on its platform shared context. Use Context.Acquire to keep it beyond the
// lifetime of the device.
func (d *Device) Context() *Context {
	return d.context
}

// Queue returns the device's lease on its command queue. Use CommandQueue.Acquire to keep it beyond the
// lifetime of the device.
func (d *Device) Queue() *CommandQueue {
	return d.queue
}

// HasExtension returns whether the device reports the given extension, e.g. "cl_khr_fp64".
func (d *Device) HasExtension(extension string) bool {
	return slices.Contains(d.info.Extensions, extension)
}

// SupportsDType returns whether kernels on this device can use the given data type.
func (d *Device) SupportsDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Float64:
		return d.HasExtension("cl_khr_fp64")
	case dtypes.Float16:
		return d.HasExtension("cl_khr_fp16")
	case dtypes.Int64, dtypes.Uint64:
		// 64-bit integers are optional in the embedded profile.
		return d.info.Profile != "EMBEDDED_PROFILE" || d.HasExtension("cles_khr_int64")
	case dtypes.Bool, dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Uint8, dtypes.Uint16, dtypes.Uint32,
		dtypes.Float32:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("Device #%d [%s, %q, %d compute units]", d.id, d.info.Type, d.info.Name, d.info.MaxComputeUnits)
}
