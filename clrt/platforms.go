package clrt

import (
	"fmt"
	"strings"

	"github.com/gomlx/goclrt/cl"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func clPlatformInfo(api cl.API, platform cl.PlatformID, param cl.PlatformInfo) (string, error) {
	return cl.QueryString("clGetPlatformInfo", func(value []byte) (int, cl.Status) {
		return api.GetPlatformInfo(platform, param, value)
	})
}

// clDeviceIDs discovers the devices of the platform, querying the device type classes in cl.DiscoveryOrder.
// Not finding devices of a type is not an error.
func clDeviceIDs(api cl.API, platform cl.PlatformID) ([]cl.DeviceID, error) {
	var ids []cl.DeviceID
	for _, deviceType := range cl.DiscoveryOrder {
		num, status := api.GetDeviceIDs(platform, deviceType, nil)
		if status == cl.DeviceNotFound {
			continue
		}
		if err := cl.StatusError("clGetDeviceIDs", status); err != nil {
			return nil, errors.WithMessagef(err, "discovering %s devices", deviceType)
		}
		known := len(ids)
		ids = append(ids, make([]cl.DeviceID, num)...)
		if _, status = api.GetDeviceIDs(platform, deviceType, ids[known:]); status != cl.Success {
			return nil, errors.WithMessagef(cl.StatusError("clGetDeviceIDs", status), "discovering %s devices", deviceType)
		}
		klog.V(2).Infof("platform %#x: %d %s device(s)", uintptr(platform), num, deviceType)
	}
	return ids, nil
}

// platformOptions are the capabilities a Platform needs from its Manager.
type platformOptions struct {
	queueProperties cl.QueueProperties
	diagnostics     Diagnostics
}

// Platform groups the devices of one vendor implementation under one shared context.
//
// Platforms are created by Manager.Init, and destroyed with Manager.Close.
type Platform struct {
	api        cl.API
	id         cl.PlatformID
	name       string
	vendor     string
	version    string
	profile    string
	extensions []string
	context    *Context
	devices    []*Device
}

// newPlatform discovers the devices of the platform, creates one context for all of them, and assigns them
// sequential global ids starting at startID.
//
// A platform without devices is an error (ErrNoDevices).
func newPlatform(api cl.API, id cl.PlatformID, startID int, opts platformOptions) (p *Platform, err error) {
	p = &Platform{api: api, id: id}
	deviceIDs, err := clDeviceIDs(api, id)
	if err != nil {
		return nil, err
	}
	if len(deviceIDs) == 0 {
		return nil, errors.WithMessagef(ErrNoDevices, "platform %#x", uintptr(id))
	}

	diagnostics := opts.diagnostics
	notify := func(errInfo string) {
		diagnostics.Report(SeverityError, "\n##### Error message via context notification #####\n"+errInfo+
			"\n###################################################")
	}
	ctxHandle, status := api.CreateContext(deviceIDs, notify)
	if err = cl.StatusError("clCreateContext", status); err != nil {
		return nil, withCause(ErrContextCreation, err, "platform %#x", uintptr(id))
	}
	p.context = newContext(api, ctxHandle)

	// From here on, resources are owned by p: destroy it on failure.
	defer func() {
		if err != nil {
			p.destroyOrLog()
			p = nil
		}
	}()

	for _, deviceID := range deviceIDs {
		var device *Device
		device, err = newDevice(api, p.context, deviceID, startID, opts.queueProperties)
		if err != nil {
			return
		}
		p.devices = append(p.devices, device)
		startID++
	}

	infoParams := []struct {
		param cl.PlatformInfo
		dst   *string
	}{
		{cl.PlatformName, &p.name},
		{cl.PlatformVendor, &p.vendor},
		{cl.PlatformVersion, &p.version},
		{cl.PlatformProfile, &p.profile},
	}
	for _, info := range infoParams {
		if *info.dst, err = clPlatformInfo(api, id, info.param); err != nil {
			err = withCause(ErrPlatformInfo, err, "platform %#x, param=%#x", uintptr(id), uint32(info.param))
			return
		}
	}
	var extensions string
	if extensions, err = clPlatformInfo(api, id, cl.PlatformExtensions); err != nil {
		err = withCause(ErrPlatformInfo, err, "platform %#x extensions", uintptr(id))
		return
	}
	p.extensions = strings.Fields(extensions)
	return p, nil
}

// Destroy releases the devices' queues and the platform's lease on the shared context. The native context itself
// is only released once every Program built on it is released as well.
//
// It is idempotent.
func (p *Platform) Destroy() error {
	if p == nil || p.context == nil {
		return nil
	}
	var firstErr error
	for _, device := range p.devices {
		if err := device.release(); err != nil && firstErr == nil {
			firstErr = errors.WithMessagef(err, "releasing device %s", device)
		}
	}
	if err := p.context.Release(); err != nil && firstErr == nil {
		firstErr = errors.WithMessagef(err, "releasing context of platform %q", p.name)
	}
	p.context = nil
	return firstErr
}

// destroyOrLog destroys the Platform and logs any errors.
func (p *Platform) destroyOrLog() {
	if err := p.Destroy(); err != nil {
		klog.Errorf("Platform.Destroy failed: %+v", err)
	}
}

// Name of the platform.
func (p *Platform) Name() string {
	return p.name
}

// Vendor of the platform.
func (p *Platform) Vendor() string {
	return p.vendor
}

// Version of the platform, e.g.: "OpenCL 3.0 CUDA 12.4.131".
func (p *Platform) Version() string {
	return p.version
}

// Profile is either "FULL_PROFILE" or "EMBEDDED_PROFILE".
func (p *Platform) Profile() string {
	return p.profile
}

// Extensions supported by the platform.
func (p *Platform) Extensions() []string {
	return p.extensions
}

// Devices of the platform, in discovery order. The slice is owned by the Platform, don't change it.
func (p *Platform) Devices() []*Device {
	return p.devices
}

// NumDevices returns the number of devices of the platform.
func (p *Platform) NumDevices() int {
	return len(p.devices)
}

// Context returns the platform's lease on the context shared by its devices.
func (p *Platform) Context() *Context {
	return p.context
}

// String implements fmt.Stringer.
func (p *Platform) String() string {
	return fmt.Sprintf("Platform[%q, vendor=%q, version=%q, %d device(s)]", p.name, p.vendor, p.version, len(p.devices))
}
