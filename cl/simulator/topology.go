package simulator

import (
	"os"
	"strings"

	"github.com/gomlx/goclrt/cl"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Topology describes the simulated platforms and their devices, in discovery order.
type Topology struct {
	Platforms []PlatformSpec `yaml:"platforms"`
}

// PlatformSpec describes one simulated platform.
type PlatformSpec struct {
	Name       string       `yaml:"name"`
	Vendor     string       `yaml:"vendor"`
	Version    string       `yaml:"version"`
	Profile    string       `yaml:"profile"`
	Extensions []string     `yaml:"extensions"`
	Devices    []DeviceSpec `yaml:"devices"`
}

// DeviceSpec describes one simulated device. Zero values are replaced by defaults, see Topology.Validate.
type DeviceSpec struct {
	Name          string `yaml:"name"`
	Vendor        string `yaml:"vendor"`
	Version       string `yaml:"version"`
	DriverVersion string `yaml:"driver_version"`
	Profile       string `yaml:"profile"`

	// Type is one of "gpu", "cpu" or "accelerator".
	Type string `yaml:"type"`

	ComputeUnits     uint32   `yaml:"compute_units"`
	MaxWorkGroupSize uint64   `yaml:"max_work_group_size"`
	MaxWorkItemSizes []uint64 `yaml:"max_work_item_sizes"`
	GlobalMemSize    uint64   `yaml:"global_mem_size"`
	LocalMemSize     uint64   `yaml:"local_mem_size"`
	MaxMemAllocSize  uint64   `yaml:"max_mem_alloc_size"`
	ClockMHz         uint32   `yaml:"clock_mhz"`
	Extensions       []string `yaml:"extensions"`
	Unavailable      bool     `yaml:"unavailable"`

	// AddressBits of the simulated driver, 32 or 64 (the default). size_t attributes are 4 bytes wide on 32 bits.
	AddressBits int `yaml:"address_bits"`

	deviceType cl.DeviceType
}

// DefaultTopology is one platform with a GPU and a CPU.
func DefaultTopology() Topology {
	return Topology{
		Platforms: []PlatformSpec{{
			Name:    "Simulated Platform",
			Vendor:  "goclrt",
			Version: "OpenCL 3.0 goclrt-sim",
			Devices: []DeviceSpec{
				{
					Name:         "Simulated GPU",
					Type:         "gpu",
					ComputeUnits: 32,
					Extensions:   []string{"cl_khr_fp64", "cl_khr_fp16", "cl_khr_global_int32_base_atomics"},
				},
				{
					Name:         "Simulated CPU",
					Type:         "cpu",
					ComputeUnits: 8,
					Extensions:   []string{"cl_khr_fp64"},
				},
			},
		}},
	}
}

// LoadTopology reads a YAML topology file.
func LoadTopology(path string) (Topology, error) {
	var topology Topology
	contents, err := os.ReadFile(path)
	if err != nil {
		return topology, errors.Wrapf(err, "failed to read simulator topology from %q", path)
	}
	if err = yaml.Unmarshal(contents, &topology); err != nil {
		return topology, errors.Wrapf(err, "failed to parse simulator topology in %q", path)
	}
	if err = topology.Validate(); err != nil {
		return topology, errors.WithMessagef(err, "invalid simulator topology in %q", path)
	}
	return topology, nil
}

// Validate checks device types and fills in defaults for the attributes not given.
func (t *Topology) Validate() error {
	for pIdx := range t.Platforms {
		p := &t.Platforms[pIdx]
		if p.Name == "" {
			p.Name = "Simulated Platform"
		}
		if p.Vendor == "" {
			p.Vendor = "goclrt"
		}
		if p.Version == "" {
			p.Version = "OpenCL 3.0 goclrt-sim"
		}
		if p.Profile == "" {
			p.Profile = "FULL_PROFILE"
		}
		for dIdx := range p.Devices {
			d := &p.Devices[dIdx]
			var err error
			d.deviceType, err = cl.ParseDeviceType(d.Type)
			if err != nil {
				return errors.WithMessagef(err, "platform #%d (%s), device #%d", pIdx, p.Name, dIdx)
			}
			setDeviceDefaults(d, p)
			if d.AddressBits != 32 && d.AddressBits != 64 {
				return errors.Errorf("platform #%d (%s), device #%d: address_bits must be 32 or 64, got %d",
					pIdx, p.Name, dIdx, d.AddressBits)
			}
		}
	}
	return nil
}

func setDeviceDefaults(d *DeviceSpec, p *PlatformSpec) {
	if d.Name == "" {
		d.Name = "Simulated " + strings.ToUpper(d.Type)
	}
	if d.Vendor == "" {
		d.Vendor = p.Vendor
	}
	if d.Version == "" {
		d.Version = p.Version
	}
	if d.DriverVersion == "" {
		d.DriverVersion = "1.0"
	}
	if d.Profile == "" {
		d.Profile = p.Profile
	}
	if d.ComputeUnits == 0 {
		d.ComputeUnits = 1
	}
	if d.MaxWorkGroupSize == 0 {
		d.MaxWorkGroupSize = 256
	}
	if len(d.MaxWorkItemSizes) == 0 {
		d.MaxWorkItemSizes = []uint64{d.MaxWorkGroupSize, d.MaxWorkGroupSize, d.MaxWorkGroupSize}
	}
	if d.GlobalMemSize == 0 {
		d.GlobalMemSize = 1 << 30
	}
	if d.LocalMemSize == 0 {
		d.LocalMemSize = 32 << 10
	}
	if d.MaxMemAllocSize == 0 {
		d.MaxMemAllocSize = d.GlobalMemSize / 4
	}
	if d.ClockMHz == 0 {
		d.ClockMHz = 1000
	}
	if d.AddressBits == 0 {
		d.AddressBits = 64
	}
}
