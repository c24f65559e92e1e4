package main

import (
	"fmt"

	"github.com/gomlx/goclrt/cl"
	"github.com/gomlx/goclrt/clrt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	flagDevice          int
	flagOptions         string
	flagDeviceType      string
	flagMinComputeUnits uint32
	flagKernels         []string
)

var compileCmd = &cobra.Command{
	Use:   "compile <source_file>",
	Short: "Compile a kernel source file and list its kernels",
	Long: `Compile a kernel source file for one device and list its kernels.

The device is given by its global index with --device, or else it is the first device matching
--type and --min-compute-units. Kernels given with --kernel are looked up by name, which also works
on drivers that don't enumerate the kernels of a program.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, manager, err := startRuntime()
		if err != nil {
			return err
		}
		defer stopRuntime(registry)

		var program *clrt.Program
		if flagDevice >= 0 {
			program, err = manager.CreateProgramFromFile(args[0], flagOptions, flagDevice)
		} else {
			var device *clrt.Device
			device, err = selectDevice(manager)
			if err != nil {
				return err
			}
			program, err = manager.CreateProgramFromFileOnDevice(args[0], flagOptions, device)
		}
		if err != nil {
			return err
		}
		defer program.Release()

		for _, name := range flagKernels {
			if _, err = program.LookupKernel(name); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", program)
		for _, name := range program.Kernels() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	},
}

func init() {
	compileCmd.Flags().IntVar(&flagDevice, "device", -1, "Global index of the device, see the devices command")
	compileCmd.Flags().StringVar(&flagOptions, "options", "", "Build options, e.g. -DN=16 -cl-fast-relaxed-math")
	compileCmd.Flags().StringVar(&flagDeviceType, "type", "", "Select the first device of this type: gpu, cpu or accelerator")
	compileCmd.Flags().Uint32Var(&flagMinComputeUnits, "min-compute-units", 0, "Select the first device with at least this many compute units")
	compileCmd.Flags().StringSliceVar(&flagKernels, "kernel", nil, "Kernels to look up by name")
	rootCmd.AddCommand(compileCmd)
}

// selectDevice returns the first device matching --type and --min-compute-units.
func selectDevice(manager *clrt.Manager) (*clrt.Device, error) {
	predicate := func(d *clrt.Device) bool {
		return d.Info().MaxComputeUnits >= flagMinComputeUnits
	}
	if flagDeviceType != "" {
		deviceType, err := cl.ParseDeviceType(flagDeviceType)
		if err != nil {
			return nil, err
		}
		byUnits := predicate
		predicate = func(d *clrt.Device) bool {
			return d.Type()&deviceType != 0 && byUnits(d)
		}
	}
	device, found := manager.FindDeviceIf(predicate)
	if !found {
		return nil, errors.WithMessagef(clrt.ErrNoDevice, "no device with type %q and at least %d compute units",
			flagDeviceType, flagMinComputeUnits)
	}
	return device, nil
}
