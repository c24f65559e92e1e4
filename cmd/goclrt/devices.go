package main

import (
	"fmt"
	"strings"

	"github.com/gomlx/goclrt/cl"
	"github.com/gomlx/goclrt/clrt"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/spf13/cobra"
)

var flagVerbose bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List platforms and devices, with their global index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, manager, err := startRuntime()
		if err != nil {
			return err
		}
		defer stopRuntime(registry)
		printDevices(cmd, manager)
		return nil
	},
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the registered back ends",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range cl.Backends() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	devicesCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print all device attributes")
	rootCmd.AddCommand(devicesCmd, backendsCmd)
}

func printDevices(cmd *cobra.Command, manager *clrt.Manager) {
	out := cmd.OutOrStdout()
	for _, platform := range manager.Platforms() {
		fmt.Fprintf(out, "%s\n", platform)
		for _, device := range platform.Devices() {
			fmt.Fprintf(out, "  #%d: %s\n", device.ID(), device)
			if !flagVerbose {
				continue
			}
			info := device.Info()
			fmt.Fprintf(out, "\tvendor:           %s\n", info.Vendor)
			fmt.Fprintf(out, "\tversion:          %s (driver %s, %s)\n", info.Version, info.DriverVersion, info.Profile)
			fmt.Fprintf(out, "\tclock:            %d MHz\n", info.MaxClockFrequency)
			fmt.Fprintf(out, "\tglobal memory:    %d MiB (max allocation %d MiB)\n", info.GlobalMemSize>>20, info.MaxMemAllocSize>>20)
			fmt.Fprintf(out, "\tlocal memory:     %d KiB\n", info.LocalMemSize>>10)
			fmt.Fprintf(out, "\twork group:       %d, item sizes %v\n", info.MaxWorkGroupSize, info.MaxWorkItemSizes)
			fmt.Fprintf(out, "\tavailable:        %v\n", info.Available)
			fmt.Fprintf(out, "\tdtypes:           %s\n", strings.Join(supportedDTypes(device), " "))
			fmt.Fprintf(out, "\textensions:       %s\n", strings.Join(info.Extensions, " "))
		}
	}
	fmt.Fprintf(out, "%d device(s)\n", manager.NumDevices())
}

func supportedDTypes(device *clrt.Device) []string {
	var names []string
	for _, dtype := range []dtypes.DType{dtypes.Int32, dtypes.Int64, dtypes.Float16, dtypes.Float32, dtypes.Float64} {
		if device.SupportsDType(dtype) {
			names = append(names, dtype.String())
		}
	}
	return names
}
