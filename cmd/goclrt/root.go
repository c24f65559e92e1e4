package main

import (
	"flag"
	"strings"

	"github.com/gomlx/goclrt/cl"
	"github.com/gomlx/goclrt/cl/simulator"
	"github.com/gomlx/goclrt/clrt"
	"github.com/gomlx/goclrt/host"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	flagConfig  string
	flagBackend string
)

var rootCmd = &cobra.Command{
	Use:   "goclrt",
	Short: "Discover compute devices and compile kernels",
	Long: `goclrt discovers the platforms and devices of a compute back end ("sim" or "opencl"),
and compiles kernel sources against them, printing the build log on failure.

The "opencl" back end is only available in binaries built with "-tags opencl".`,
	SilenceUsage: true,
}

func init() {
	goFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(goFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(goFlags)
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "",
		"Back end to use, overrides the configuration. Registered: "+strings.Join(cl.Backends(), ", "))
}

// openBackend returns the back end selected by cfg. A simulator with an explicit topology file is created
// directly, since the registered "sim" back end only reads its topology from the environment.
func openBackend(cfg clrt.Config) (cl.API, error) {
	isSim := strings.EqualFold(cfg.Backend, "sim") || strings.EqualFold(cfg.Backend, "simulator")
	if isSim && cfg.Topology != "" {
		topology, err := simulator.LoadTopology(cfg.Topology)
		if err != nil {
			return nil, err
		}
		return simulator.New(topology)
	}
	return cl.GetBackend(cfg.Backend)
}

// startRuntime creates the host registry with the clrt module initialized and started.
// The caller must call StopAll on the returned registry.
func startRuntime() (*host.Registry, *clrt.Manager, error) {
	cfg, err := clrt.LoadConfig(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if flagBackend != "" {
		cfg.Backend = flagBackend
	}
	api, err := openBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	registry := host.NewRegistry()
	if _, err = registry.Register(clrt.NewModule(api, clrt.WithConfig(cfg))); err != nil {
		return nil, nil, err
	}
	if err = registry.InitAll(); err != nil {
		return nil, nil, err
	}
	if err = registry.StartAll(); err != nil {
		return nil, nil, err
	}
	manager, found := clrt.ManagerFrom(registry)
	if !found {
		_ = registry.StopAll()
		return nil, nil, errors.Errorf("module %q not registered", clrt.ModuleID)
	}
	return registry, manager, nil
}

// stopRuntime stops the registry, logging failures.
func stopRuntime(registry *host.Registry) {
	if err := registry.StopAll(); err != nil {
		klog.Errorf("failed to stop runtime: %+v", err)
	}
}
