// goclrt lists the compute devices of a back end and compiles kernel sources against them.
//
//	$ goclrt devices
//	$ goclrt compile --device=0 --options="-DN=16" kernels.cl
//	$ goclrt compile --type=gpu --min-compute-units=16 --kernel=saxpy kernels.cl
//
// The back end and its defaults are read from the --config YAML file and the GOCLRT_* environment variables.
package main

import (
	"fmt"
	"os"

	_ "github.com/gomlx/goclrt/cl/opencl"
	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		klog.Flush()
		os.Exit(1)
	}
}
