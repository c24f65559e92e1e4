// Package opencl implements cl.API on top of the system OpenCL ICD loader, using cgo.
//
// It is only compiled with the "opencl" build tag (and cgo enabled), since it requires the OpenCL headers and
// library to be installed. To use it import it with:
//
//	import _ "github.com/gomlx/goclrt/cl/opencl"
//
// and build with `go build -tags opencl`. It registers itself as the "opencl" back end, see cl.GetBackend.
// Without the build tag the package is empty and nothing is registered.
package opencl
