//go:build opencl && cgo

package opencl

// Files with exported functions can only have declarations in their preamble.

/*
#include <stdint.h>
*/
import "C"
import (
	"runtime/cgo"

	"github.com/gomlx/goclrt/cl"
	"k8s.io/klog/v2"
)

// goContextNotify is called by the driver, from any thread, with errors happening asynchronously in a context.
//
//export goContextNotify
func goContextNotify(errInfo *C.char, userData C.uintptr_t) {
	notify, ok := cgo.Handle(userData).Value().(cl.NotifyFn)
	if !ok {
		klog.Errorf("OpenCL context notification with invalid callback: %s", C.GoString(errInfo))
		return
	}
	notify(C.GoString(errInfo))
}
