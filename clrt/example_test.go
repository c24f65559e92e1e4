package clrt_test

import (
	"fmt"

	"github.com/gomlx/goclrt/cl/simulator"
	"github.com/gomlx/goclrt/clrt"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
)

// mandelbrotSource computes the number of iterations to diverge for each pixel, and maps it to a color.
const mandelbrotSource = `
#ifndef MAX_ITERATIONS
#define MAX_ITERATIONS 100
#endif

__kernel void mandelbrot(__global int *iterations, int width, int height,
                         float xmin, float ymin, float xmax, float ymax) {
	int x = get_global_id(0), y = get_global_id(1);
	float cx = xmin + (xmax - xmin) * x / width;
	float cy = ymin + (ymax - ymin) * y / height;
	float zx = 0, zy = 0;
	int n = 0;
	for (; n < MAX_ITERATIONS && zx*zx + zy*zy <= 4; n++) {
		float t = zx*zx - zy*zy + cx;
		zy = 2*zx*zy + cy;
		zx = t;
	}
	iterations[y*width + x] = n;
}

__kernel void colorize(__global const int *iterations, __global uchar4 *pixels) {
	int i = get_global_id(0);
	float v = log((float)(iterations[i] + 1)) / log((float)(MAX_ITERATIONS + 1));
	pixels[i] = (uchar4)(255 * v, 255 * v * v, 255 * (1 - v), 255);
}
`

func Example() {
	sim := must.M1(simulator.New(simulator.DefaultTopology()))
	manager := clrt.NewManager(sim)
	must.M(manager.Init())
	defer func() { must.M(manager.Close()) }()

	// First device with half precision floats.
	device, found := manager.FindDeviceIf(func(d *clrt.Device) bool { return d.SupportsDType(dtypes.Float16) })
	if !found {
		panic("no device supports float16")
	}
	program := must.M1(manager.CreateProgramOnDevice(mandelbrotSource, "-DMAX_ITERATIONS=256", device))
	defer func() { must.M(program.Release()) }()

	fmt.Printf("%s (#%d)\n", device.Name(), device.ID())
	fmt.Println(program.Kernels())
	// Output:
	// Simulated GPU (#0)
	// [colorize mandelbrot]
}
