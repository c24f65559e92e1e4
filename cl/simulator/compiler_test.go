package simulator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileSource(t *testing.T) {
	result := compileSource(`
// kernel void commented_out() {}
/* __kernel void also_commented(global float *x) {} */
__kernel void saxpy(float a, __global const float *x, __global float *y) {
	int i = get_global_id(0);
	y[i] = a * x[i] + y[i];
}

kernel __attribute__((reqd_work_group_size(64, 1, 1))) void reduce(global float *x) {
	x[0] = 0;
}

float helper(float x) { return x; }
`)
	require.True(t, result.ok, "log: %s", result.log)
	require.Equal(t, []string{"saxpy", "reduce"}, result.kernels)
	require.Empty(t, result.log)

	result = compileSource("kernel void k(){}")
	require.True(t, result.ok)
	require.Equal(t, []string{"k"}, result.kernels)

	// No kernels is not an error.
	result = compileSource("float helper(float x) { return x; }")
	require.True(t, result.ok)
	require.Empty(t, result.kernels)
}

func TestCompileSourceErrors(t *testing.T) {
	result := compileSource("kernel void k(global float *x) {\n  x[0] = 1;\n")
	require.False(t, result.ok)
	require.Contains(t, result.log, "<source>:1:32: error: unmatched '{'")
	require.Contains(t, result.log, "1 error(s) generated.")
	fmt.Printf("Build log:\n%s\n", result.log)

	result = compileSource("kernel void k() {}\n#error not supported here\n")
	require.False(t, result.ok)
	require.Contains(t, result.log, "<source>:2:1: error: not supported here")

	result = compileSource("kernel void k() {}\nkernel void k() {}\n")
	require.False(t, result.ok)
	require.Contains(t, result.log, "redefinition of kernel 'k'")

	result = compileSource("kernel void k() {})")
	require.False(t, result.ok)
	require.Contains(t, result.log, "extraneous closing ')'")
}

func TestValidOptions(t *testing.T) {
	require.True(t, validOptions(""))
	require.True(t, validOptions("-cl-fast-relaxed-math -DN=16"))
	require.True(t, validOptions("-D N=16 -I include"))
	require.False(t, validOptions("-DN=16 fast"))
}

func TestStripComments(t *testing.T) {
	source := "a // b\nc /* d\ne */ f"
	stripped := stripComments(source)
	require.Len(t, stripped, len(source))
	require.Equal(t, "a     \nc     \n     f", stripped)
}
