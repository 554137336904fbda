package span

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int, scale float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i) * scale
	}
	return out
}

func TestKernelsAgree(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7, 8, 9, 16, 31} {
		a := seq(n, 1.5)
		b := seq(n, 0.25)

		want := make([]float32, n)
		got := make([]float32, n)

		sub1(a, b, want)
		sub8(a, b, got)
		assert.Equal(t, want, got, "sub n=%d", n)

		add1(a, b, want)
		add8(a, b, got)
		assert.Equal(t, want, got, "add n=%d", n)

		fill1(want, 2)
		fill8(got, 2)
		assert.Equal(t, want, got, "fill n=%d", n)
	}
	assert.Contains(t, []string{"wide8", "scalar"}, Kernel())
}

func TestDotAndAxpy(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{2, 2, 2, 2, 2}
	assert.InDelta(t, 30, Dot(a, b), 1e-6)
	assert.Equal(t, float32(0), Dot(nil, nil))

	y := []float32{1, 1, 1, 1, 1}
	Axpy(0.5, a, y)
	assert.InDeltaSlice(t, []float32{1.5, 2, 2.5, 3, 3.5}, y, 1e-6)
}

func TestSubAndCopy(t *testing.T) {
	dst := make([]float32, 3)
	Sub([]float32{1, 0, 0}, []float32{0.25, 0.5, 0.25}, dst)
	assert.Equal(t, []float32{0.75, -0.5, -0.25}, dst)

	Copy(dst, []float32{9, 8, 7})
	assert.Equal(t, []float32{9, 8, 7}, dst)

	require.Panics(t, func() { Copy(dst, []float32{1}) })
}

func TestMeanAbsAndArgmax(t *testing.T) {
	assert.InDelta(t, 0.5, MeanAbs([]float32{-1, 0.5, 0, 0.5}), 1e-6)
	assert.Equal(t, float32(0), MeanAbs(nil))

	assert.Equal(t, 2, Argmax([]float32{0.1, 0.2, 0.7, 0.7}))
	assert.Equal(t, -1, Argmax(nil))
}
