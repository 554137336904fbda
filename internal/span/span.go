// Package span holds the bulk float32 kernels used by the network:
// copy, fill, elementwise add/sub, dot product and axpy.
//
// Dot and Axpy go through gonum's blas32, which carries assembly for the
// common architectures. Elementwise kernels are picked at init from the
// CPU feature set.
package span

import (
	"github.com/chewxy/math32"
	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/blas/blas32"
)

var (
	sub  func(a, b, dst []float32)
	add  func(a, b, dst []float32)
	fill func(dst []float32, v float32)

	kernel string
)

func init() {
	if cpuid.CPU.Supports(cpuid.AVX2) {
		sub, add, fill = sub8, add8, fill8
		kernel = "wide8"
	} else {
		sub, add, fill = sub1, add1, fill1
		kernel = "scalar"
	}
}

// Kernel names the elementwise kernel selected for this CPU.
func Kernel() string { return kernel }

// Copy copies src into dst. Both must have the same length.
func Copy(dst, src []float32) {
	mustMatch(len(dst), len(src))
	copy(dst, src)
}

// Fill sets every element of dst to v.
func Fill(dst []float32, v float32) { fill(dst, v) }

// Sub computes dst = a - b.
func Sub(a, b, dst []float32) {
	mustMatch(len(a), len(b))
	mustMatch(len(a), len(dst))
	sub(a, b, dst)
}

// Add computes dst = a + b.
func Add(a, b, dst []float32) {
	mustMatch(len(a), len(b))
	mustMatch(len(a), len(dst))
	add(a, b, dst)
}

// Dot returns the inner product of a and b.
func Dot(a, b []float32) float32 {
	mustMatch(len(a), len(b))
	if len(a) == 0 {
		return 0
	}
	return blas32.Dot(vec(a), vec(b))
}

// Axpy computes y += alpha*x.
func Axpy(alpha float32, x, y []float32) {
	mustMatch(len(x), len(y))
	if len(x) == 0 {
		return
	}
	blas32.Axpy(alpha, vec(x), vec(y))
}

// MeanAbs returns the mean absolute value of a, or 0 for an empty slice.
func MeanAbs(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	var total float32
	for _, v := range a {
		total += math32.Abs(v)
	}
	return total / float32(len(a))
}

// Argmax returns the index of the first maximum of a, or -1 when a is empty.
func Argmax(a []float32) int {
	if len(a) == 0 {
		return -1
	}
	best := 0
	for i, v := range a {
		if v > a[best] {
			best = i
		}
	}
	return best
}

func vec(a []float32) blas32.Vector {
	return blas32.Vector{N: len(a), Data: a, Inc: 1}
}

func mustMatch(a, b int) {
	if a != b {
		panic("span: length mismatch")
	}
}
