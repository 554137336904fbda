package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// MaxInnerLayers bounds the number of hidden layers.
const MaxInnerLayers = 16

// ErrInvalidTopology reports a zero-width layer or a bad inner layer count.
var ErrInvalidTopology = errors.New("model: invalid topology")

// Topology is the validated list of layer widths: input, inner layers, output.
// The zero value is not valid; build one with NewTopology or a TopologyBuilder.
type Topology struct {
	sizes []int
}

// NewTopology validates and returns a topology.
func NewTopology(input, output int, inner ...int) (Topology, error) {
	return (&TopologyBuilder{input: input, output: output, inner: inner}).Build()
}

// TopologyBuilder accumulates layer widths. Build validates them all at once.
type TopologyBuilder struct {
	input  int
	output int
	inner  []int
}

// Input sets the input width.
func (b *TopologyBuilder) Input(n int) *TopologyBuilder {
	b.input = n
	return b
}

// Output sets the output width.
func (b *TopologyBuilder) Output(n int) *TopologyBuilder {
	b.output = n
	return b
}

// Inner replaces the hidden layer widths.
func (b *TopologyBuilder) Inner(widths ...int) *TopologyBuilder {
	b.inner = append(b.inner[:0], widths...)
	return b
}

// AddInner appends one hidden layer.
func (b *TopologyBuilder) AddInner(n int) *TopologyBuilder {
	b.inner = append(b.inner, n)
	return b
}

// Build returns the topology or ErrInvalidTopology.
func (b *TopologyBuilder) Build() (Topology, error) {
	if len(b.inner) == 0 || len(b.inner) > MaxInnerLayers {
		return Topology{}, errors.Wrapf(ErrInvalidTopology, "%d inner layers, want 1..%d", len(b.inner), MaxInnerLayers)
	}
	if b.input < 1 {
		return Topology{}, errors.Wrapf(ErrInvalidTopology, "input width %d", b.input)
	}
	if b.output < 1 {
		return Topology{}, errors.Wrapf(ErrInvalidTopology, "output width %d", b.output)
	}
	sizes := make([]int, 0, len(b.inner)+2)
	sizes = append(sizes, b.input)
	for i, w := range b.inner {
		if w < 1 {
			return Topology{}, errors.Wrapf(ErrInvalidTopology, "inner layer %d width %d", i, w)
		}
		sizes = append(sizes, w)
	}
	sizes = append(sizes, b.output)
	return Topology{sizes: sizes}, nil
}

// Valid reports whether t came out of a successful Build.
func (t Topology) Valid() bool { return len(t.sizes) >= 3 }

// InputSize is the width of the input layer.
func (t Topology) InputSize() int { return t.sizes[0] }

// OutputSize is the width of the output layer.
func (t Topology) OutputSize() int { return t.sizes[len(t.sizes)-1] }

// InnerLayers is the number of hidden layers.
func (t Topology) InnerLayers() int { return len(t.sizes) - 2 }

// InnerSize is the width of hidden layer i. i must be < InnerLayers().
func (t Topology) InnerSize(i int) int { return t.sizes[1+i] }

// Sizes returns a copy of all widths, input first.
func (t Topology) Sizes() []int { return append([]int(nil), t.sizes...) }

func (t Topology) String() string {
	parts := make([]string, len(t.sizes))
	for i, s := range t.sizes {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, "-")
}
