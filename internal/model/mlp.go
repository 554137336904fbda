package model

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"nn-dashboard/internal/arena"
	"nn-dashboard/internal/span"
)

const (
	// LearningRate is the fixed gradient descent step.
	LearningRate float32 = 0.15
	// PredictionThreshold is the output activation a class must exceed to
	// count as a confident prediction.
	PredictionThreshold float32 = 0.8
	// NoPrediction is returned by Prediction when no output is confident.
	NoPrediction = -1
)

var (
	// ErrNotCreated is returned when evaluating a net that holds no memory.
	ErrNotCreated = errors.New("model: net not created")
	// ErrAlreadyCreated is returned by Create on a live net.
	ErrAlreadyCreated = errors.New("model: net already created")
	// ErrSize reports an input or expected vector of the wrong length.
	ErrSize = errors.New("model: vector size mismatch")
)

// Boundary is the state between two layers. Every range points into the
// net's arena. The input boundary has no bias and no error.
type Boundary struct {
	Len        int
	Activation arena.Range
	Bias       arena.Range
	Error      arena.Range
}

// Layer connects boundary Front to boundary Back through a dense
// Rows x Cols weight matrix, with Rows == back length and Cols == front length.
// Adjacent layers share a boundary index: layer[i].Back == layer[i+1].Front.
type Layer struct {
	Front   int
	Back    int
	Weights arena.Range
	Rows    int
	Cols    int
}

// Net is a multilayer perceptron whose activations, biases, errors and
// weights all live in one arena.
//
// The zero Net is unallocated. Create moves it to the created state, where
// Eval and Update may run any number of times; Destroy returns it to
// unallocated so it can be created again with a different topology.
type Net struct {
	topo       Topology
	mem        arena.Buffer[float32]
	boundaries []Boundary
	layers     []Layer
	created    bool
}

// ElementCount is the number of float32s a net of topology t needs.
// The input boundary holds activations only; every other boundary holds
// activation, bias and error, and each layer adds its weight matrix.
func ElementCount(t Topology) int {
	if !t.Valid() {
		return 0
	}
	sizes := t.sizes
	count := sizes[0]
	for i := 1; i < len(sizes); i++ {
		count += 3*sizes[i] + sizes[i-1]*sizes[i]
	}
	return count
}

// Bytes is the arena size in bytes for topology t.
func Bytes(t Topology) int {
	return ElementCount(t) * arena.ElementSize[float32]()
}

// Create allocates the net for topology t and fills weights and biases with
// seeded pseudo-random values in [0, 1).
func (n *Net) Create(t Topology, seed int64) error {
	if n.created {
		return ErrAlreadyCreated
	}
	if !t.Valid() {
		return errors.Wrap(ErrInvalidTopology, "empty topology")
	}
	total := ElementCount(t)
	if err := n.mem.Create(total, "mlp"); err != nil {
		return errors.Wrapf(err, "create net %s", t)
	}

	sizes := t.sizes
	n.topo = t
	n.boundaries = make([]Boundary, len(sizes))
	n.layers = make([]Layer, len(sizes)-1)

	n.boundaries[0] = Boundary{Len: sizes[0], Activation: n.mem.Push(sizes[0])}
	for i := 1; i < len(sizes); i++ {
		n.boundaries[i] = Boundary{
			Len:        sizes[i],
			Activation: n.mem.Push(sizes[i]),
			Bias:       n.mem.Push(sizes[i]),
			Error:      n.mem.Push(sizes[i]),
		}
		n.layers[i-1] = Layer{
			Front:   i - 1,
			Back:    i,
			Weights: n.mem.Push(sizes[i] * sizes[i-1]),
			Rows:    sizes[i],
			Cols:    sizes[i-1],
		}
	}
	if n.mem.Size() != total {
		panic(fmt.Sprintf("model: arena consumed %d of %d elements", n.mem.Size(), total))
	}

	n.randomize(rand.New(rand.NewSource(seed)))
	n.created = true
	return nil
}

func (n *Net) randomize(rng *rand.Rand) {
	for _, l := range n.layers {
		scale := 1 / math32.Sqrt(float32(l.Cols))
		w := n.mem.Slice(l.Weights)
		for i := range w {
			w[i] = rng.Float32() * scale
		}
		bias := n.mem.Slice(n.boundaries[l.Back].Bias)
		for i := range bias {
			bias[i] = rng.Float32() * 0.1
		}
	}
}

// Destroy frees the arena. It is a no-op on an unallocated net.
func (n *Net) Destroy() {
	n.mem.Destroy()
	*n = Net{}
}

// Created reports whether the net holds memory.
func (n *Net) Created() bool { return n.created }

// Topology returns the topology the net was created from.
func (n *Net) Topology() Topology { return n.topo }

// Layers returns a copy of the layer descriptors.
func (n *Net) Layers() []Layer { return append([]Layer(nil), n.layers...) }

// Boundaries returns a copy of the boundary descriptors.
func (n *Net) Boundaries() []Boundary { return append([]Boundary(nil), n.boundaries...) }

// ArenaElements is the number of arena elements consumed.
func (n *Net) ArenaElements() int { return n.mem.Size() }

// Input is the live input activation span, nil before Create.
func (n *Net) Input() []float32 {
	if !n.created {
		return nil
	}
	return n.mem.Slice(n.boundaries[0].Activation)
}

// Output is the live output activation span, nil before Create.
func (n *Net) Output() []float32 {
	if !n.created {
		return nil
	}
	return n.mem.Slice(n.boundaries[len(n.boundaries)-1].Activation)
}

// Error is the live output error span, nil before Create.
func (n *Net) Error() []float32 {
	if !n.created {
		return nil
	}
	return n.mem.Slice(n.boundaries[len(n.boundaries)-1].Error)
}

// Activations copies the activation vector of every boundary, input first.
func (n *Net) Activations() [][]float32 {
	out := make([][]float32, len(n.boundaries))
	for i, b := range n.boundaries {
		out[i] = append([]float32(nil), n.mem.Slice(b.Activation)...)
	}
	return out
}

// Weights is the live weight matrix of layer i, row-major.
func (n *Net) Weights(i int) []float32 { return n.mem.Slice(n.layers[i].Weights) }

// Bias is the live bias span of boundary i. It is empty for the input.
func (n *Net) Bias(i int) []float32 { return n.mem.Slice(n.boundaries[i].Bias) }

// Eval runs a forward pass: ReLU on every layer, then softmax on the output.
func (n *Net) Eval(input []float32) error {
	if !n.created {
		return ErrNotCreated
	}
	if len(input) != n.topo.InputSize() {
		return errors.Wrapf(ErrSize, "input %d, want %d", len(input), n.topo.InputSize())
	}
	span.Copy(n.Input(), input)
	for _, l := range n.layers {
		n.forward(l)
	}
	softmax(n.Output())
	return nil
}

// EvalError runs Eval and sets the output error to expected - output,
// without touching weights.
func (n *Net) EvalError(input, expected []float32) error {
	if err := n.checkExpected(expected); err != nil {
		return err
	}
	if err := n.Eval(input); err != nil {
		return err
	}
	span.Sub(expected, n.Output(), n.Error())
	return nil
}

// Update runs EvalError then backpropagates the error, output layer first,
// applying one plain gradient descent step to every reachable weight and bias.
func (n *Net) Update(input, expected []float32) error {
	if err := n.EvalError(input, expected); err != nil {
		return err
	}
	for i := len(n.layers) - 1; i >= 0; i-- {
		n.backward(n.layers[i])
	}
	return nil
}

// Prediction returns the first output class above PredictionThreshold,
// or NoPrediction.
func (n *Net) Prediction() int {
	for i, v := range n.Output() {
		if v > PredictionThreshold {
			return i
		}
	}
	return NoPrediction
}

// AbsError is the mean absolute value of the output error.
func (n *Net) AbsError() float32 { return span.MeanAbs(n.Error()) }

func (n *Net) checkExpected(expected []float32) error {
	if !n.created {
		return ErrNotCreated
	}
	if len(expected) != n.topo.OutputSize() {
		return errors.Wrapf(ErrSize, "expected %d, want %d", len(expected), n.topo.OutputSize())
	}
	return nil
}

func (n *Net) forward(l Layer) {
	in := n.mem.Slice(n.boundaries[l.Front].Activation)
	back := n.boundaries[l.Back]
	out := n.mem.Slice(back.Activation)
	bias := n.mem.Slice(back.Bias)
	w := n.mem.Slice(l.Weights)

	for o := range out {
		sum := span.Dot(w[o*l.Cols:(o+1)*l.Cols], in) + bias[o]
		if sum > 0 {
			out[o] = sum
		} else {
			out[o] = 0
		}
	}
}

// backward pushes the back error of l into the front error and updates the
// weights and biases of l. A back neuron whose activation is <= 0 is skipped
// entirely: it passes no error and none of its weights or its bias move.
func (n *Net) backward(l Layer) {
	front := n.boundaries[l.Front]
	back := n.boundaries[l.Back]
	in := n.mem.Slice(front.Activation)
	out := n.mem.Slice(back.Activation)
	outErr := n.mem.Slice(back.Error)
	bias := n.mem.Slice(back.Bias)
	w := n.mem.Slice(l.Weights)

	var inErr []float32
	if front.Error.Len > 0 {
		inErr = n.mem.Slice(front.Error)
		span.Fill(inErr, 0)
	}

	for o, a := range out {
		if a <= 0 {
			continue
		}
		e := outErr[o]
		row := w[o*l.Cols : (o+1)*l.Cols]
		if inErr != nil {
			span.Axpy(e, row, inErr)
		}
		span.Axpy(LearningRate*e, in, row)
		bias[o] += LearningRate * e
	}
}
