package model

// Model is the per-sample training surface the driver runs against.
type Model interface {
	// Update evaluates input, records expected - output and applies one
	// gradient step.
	Update(input, expected []float32) error
	// EvalError evaluates input and records expected - output only.
	EvalError(input, expected []float32) error
	AbsError() float32
	Prediction() int
}

var _ Model = (*Net)(nil)
