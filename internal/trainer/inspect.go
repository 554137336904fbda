package trainer

import (
	"github.com/pkg/errors"

	"nn-dashboard/internal/model"
)

// Split selects the training or test half of the dataset.
type Split int

const (
	TrainSplit Split = iota
	TestSplit
)

func (s Split) String() string {
	if s == TestSplit {
		return "test"
	}
	return "train"
}

// Inspection is the network's view of a single sample.
type Inspection struct {
	Split      Split
	Index      int
	Label      int
	Prediction int
	AbsError   float32
	Pixels     []byte
	// Activations holds copies of every boundary, input first.
	Activations [][]float32
}

// Inspect evaluates one sample without touching weights or counters. It is
// rejected while a loop runs.
func (s *State) Inspect(which Split, index int) (Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return Inspection{}, ErrDataNotLoaded
	}
	if !s.net.Created() {
		return Inspection{}, ErrNoNet
	}
	if s.running.Load() {
		return Inspection{}, ErrAlreadyRunning
	}

	split := s.data.Train
	if which == TestSplit {
		split = s.data.Test
	}
	if index < 0 || index >= split.Len() {
		return Inspection{}, errors.Wrapf(ErrIndexRange, "%s index %d of %d", which, index, split.Len())
	}

	var ws workingSet
	var net model.Model = &s.net
	input, expected := ws.load(split, index, s.opts.Transform)
	if err := net.EvalError(input, expected); err != nil {
		return Inspection{}, errors.Wrapf(err, "inspect %s sample %d", which, index)
	}
	return Inspection{
		Split:       which,
		Index:       index,
		Label:       int(split.Label(index)),
		Prediction:  net.Prediction(),
		AbsError:    net.AbsError(),
		Pixels:      append([]byte(nil), split.Images.Pixels(index)...),
		Activations: s.net.Activations(),
	}, nil
}
