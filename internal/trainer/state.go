// Package trainer drives training and evaluation of a model.Net over the
// MNIST dataset and publishes progress for a polling UI.
package trainer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"nn-dashboard/internal/dataset"
	"nn-dashboard/internal/metrics"
	"nn-dashboard/internal/model"
)

var (
	// ErrAlreadyRunning rejects a start while a training or test loop is active.
	ErrAlreadyRunning = errors.New("trainer: a loop is already running")
	// ErrDataNotLoaded rejects network operations before the dataset is loaded.
	ErrDataNotLoaded = errors.New("trainer: data not loaded")
	// ErrLoadInProgress rejects a second concurrent load.
	ErrLoadInProgress = errors.New("trainer: data load in progress")
	// ErrDataLoaded rejects loading over an existing dataset.
	ErrDataLoaded = errors.New("trainer: data already loaded")
	// ErrNetAllocated rejects CreateNet while a network exists.
	ErrNetAllocated = errors.New("trainer: network already allocated")
	// ErrNoNet rejects running a loop without a network.
	ErrNoNet = errors.New("trainer: no network")
	// ErrIndexRange rejects an out-of-range sample index.
	ErrIndexRange = errors.New("trainer: sample index out of range")
	// ErrClosed reports a load or start that raced with Close.
	ErrClosed = errors.New("trainer: state closed")
)

// DataStatus is the dataset load state.
type DataStatus int32

const (
	NotLoaded DataStatus = iota
	Loading
	Loaded
	LoadFailed
)

func (s DataStatus) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "load_failed"
	}
	return "unknown"
}

// RunStatus is the requested loop state. Setting it back to Idle is how a
// running loop is asked to stop.
type RunStatus int32

const (
	Idle RunStatus = iota
	Training
	Testing
)

func (s RunStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Training:
		return "training"
	case Testing:
		return "testing"
	}
	return "unknown"
}

// Options configures a State.
type Options struct {
	// Seed feeds weight initialization.
	Seed int64
	// LogEvery logs training progress every N samples; 0 disables it.
	LogEvery int
	// Transform is applied to every normalized image; nil feeds pixels as is.
	Transform dataset.Transform
}

// State owns the dataset, the network and the running counters.
//
// Lifecycle calls (LoadData, CreateNet, DestroyNet, Inspect, Close) and loop
// starts are serialized by mu, and publish runs under mu outside a loop. The
// loop itself runs without mu; it is the only writer of the network and
// counters while running is set. Readers poll Snapshot.
type State struct {
	opts Options

	mu   sync.Mutex
	data *dataset.Set
	net  model.Net
	done chan struct{}
	// generation changes on Close so an in-flight load can tell its result
	// belongs to a closed state.
	generation uint64
	closing    bool

	dataStatus atomic.Int32
	runStatus  atomic.Int32
	running    atomic.Bool
	progress   atomic.Pointer[Progress]

	// owned by the active loop, or by mu holders when no loop runs
	sampleIndex  int
	epoch        int
	trainSamples int
	trainRun     metrics.Window
	trainLog     metrics.Window
	testIndex    int
	testEpoch    int
	testRun      metrics.Window
	ws           workingSet
}

// New returns an empty State.
func New(opts Options) *State {
	s := &State{opts: opts}
	s.publish()
	return s
}

// DataStatus reports the load state.
func (s *State) DataStatus() DataStatus { return DataStatus(s.dataStatus.Load()) }

// Status reports the loop state.
func (s *State) Status() RunStatus { return RunStatus(s.runStatus.Load()) }

// LoadData loads the four dataset files synchronously.
func (s *State) LoadData(ctx context.Context, files dataset.Files) error {
	gen, err := s.beginLoad()
	if err != nil {
		return err
	}
	set, err := dataset.Load(ctx, files)
	return s.finishLoad(gen, set, err)
}

// LoadDataAsync starts loading in the background. A rejected start is
// reported immediately; otherwise the result arrives on the channel.
func (s *State) LoadDataAsync(ctx context.Context, files dataset.Files) (<-chan error, error) {
	gen, err := s.beginLoad()
	if err != nil {
		return nil, err
	}
	out := make(chan error, 1)
	go func() {
		set, err := dataset.Load(ctx, files)
		out <- s.finishLoad(gen, set, err)
		close(out)
	}()
	return out, nil
}

func (s *State) beginLoad() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return 0, ErrClosed
	}
	switch s.DataStatus() {
	case Loading:
		return 0, ErrLoadInProgress
	case Loaded:
		return 0, ErrDataLoaded
	}
	s.dataStatus.Store(int32(Loading))
	s.publish()
	return s.generation, nil
}

func (s *State) finishLoad(gen uint64, set *dataset.Set, err error) error {
	if err == nil && set.Train.Len() == 0 {
		set.Destroy()
		err = errors.New("trainer: training set is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		set.Destroy()
		return errors.Wrap(ErrClosed, "load data")
	}
	if err != nil {
		s.dataStatus.Store(int32(LoadFailed))
		s.publish()
		return errors.Wrap(err, "load data")
	}
	s.data = set
	s.dataStatus.Store(int32(Loaded))
	s.publish()
	return nil
}

// DataInfo describes the loaded dataset.
type DataInfo struct {
	TrainCount int
	TestCount  int
	Width      int
	Height     int
	// InputSize is the network input width after the configured transform.
	InputSize int
}

// DataInfo returns counts and dimensions of the loaded dataset.
func (s *State) DataInfo() (DataInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return DataInfo{}, ErrDataNotLoaded
	}
	return s.dataInfo(), nil
}

func (s *State) dataInfo() DataInfo {
	img := s.data.Train.Images
	info := DataInfo{
		TrainCount: s.data.Train.Len(),
		TestCount:  s.data.Test.Len(),
		Width:      img.Width,
		Height:     img.Height,
		InputSize:  img.SampleLen(),
	}
	if s.opts.Transform != nil {
		info.InputSize = s.opts.Transform.OutputLen(img.Width, img.Height)
	}
	return info
}

// DefaultTopology builds a topology whose input and output widths come from
// the loaded data.
func (s *State) DefaultTopology(inner ...int) (model.Topology, error) {
	info, err := s.DataInfo()
	if err != nil {
		return model.Topology{}, err
	}
	return model.NewTopology(info.InputSize, dataset.NumClasses, inner...)
}

// CreateNet allocates the network. Counters restart from zero.
func (s *State) CreateNet(t model.Topology) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return ErrDataNotLoaded
	}
	if s.running.Load() {
		return ErrAlreadyRunning
	}
	if s.net.Created() {
		return ErrNetAllocated
	}
	if !t.Valid() {
		return errors.Wrap(model.ErrInvalidTopology, "empty topology")
	}
	info := s.dataInfo()
	if t.InputSize() != info.InputSize || t.OutputSize() != dataset.NumClasses {
		return errors.Wrapf(model.ErrInvalidTopology, "topology %s does not fit data (input %d, output %d)",
			t, info.InputSize, dataset.NumClasses)
	}
	if err := s.net.Create(t, s.opts.Seed); err != nil {
		return err
	}
	s.resetCounters()
	s.publish()
	return nil
}

// DestroyNet releases the network. It is a no-op when none exists.
func (s *State) DestroyNet() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return ErrAlreadyRunning
	}
	s.net.Destroy()
	s.resetCounters()
	s.publish()
	return nil
}

// Close stops any loop and releases the network and dataset. A load still in
// flight is discarded when it completes.
func (s *State) Close() {
	s.mu.Lock()
	s.closing = true
	for s.running.Load() {
		s.mu.Unlock()
		s.Stop()
		s.Wait()
		s.mu.Lock()
	}
	defer s.mu.Unlock()
	s.closing = false
	s.generation++
	s.net.Destroy()
	s.data.Destroy()
	s.data = nil
	s.dataStatus.Store(int32(NotLoaded))
	s.resetCounters()
	s.publish()
}

func (s *State) resetCounters() {
	s.sampleIndex = 0
	s.epoch = 0
	s.trainSamples = 0
	s.trainRun = metrics.Window{}
	s.trainLog = metrics.Window{}
	s.testIndex = 0
	s.testEpoch = 0
	s.testRun = metrics.Window{}
}
