package trainer

import (
	"log"
	"time"

	"github.com/pkg/errors"

	"nn-dashboard/internal/dataset"
	"nn-dashboard/internal/model"
	"nn-dashboard/internal/span"
)

// publishEvery is how many samples pass between progress snapshots.
const publishEvery = 32

// Train runs the training loop on the calling goroutine while cont returns
// true and no Stop has been requested. Each iteration trains one sample.
func (s *State) Train(cont func() bool) error {
	if err := s.acquire(Training); err != nil {
		return err
	}
	defer s.release()
	return s.train(cont)
}

// Test runs the evaluation loop on the calling goroutine. The test index and
// test statistics restart from zero on every call.
func (s *State) Test(cont func() bool) error {
	if err := s.acquire(Testing); err != nil {
		return err
	}
	defer s.release()
	return s.test(cont)
}

// StartTraining runs the training loop in the background until Stop.
func (s *State) StartTraining() error {
	if err := s.acquire(Training); err != nil {
		return err
	}
	go s.background(s.train)
	return nil
}

// StartTesting runs the test loop in the background until Stop.
func (s *State) StartTesting() error {
	if err := s.acquire(Testing); err != nil {
		return err
	}
	go s.background(s.test)
	return nil
}

// Stop asks the active loop to exit after its current iteration.
func (s *State) Stop() { s.runStatus.Store(int32(Idle)) }

// Wait blocks until the most recently started loop has exited.
func (s *State) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *State) background(loop func(func() bool) error) {
	defer s.release()
	if err := loop(always); err != nil {
		log.Printf("loop error=%v", err)
	}
}

func always() bool { return true }

func (s *State) acquire(status RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return ErrClosed
	}
	if s.data == nil {
		return ErrDataNotLoaded
	}
	if !s.net.Created() {
		return ErrNoNet
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.runStatus.Store(int32(status))
	s.done = make(chan struct{})
	return nil
}

func (s *State) release() {
	s.mu.Lock()
	done := s.done
	s.runStatus.Store(int32(Idle))
	s.publish()
	s.running.Store(false)
	s.mu.Unlock()
	close(done)
}

func (s *State) train(cont func() bool) error {
	var net model.Model = &s.net
	split := s.data.Train
	n := split.Len()
	log.Printf("train start topology=%s index=%d epoch=%d", s.net.Topology(), s.sampleIndex, s.epoch)

	for s.Status() == Training && cont() {
		input, expected := s.ws.load(split, s.sampleIndex, s.opts.Transform)

		start := time.Now()
		if err := net.Update(input, expected); err != nil {
			return errors.Wrapf(err, "train sample %d", s.sampleIndex)
		}
		compute := time.Since(start)

		absErr := net.AbsError()
		ok := net.Prediction() == span.Argmax(expected)
		s.trainRun.Record(absErr, ok, compute)
		s.trainLog.Record(absErr, ok, compute)
		s.trainSamples++

		s.sampleIndex++
		if s.sampleIndex == n {
			s.sampleIndex = 0
			s.epoch++
		}

		if s.trainSamples%publishEvery == 0 {
			s.publish()
		}
		if s.opts.LogEvery > 0 && s.trainSamples%s.opts.LogEvery == 0 {
			snap := s.trainLog.Snapshot()
			log.Printf("step=%d epoch=%d index=%d error=%.4f mean_error=%.4f accuracy=%.3f samples_per_sec=%.1f compute_ms=%.3f",
				s.trainSamples,
				s.epoch,
				s.sampleIndex,
				snap.LastError,
				snap.MeanError,
				snap.Accuracy,
				snap.SamplesPerSec,
				snap.AvgComputeMS,
			)
		}
	}

	log.Printf("train stop samples=%d epoch=%d", s.trainSamples, s.epoch)
	return nil
}

func (s *State) test(cont func() bool) error {
	var net model.Model = &s.net
	split := s.data.Test
	n := split.Len()
	if n == 0 {
		return errors.New("trainer: test set is empty")
	}
	s.testIndex = 0
	s.testEpoch = 0
	s.testRun.Reset()

	for s.Status() == Testing && cont() {
		input, expected := s.ws.load(split, s.testIndex, s.opts.Transform)

		start := time.Now()
		if err := net.EvalError(input, expected); err != nil {
			return errors.Wrapf(err, "test sample %d", s.testIndex)
		}
		compute := time.Since(start)

		ok := net.Prediction() == span.Argmax(expected)
		s.testRun.Record(net.AbsError(), ok, compute)

		s.testIndex++
		if s.testIndex == n {
			s.testIndex = 0
			s.testEpoch++
		}
		if s.testRun.Samples()%publishEvery == 0 {
			s.publish()
		}
	}

	snap := s.testRun.Peek()
	log.Printf("test samples=%d mean_error=%.4f accuracy=%.3f samples_per_sec=%.1f",
		snap.Samples, snap.MeanError, snap.Accuracy, snap.SamplesPerSec)
	return nil
}

// Samples returns a predicate that is true exactly n times.
func Samples(n int) func() bool {
	left := n
	return func() bool {
		if left <= 0 {
			return false
		}
		left--
		return true
	}
}

// workingSet holds the per-sample input buffers reused across iterations.
type workingSet struct {
	pixels   []float32
	feature  []float32
	expected []float32
}

func (w *workingSet) load(split dataset.Split, i int, tr dataset.Transform) (input, expected []float32) {
	w.pixels = split.Images.InputAt(i, w.pixels)
	w.expected = split.Labels.OutputAt(i, w.expected)
	if tr == nil {
		return w.pixels, w.expected
	}
	w.feature = tr.Apply(w.feature, w.pixels, split.Images.Width, split.Images.Height)
	return w.feature, w.expected
}

