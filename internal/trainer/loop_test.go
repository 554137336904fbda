package trainer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nn-dashboard/internal/dataset"
	"nn-dashboard/internal/model"
)

const (
	trainCount = 5
	testCount  = 3
)

func writeIDX(t *testing.T, path string, write func(*bytes.Buffer) error) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, write(&buf))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func syntheticFiles(t *testing.T) dataset.Files {
	t.Helper()
	dir := t.TempDir()
	files := dataset.Files{
		TrainImages: filepath.Join(dir, "train-images-idx3-ubyte"),
		TrainLabels: filepath.Join(dir, "train-labels-idx1-ubyte"),
		TestImages:  filepath.Join(dir, "t10k-images-idx3-ubyte"),
		TestLabels:  filepath.Join(dir, "t10k-labels-idx1-ubyte"),
	}
	images := func(n int) [][]byte {
		out := make([][]byte, n)
		for i := range out {
			out[i] = []byte{byte(40 * i), 255, byte(255 - 40*i), 0}
		}
		return out
	}
	labels := func(n int) []byte {
		out := make([]byte, n)
		for i := range out {
			out[i] = byte(i % dataset.NumClasses)
		}
		return out
	}
	writeIDX(t, files.TrainImages, func(b *bytes.Buffer) error { return dataset.WriteImages(b, 2, 2, images(trainCount)) })
	writeIDX(t, files.TrainLabels, func(b *bytes.Buffer) error { return dataset.WriteLabels(b, labels(trainCount)) })
	writeIDX(t, files.TestImages, func(b *bytes.Buffer) error { return dataset.WriteImages(b, 2, 2, images(testCount)) })
	writeIDX(t, files.TestLabels, func(b *bytes.Buffer) error { return dataset.WriteLabels(b, labels(testCount)) })
	return files
}

func readyState(t *testing.T, opts Options) *State {
	t.Helper()
	s := New(opts)
	t.Cleanup(s.Close)
	require.NoError(t, s.LoadData(context.Background(), syntheticFiles(t)))
	topo, err := s.DefaultTopology(3)
	require.NoError(t, err)
	require.NoError(t, s.CreateNet(topo))
	return s
}

func TestSamplesPredicate(t *testing.T) {
	cont := Samples(3)
	assert.True(t, cont())
	assert.True(t, cont())
	assert.True(t, cont())
	assert.False(t, cont())
	assert.False(t, Samples(0)())
}

func TestTrainVisitsRequestedSamples(t *testing.T) {
	for _, tc := range []struct {
		n         int
		wantIndex int
		wantEpoch int
	}{
		{n: 1, wantIndex: 1, wantEpoch: 0},
		{n: trainCount, wantIndex: 0, wantEpoch: 1},
		{n: 2 * trainCount, wantIndex: 0, wantEpoch: 2},
		{n: 12, wantIndex: 2, wantEpoch: 2},
	} {
		s := readyState(t, Options{Seed: 1})
		require.NoError(t, s.Train(Samples(tc.n)))

		p := s.Snapshot()
		assert.Equal(t, tc.n, p.TrainSamples, "n=%d", tc.n)
		assert.Equal(t, tc.wantIndex, p.SampleIndex, "n=%d", tc.n)
		assert.Equal(t, tc.wantEpoch, p.Epoch, "n=%d", tc.n)
		assert.Equal(t, Idle, p.Status)
		assert.Len(t, p.ErrorHistory, tc.n)
	}
}

func TestTrainResumesFromCounters(t *testing.T) {
	s := readyState(t, Options{Seed: 1})
	require.NoError(t, s.Train(Samples(3)))
	require.NoError(t, s.Train(Samples(3)))

	p := s.Snapshot()
	assert.Equal(t, 6, p.TrainSamples)
	assert.Equal(t, 1, p.SampleIndex)
	assert.Equal(t, 1, p.Epoch)
}

func TestTestLeavesWeightsAndTrainCounters(t *testing.T) {
	s := readyState(t, Options{Seed: 2})
	require.NoError(t, s.Train(Samples(2)))
	before := append([]float32(nil), s.net.Weights(0)...)

	require.NoError(t, s.Test(Samples(7)))
	assert.Equal(t, before, s.net.Weights(0))

	p := s.Snapshot()
	assert.Equal(t, 2, p.TrainSamples)
	assert.Equal(t, 2, p.SampleIndex)
	assert.Equal(t, 7, p.TestSamples)
	assert.Equal(t, 1, p.TestIndex)
	assert.Equal(t, 2, p.TestEpoch)

	require.NoError(t, s.Test(Samples(1)))
	p = s.Snapshot()
	assert.Equal(t, 1, p.TestSamples, "test statistics restart per run")
	assert.Equal(t, 1, p.TestIndex)
}

func TestOperationsRequireDataAndNet(t *testing.T) {
	s := New(Options{})
	t.Cleanup(s.Close)

	assert.True(t, errors.Is(s.Train(Samples(1)), ErrDataNotLoaded))
	_, err := s.DefaultTopology(4)
	assert.True(t, errors.Is(err, ErrDataNotLoaded))
	topo, err := model.NewTopology(4, dataset.NumClasses, 3)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.CreateNet(topo), ErrDataNotLoaded))

	require.NoError(t, s.LoadData(context.Background(), syntheticFiles(t)))
	assert.True(t, errors.Is(s.Train(Samples(1)), ErrNoNet))
	assert.True(t, errors.Is(s.StartTesting(), ErrNoNet))
	_, err = s.Inspect(TrainSplit, 0)
	assert.True(t, errors.Is(err, ErrNoNet))

	require.NoError(t, s.CreateNet(topo))
	assert.True(t, errors.Is(s.CreateNet(topo), ErrNetAllocated))

	require.NoError(t, s.DestroyNet())
	require.NoError(t, s.DestroyNet())
	assert.False(t, s.Snapshot().NetCreated)
}

func TestCreateNetRejectsMismatchedTopology(t *testing.T) {
	s := New(Options{})
	t.Cleanup(s.Close)
	require.NoError(t, s.LoadData(context.Background(), syntheticFiles(t)))

	wrongInput, err := model.NewTopology(9, dataset.NumClasses, 3)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.CreateNet(wrongInput), model.ErrInvalidTopology))

	wrongOutput, err := model.NewTopology(4, 3, 3)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.CreateNet(wrongOutput), model.ErrInvalidTopology))

	assert.True(t, errors.Is(s.CreateNet(model.Topology{}), model.ErrInvalidTopology))
}

func TestSecondLoopIsRejected(t *testing.T) {
	s := readyState(t, Options{Seed: 3})

	require.NoError(t, s.StartTraining())
	assert.True(t, errors.Is(s.StartTraining(), ErrAlreadyRunning))
	assert.True(t, errors.Is(s.StartTesting(), ErrAlreadyRunning))
	assert.True(t, errors.Is(s.Train(Samples(1)), ErrAlreadyRunning))
	assert.True(t, errors.Is(s.DestroyNet(), ErrAlreadyRunning))
	_, err := s.Inspect(TrainSplit, 0)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	s.Stop()
	s.Wait()
	assert.Equal(t, Idle, s.Status())
	assert.Equal(t, Idle, s.Snapshot().Status)

	require.NoError(t, s.StartTesting())
	s.Stop()
	s.Wait()
	require.NoError(t, s.DestroyNet())
}

func TestInspect(t *testing.T) {
	s := readyState(t, Options{Seed: 4})

	got, err := s.Inspect(TestSplit, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Label)
	assert.Equal(t, []byte{80, 255, 175, 0}, got.Pixels)
	require.Len(t, got.Activations, 3)
	assert.Len(t, got.Activations[0], 4)
	assert.Len(t, got.Activations[2], dataset.NumClasses)

	_, err = s.Inspect(TrainSplit, trainCount)
	assert.True(t, errors.Is(err, ErrIndexRange))
	_, err = s.Inspect(TestSplit, -1)
	assert.True(t, errors.Is(err, ErrIndexRange))

	assert.Zero(t, s.Snapshot().TrainSamples)
}

func TestLoadStatus(t *testing.T) {
	s := New(Options{})
	t.Cleanup(s.Close)
	assert.Equal(t, NotLoaded, s.DataStatus())

	files := syntheticFiles(t)
	broken := files
	broken.TestLabels = filepath.Join(t.TempDir(), "missing")
	assert.Error(t, s.LoadData(context.Background(), broken))
	assert.Equal(t, LoadFailed, s.DataStatus())

	done, err := s.LoadDataAsync(context.Background(), files)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, Loaded, s.Snapshot().Data)

	assert.True(t, errors.Is(s.LoadData(context.Background(), files), ErrDataLoaded))

	info, err := s.DataInfo()
	require.NoError(t, err)
	assert.Equal(t, DataInfo{TrainCount: trainCount, TestCount: testCount, Width: 2, Height: 2, InputSize: 4}, info)
}

func TestTransformShapesInput(t *testing.T) {
	s := New(Options{Transform: dataset.GradientPool{}})
	t.Cleanup(s.Close)
	require.NoError(t, s.LoadData(context.Background(), syntheticFiles(t)))

	topo, err := s.DefaultTopology(2)
	require.NoError(t, err)
	assert.Equal(t, dataset.GradientPool{}.OutputLen(2, 2), topo.InputSize())
	require.NoError(t, s.CreateNet(topo))
	require.NoError(t, s.Train(Samples(trainCount)))
	assert.Equal(t, 1, s.Snapshot().Epoch)
}

func TestLoadAsyncWithConcurrentLifecycle(t *testing.T) {
	s := New(Options{Seed: 5})
	t.Cleanup(s.Close)

	done, err := s.LoadDataAsync(context.Background(), syntheticFiles(t))
	require.NoError(t, err)

	polling := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-polling:
				return
			default:
				_ = s.Snapshot()
			}
		}
	}()

	for {
		require.NoError(t, s.DestroyNet())
		if _, err := s.DataInfo(); err == nil {
			break
		}
		runtime.Gosched()
	}
	topo, err := s.DefaultTopology(3)
	require.NoError(t, err)
	require.NoError(t, s.CreateNet(topo))
	require.NoError(t, <-done)

	close(polling)
	wg.Wait()

	p := s.Snapshot()
	assert.Equal(t, Loaded, p.Data)
	assert.True(t, p.NetCreated)
	assert.Equal(t, topo.String(), p.Topology)
}

func TestCloseDiscardsInFlightLoad(t *testing.T) {
	s := New(Options{})
	done, err := s.LoadDataAsync(context.Background(), syntheticFiles(t))
	require.NoError(t, err)
	s.Close()

	if err := <-done; err != nil {
		assert.True(t, errors.Is(err, ErrClosed), "got %v", err)
	}
	assert.Equal(t, NotLoaded, s.DataStatus())
	_, err = s.DataInfo()
	assert.True(t, errors.Is(err, ErrDataNotLoaded))

	require.NoError(t, s.LoadData(context.Background(), syntheticFiles(t)))
	s.Close()
}

func TestCloseStopsConcurrentStarts(t *testing.T) {
	s := readyState(t, Options{Seed: 6})
	require.NoError(t, s.StartTraining())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = s.StartTraining()
				runtime.Gosched()
			}
		}
	}()

	s.Close()
	close(stop)
	wg.Wait()
	s.Wait()

	assert.False(t, s.running.Load())
	assert.Equal(t, Idle, s.Status())
	assert.True(t, errors.Is(s.StartTraining(), ErrDataNotLoaded))
	assert.False(t, s.Snapshot().NetCreated)
}
