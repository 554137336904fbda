package dataset

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrCountMismatch indicates an image file and its label file disagree on
// the number of samples.
var ErrCountMismatch = errors.New("dataset: image/label count mismatch")

// Split pairs an image file with its labels.
type Split struct {
	Images *Images
	Labels *Labels
}

// Len is the number of samples in the split.
func (s Split) Len() int {
	if s.Images == nil {
		return 0
	}
	return s.Images.Count
}

// Label returns the class of sample i.
func (s Split) Label(i int) uint8 { return s.Labels.Label(i) }

func (s Split) destroy() {
	s.Images.Destroy()
	s.Labels.Destroy()
}

// Set is the full train/test dataset.
type Set struct {
	Train Split
	Test  Split
}

// Destroy releases every buffer of the set.
func (s *Set) Destroy() {
	if s == nil {
		return
	}
	s.Train.destroy()
	s.Test.destroy()
}

type loadJob struct {
	name string
	run  func() error
}

// Load reads the four MNIST files concurrently. It either returns a complete
// Set or an error with everything released; there is no partial result.
func Load(ctx context.Context, files Files) (*Set, error) {
	if err := files.Validate(); err != nil {
		return nil, err
	}
	set := &Set{}
	jobs := []loadJob{
		{"train images", func() (err error) { set.Train.Images, err = LoadImages(files.TrainImages); return }},
		{"test images", func() (err error) { set.Test.Images, err = LoadImages(files.TestImages); return }},
		{"train labels", func() (err error) { set.Train.Labels, err = LoadLabels(files.TrainLabels); return }},
		{"test labels", func() (err error) { set.Test.Labels, err = LoadLabels(files.TestLabels); return }},
	}

	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job loadJob) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			if err := job.run(); err != nil {
				errs[i] = errors.Wrapf(err, "load %s", job.name)
			}
		}(i, job)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			set.Destroy()
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		set.Destroy()
		return nil, err
	}
	for _, s := range []struct {
		name  string
		split Split
	}{{"train", set.Train}, {"test", set.Test}} {
		if s.split.Images.Count != s.split.Labels.Count {
			set.Destroy()
			return nil, errors.Wrapf(ErrCountMismatch, "%s: %d images, %d labels",
				s.name, s.split.Images.Count, s.split.Labels.Count)
		}
	}
	return set, nil
}
