package dataset

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSet(t *testing.T, dir string, testLabels ...byte) Files {
	t.Helper()
	files := Files{
		TrainImages: filepath.Join(dir, "train-images-idx3-ubyte"),
		TestImages:  filepath.Join(dir, "t10k-images-idx3-ubyte"),
		TrainLabels: filepath.Join(dir, "train-labels-idx1-ubyte"),
		TestLabels:  filepath.Join(dir, "t10k-labels-idx1-ubyte"),
	}
	writeImagesFile(t, files.TrainImages, 2, 2, []byte{1, 2, 3, 4}, []byte{5, 6, 7, 8}, []byte{9, 9, 9, 9})
	writeLabelsFile(t, files.TrainLabels, 0, 1, 2)
	writeImagesFile(t, files.TestImages, 2, 2, []byte{0, 0, 0, 0})
	writeLabelsFile(t, files.TestLabels, testLabels...)
	return files
}

func TestLoadSet(t *testing.T) {
	files := writeSet(t, t.TempDir(), 5)

	set, err := Load(context.Background(), files)
	require.NoError(t, err)
	defer set.Destroy()

	assert.Equal(t, 3, set.Train.Len())
	assert.Equal(t, 1, set.Test.Len())
	assert.Equal(t, uint8(2), set.Train.Label(2))
	assert.Equal(t, uint8(5), set.Test.Label(0))
}

func TestLoadSetCountMismatch(t *testing.T) {
	files := writeSet(t, t.TempDir(), 5, 6)

	_, err := Load(context.Background(), files)
	assert.True(t, errors.Is(err, ErrCountMismatch), "got %v", err)
}

func TestLoadSetAnyFailureFailsAll(t *testing.T) {
	dir := t.TempDir()
	files := writeSet(t, dir, 5)
	files.TestLabels = filepath.Join(dir, "missing")

	set, err := Load(context.Background(), files)
	assert.Error(t, err)
	assert.Nil(t, set)

	files.TestLabels = ""
	_, err = Load(context.Background(), files)
	assert.True(t, errors.Is(err, ErrMissingFile))
}

func TestLoadSetCanceled(t *testing.T) {
	files := writeSet(t, t.TempDir(), 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, files)
	assert.True(t, errors.Is(err, context.Canceled))
}
