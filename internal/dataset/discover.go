package dataset

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/pkg/errors"
)

// ErrMissingFile indicates discovery could not find one of the four files.
var ErrMissingFile = errors.New("dataset: mnist file not found")

var idxRegexp = regexp.MustCompile(`^(train|t10k)-(images|labels)[-.]idx[13]-ubyte(\.gz)?$`)

// Files names the four MNIST inputs.
type Files struct {
	TrainImages string
	TestImages  string
	TrainLabels string
	TestLabels  string
}

// Validate reports the first empty path.
func (f Files) Validate() error {
	for _, p := range []struct{ name, path string }{
		{"train images", f.TrainImages},
		{"test images", f.TestImages},
		{"train labels", f.TrainLabels},
		{"test labels", f.TestLabels},
	} {
		if p.path == "" {
			return errors.Wrap(ErrMissingFile, p.name)
		}
	}
	return nil
}

// DiscoverFiles walks root for the standard MNIST file names. Uncompressed
// files win over their .gz siblings; the first match in lexical order is
// used when several directories hold a copy.
func DiscoverFiles(root string) (Files, error) {
	entries := make([]string, 0, 4)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if idxRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return Files{}, errors.Wrap(err, "discover mnist files")
	}
	sort.Strings(entries)

	var files Files
	for _, path := range entries {
		m := idxRegexp.FindStringSubmatch(filepath.Base(path))
		var slot *string
		switch m[1] + "/" + m[2] {
		case "train/images":
			slot = &files.TrainImages
		case "t10k/images":
			slot = &files.TestImages
		case "train/labels":
			slot = &files.TrainLabels
		case "t10k/labels":
			slot = &files.TestLabels
		}
		if *slot == "" {
			*slot = path
		}
	}
	if err := files.Validate(); err != nil {
		return files, errors.Wrapf(err, "under %s", root)
	}
	return files, nil
}
