package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"nn-dashboard/internal/arena"
)

// IDX magic numbers for the MNIST image and label files.
const (
	ImageMagic = 2051
	LabelMagic = 2049
)

// NumClasses is the number of digit classes in MNIST.
const NumClasses = 10

var (
	// ErrBadMagic indicates the file is not the expected IDX kind.
	ErrBadMagic = errors.New("dataset: magic number mismatch")
	// ErrTruncated indicates the file ended before the declared payload.
	ErrTruncated = errors.New("dataset: file truncated")
	// ErrLabelRange indicates a label outside [0, NumClasses).
	ErrLabelRange = errors.New("dataset: label out of range")
)

// Header sizes in bytes, magic included.
const (
	imageHeaderLen = 16
	labelHeaderLen = 8
)

type imageHeader struct {
	Count uint32
	Rows  uint32
	Cols  uint32
}

type labelHeader struct {
	Count uint32
}

// Images is a parsed IDX image file. Pixels are stored row-major, one byte
// per pixel, image after image.
type Images struct {
	Count  int
	Width  int
	Height int

	pixels *arena.Buffer[uint8]
	data   []uint8
}

// Labels is a parsed IDX label file.
type Labels struct {
	Count int

	labels *arena.Buffer[uint8]
	data   []uint8
}

// LoadImages parses the IDX image file at path. Paths ending in .gz are
// decompressed on the fly.
func LoadImages(path string) (*Images, error) {
	rc, size, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if err := readMagic(rc, path, ImageMagic); err != nil {
		return nil, err
	}
	var hdr imageHeader
	if err := binary.Read(rc, binary.BigEndian, &hdr); err != nil {
		return nil, errors.Wrapf(truncated(err), "read image header %s", path)
	}

	total := uint64(hdr.Count) * uint64(hdr.Rows) * uint64(hdr.Cols)
	if err := checkPayload(path, size, imageHeaderLen, total); err != nil {
		return nil, err
	}
	if total > arena.MaxElements {
		return nil, errors.Wrapf(arena.ErrAllocation, "%s: %d pixels", path, total)
	}
	buf, err := arena.New[uint8](int(total), "mnist pixels")
	if err != nil {
		return nil, err
	}
	data := buf.PushSlice(int(total))
	if _, err := io.ReadFull(rc, data); err != nil {
		buf.Destroy()
		return nil, errors.Wrapf(truncated(err), "read pixels %s", path)
	}

	return &Images{
		Count:  int(hdr.Count),
		Width:  int(hdr.Cols),
		Height: int(hdr.Rows),
		pixels: buf,
		data:   data,
	}, nil
}

// LoadLabels parses the IDX label file at path.
func LoadLabels(path string) (*Labels, error) {
	rc, size, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if err := readMagic(rc, path, LabelMagic); err != nil {
		return nil, err
	}
	var hdr labelHeader
	if err := binary.Read(rc, binary.BigEndian, &hdr); err != nil {
		return nil, errors.Wrapf(truncated(err), "read label header %s", path)
	}
	if err := checkPayload(path, size, labelHeaderLen, uint64(hdr.Count)); err != nil {
		return nil, err
	}
	if uint64(hdr.Count) > arena.MaxElements {
		return nil, errors.Wrapf(arena.ErrAllocation, "%s: %d labels", path, hdr.Count)
	}

	buf, err := arena.New[uint8](int(hdr.Count), "mnist labels")
	if err != nil {
		return nil, err
	}
	data := buf.PushSlice(int(hdr.Count))
	if _, err := io.ReadFull(rc, data); err != nil {
		buf.Destroy()
		return nil, errors.Wrapf(truncated(err), "read labels %s", path)
	}
	for i, v := range data {
		if v >= NumClasses {
			buf.Destroy()
			return nil, errors.Wrapf(ErrLabelRange, "%s: label %d at %d", path, v, i)
		}
	}

	return &Labels{Count: int(hdr.Count), labels: buf, data: data}, nil
}

// SampleLen is the number of pixels in one image.
func (d *Images) SampleLen() int { return d.Width * d.Height }

// Pixels returns the raw bytes of image i. Callers must not modify them.
func (d *Images) Pixels(i int) []byte {
	n := d.SampleLen()
	start := i * n
	return d.data[start : start+n : start+n]
}

// Destroy releases the pixel storage.
func (d *Images) Destroy() {
	if d == nil {
		return
	}
	d.pixels.Destroy()
	d.data = nil
	d.Count = 0
}

// Label returns the digit class of sample i.
func (l *Labels) Label(i int) uint8 { return l.data[i] }

// Destroy releases the label storage.
func (l *Labels) Destroy() {
	if l == nil {
		return
	}
	l.labels.Destroy()
	l.data = nil
	l.Count = 0
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openIDX opens path for reading. size is the on-disk length for plain
// files and -1 for gzip streams, whose payload length is unknown up front.
func openIDX(path string) (rc io.ReadCloser, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open idx")
	}
	r := bufio.NewReader(f)
	if !strings.HasSuffix(path, ".gz") {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, errors.Wrapf(err, "stat %s", path)
		}
		return &multiCloser{Reader: r, closers: []io.Closer{f}}, info.Size(), nil
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		f.Close()
		return nil, 0, errors.Wrapf(err, "gzip %s", path)
	}
	return &multiCloser{Reader: zr, closers: []io.Closer{f, zr}}, -1, nil
}

func readMagic(r io.Reader, path string, want uint32) error {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return errors.Wrapf(truncated(err), "read magic %s", path)
	}
	if magic != want {
		return errors.Wrapf(ErrBadMagic, "%s: got %d, want %d", path, magic, want)
	}
	return nil
}

// checkPayload rejects a plain file shorter than its header declares before
// any buffer is sized from that header.
func checkPayload(path string, size int64, headerLen, payload uint64) error {
	if size < 0 {
		return nil
	}
	if uint64(size) < headerLen+payload {
		return errors.Wrapf(ErrTruncated, "%s: %d bytes, header declares %d", path, size, headerLen+payload)
	}
	return nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
