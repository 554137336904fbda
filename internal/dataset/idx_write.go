package dataset

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// WriteImages encodes images in the IDX image format. Every image must hold
// width*height bytes.
func WriteImages(w io.Writer, width, height int, images [][]byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(ImageMagic)); err != nil {
		return errors.Wrap(err, "write image header")
	}
	hdr := imageHeader{
		Count: uint32(len(images)),
		Rows:  uint32(height),
		Cols:  uint32(width),
	}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		return errors.Wrap(err, "write image header")
	}
	for i, img := range images {
		if len(img) != width*height {
			return errors.Errorf("image %d: %d bytes, want %d", i, len(img), width*height)
		}
		if _, err := w.Write(img); err != nil {
			return errors.Wrapf(err, "write image %d", i)
		}
	}
	return nil
}

// WriteLabels encodes labels in the IDX label format.
func WriteLabels(w io.Writer, labels []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(LabelMagic)); err != nil {
		return errors.Wrap(err, "write label header")
	}
	hdr := labelHeader{Count: uint32(len(labels))}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		return errors.Wrap(err, "write label header")
	}
	_, err := w.Write(labels)
	return errors.Wrap(err, "write labels")
}
