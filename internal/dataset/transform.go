package dataset

import (
	"strings"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// Transform reshapes a normalized width x height image into a network input.
type Transform interface {
	Apply(dst, in []float32, width, height int) []float32
	// OutputLen is the length produced for a width x height input.
	OutputLen(width, height int) int
}

// ErrUnknownTransform is returned by ParseTransform.
var ErrUnknownTransform = errors.New("dataset: unknown input transform")

// ParseTransform resolves a config name. "" and "none" yield nil.
func ParseTransform(name string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "gradient_pool":
		return GradientPool{}, nil
	default:
		return nil, errors.Wrap(ErrUnknownTransform, name)
	}
}

// GradientPool is a fixed feature extractor: central-difference gradient
// magnitude followed by 2x2 max pooling. It has no learned parameters.
type GradientPool struct{}

// OutputLen implements Transform.
func (GradientPool) OutputLen(width, height int) int {
	return ((width + 1) / 2) * ((height + 1) / 2)
}

// Apply implements Transform.
func (GradientPool) Apply(dst, in []float32, width, height int) []float32 {
	ow, oh := (width+1)/2, (height+1)/2
	dst = resize(dst, ow*oh)
	for i := range dst {
		dst[i] = 0
	}
	at := func(x, y int) float32 {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return in[y*width+x]
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := (at(x+1, y) - at(x-1, y)) * 0.5
			gy := (at(x, y+1) - at(x, y-1)) * 0.5
			mag := math32.Sqrt(gx*gx + gy*gy)
			o := (y/2)*ow + x/2
			if mag > dst[o] {
				dst[o] = mag
			}
		}
	}
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
