package dataset

// Normalize maps raw pixel bytes to [0, 1] in a freshly allocated slice.
func Normalize(raw []byte) []float32 {
	return NormalizeInto(make([]float32, len(raw)), raw)
}

// NormalizeInto writes raw/255 into dst, growing it if needed, and returns it.
func NormalizeInto(dst []float32, raw []byte) []float32 {
	dst = resize(dst, len(raw))
	for i, v := range raw {
		dst[i] = float32(v) / 255
	}
	return dst
}

// OneHot returns a NumClasses-wide vector with 1 at label.
func OneHot(label uint8) []float32 {
	return OneHotInto(nil, label)
}

// OneHotInto writes the one-hot encoding of label into dst and returns it.
func OneHotInto(dst []float32, label uint8) []float32 {
	dst = resize(dst, NumClasses)
	for i := range dst {
		dst[i] = 0
	}
	dst[label] = 1
	return dst
}

// InputAt normalizes image i into the caller's working set dst.
func (d *Images) InputAt(i int, dst []float32) []float32 {
	return NormalizeInto(dst, d.Pixels(i))
}

// OutputAt writes the one-hot target for sample i into dst.
func (l *Labels) OutputAt(i int, dst []float32) []float32 {
	return OneHotInto(dst, l.Label(i))
}

func resize(dst []float32, n int) []float32 {
	if cap(dst) < n {
		return make([]float32, n)
	}
	return dst[:n]
}
