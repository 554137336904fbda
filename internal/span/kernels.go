package span

func sub1(a, b, dst []float32) {
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
}

func add1(a, b, dst []float32) {
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}

func fill1(dst []float32, v float32) {
	for i := range dst {
		dst[i] = v
	}
}

// 8-wide unrolled variants. The tail falls through to the scalar loop.

func sub8(a, b, dst []float32) {
	n := len(dst) &^ 7
	for i := 0; i < n; i += 8 {
		d := dst[i : i+8 : i+8]
		x := a[i : i+8 : i+8]
		y := b[i : i+8 : i+8]
		d[0] = x[0] - y[0]
		d[1] = x[1] - y[1]
		d[2] = x[2] - y[2]
		d[3] = x[3] - y[3]
		d[4] = x[4] - y[4]
		d[5] = x[5] - y[5]
		d[6] = x[6] - y[6]
		d[7] = x[7] - y[7]
	}
	sub1(a[n:], b[n:], dst[n:])
}

func add8(a, b, dst []float32) {
	n := len(dst) &^ 7
	for i := 0; i < n; i += 8 {
		d := dst[i : i+8 : i+8]
		x := a[i : i+8 : i+8]
		y := b[i : i+8 : i+8]
		d[0] = x[0] + y[0]
		d[1] = x[1] + y[1]
		d[2] = x[2] + y[2]
		d[3] = x[3] + y[3]
		d[4] = x[4] + y[4]
		d[5] = x[5] + y[5]
		d[6] = x[6] + y[6]
		d[7] = x[7] + y[7]
	}
	add1(a[n:], b[n:], dst[n:])
}

func fill8(dst []float32, v float32) {
	n := len(dst) &^ 7
	for i := 0; i < n; i += 8 {
		d := dst[i : i+8 : i+8]
		d[0], d[1], d[2], d[3] = v, v, v, v
		d[4], d[5], d[6], d[7] = v, v, v, v
	}
	fill1(dst[n:], v)
}
