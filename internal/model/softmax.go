package model

import "github.com/chewxy/math32"

// softmax normalizes v in place. A non-finite or zero total leaves v all zero.
func softmax(v []float32) {
	if len(v) == 0 {
		return
	}
	maxV := v[0]
	for _, x := range v {
		if x > maxV {
			maxV = x
		}
	}
	var sum float32
	for i, x := range v {
		e := math32.Exp(x - maxV)
		v[i] = e
		sum += e
	}
	if sum == 0 || math32.IsNaN(sum) || math32.IsInf(sum, 0) {
		for i := range v {
			v[i] = 0
		}
		return
	}
	inv := 1 / sum
	for i := range v {
		v[i] *= inv
	}
}
