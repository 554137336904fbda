package metrics

import "time"

// HistoryLen is the number of recent errors kept for plotting.
const HistoryLen = 256

// Window accumulates per-sample results between snapshots and keeps a ring
// of the most recent errors.
type Window struct {
	samples int
	correct int
	errSum  float64
	compute time.Duration

	lastErr float32
	lastOK  bool

	history [HistoryLen]float32
	head    int
	filled  int
}

// Record adds the outcome of one sample.
func (w *Window) Record(absErr float32, predictionOK bool, compute time.Duration) {
	w.samples++
	if predictionOK {
		w.correct++
	}
	w.errSum += float64(absErr)
	w.compute += compute
	w.lastErr = absErr
	w.lastOK = predictionOK

	w.history[w.head] = absErr
	w.head = (w.head + 1) % HistoryLen
	if w.filled < HistoryLen {
		w.filled++
	}
}

// Snapshot returns aggregated metrics and resets the accumulation window.
// The error history and last values survive the reset.
func (w *Window) Snapshot() Snapshot {
	snap := w.Peek()
	w.samples = 0
	w.correct = 0
	w.errSum = 0
	w.compute = 0
	return snap
}

// Peek returns the same aggregate as Snapshot without resetting.
func (w *Window) Peek() Snapshot {
	snap := Snapshot{
		Samples:      w.samples,
		LastError:    w.lastErr,
		PredictionOK: w.lastOK,
		History:      w.History(),
	}
	if w.samples > 0 {
		snap.MeanError = w.errSum / float64(w.samples)
		snap.Accuracy = float64(w.correct) / float64(w.samples)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.samples)
	}
	if w.compute > 0 {
		snap.SamplesPerSec = float64(w.samples) / w.compute.Seconds()
	}
	return snap
}

// Samples is the number of records since the last Snapshot or Reset.
func (w *Window) Samples() int { return w.samples }

// Reset clears everything, history included.
func (w *Window) Reset() { *w = Window{} }

// History returns the recorded errors, oldest first.
func (w *Window) History() []float32 {
	out := make([]float32, 0, w.filled)
	start := (w.head - w.filled + HistoryLen) % HistoryLen
	for i := 0; i < w.filled; i++ {
		out = append(out, w.history[(start+i)%HistoryLen])
	}
	return out
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Samples       int
	MeanError     float64
	Accuracy      float64
	SamplesPerSec float64
	AvgComputeMS  float64
	LastError     float32
	PredictionOK  bool
	History       []float32
}
