package features

import "math"

// rollingWindow is a fixed-size ring buffer over the most recent observations.
// Statistics are recomputed two-pass over the buffer, which keeps the
// zero-variance case exact for constant inputs.
type rollingWindow struct {
	buf  []float64
	next int
	n    int
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{buf: make([]float64, size)}
}

// Push appends v, evicting the oldest value once the window is full.
func (w *rollingWindow) Push(v float64) {
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)
	if w.n < len(w.buf) {
		w.n++
	}
}

// Full reports whether the window holds exactly size observations.
func (w *rollingWindow) Full() bool { return w.n == len(w.buf) }

// MeanVar returns the mean and sample variance (ddof=1) of the window.
// Callers must check Full first; a partial window returns NaN.
func (w *rollingWindow) MeanVar() (float64, float64) {
	if !w.Full() || w.n < 2 {
		return math.NaN(), math.NaN()
	}
	sum := 0.0
	for _, v := range w.buf {
		sum += v
	}
	mean := sum / float64(w.n)
	ss := 0.0
	for _, v := range w.buf {
		d := v - mean
		ss += d * d
	}
	return mean, ss / float64(w.n-1)
}
