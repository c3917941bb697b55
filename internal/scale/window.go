package scale

// RollingWindow keeps an exact sliding-window sum over a fixed-size ring
// buffer. It backs the rolling spread and depth baselines in the order book
// metrics.
type RollingWindow struct {
	buf   []float64
	head  int
	sum   float64
	count int
}

// NewRollingWindow creates a window holding up to n samples. n < 1 is
// coerced to 1.
func NewRollingWindow(n int) *RollingWindow {
	if n < 1 {
		n = 1
	}
	return &RollingWindow{buf: make([]float64, n)}
}

// Push adds a sample, evicting the oldest once the window is full.
func (w *RollingWindow) Push(v float64) {
	if w.count == len(w.buf) {
		w.sum -= w.buf[w.head]
	} else {
		w.count++
	}
	w.buf[w.head] = v
	w.sum += v
	w.head = (w.head + 1) % len(w.buf)
}

// Count returns the number of samples currently held.
func (w *RollingWindow) Count() int {
	return w.count
}

// Full reports whether the window holds its capacity of samples.
func (w *RollingWindow) Full() bool {
	return w.count == len(w.buf)
}

// Mean returns the average of the held samples, 0 when empty.
func (w *RollingWindow) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// Values returns the held samples in insertion order.
func (w *RollingWindow) Values() []float64 {
	out := make([]float64, 0, w.count)
	if w.count < len(w.buf) {
		out = append(out, w.buf[:w.count]...)
		return out
	}
	out = append(out, w.buf[w.head:]...)
	out = append(out, w.buf[:w.head]...)
	return out
}

// Median returns the median of the held samples, 0 when empty.
func (w *RollingWindow) Median() float64 {
	return Median(w.Values())
}
