package kswin

// slidingWindow is a fixed-capacity FIFO buffer of scalar observations.
type slidingWindow struct {
	values   []float64
	capacity int
}

func newSlidingWindow(capacity int) *slidingWindow {
	return &slidingWindow{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// push appends a batch and evicts the oldest values beyond capacity.
func (w *slidingWindow) push(batch []float64) {
	w.values = append(w.values, batch...)
	if over := len(w.values) - w.capacity; over > 0 {
		w.values = append(w.values[:0], w.values[over:]...)
	}
}

func (w *slidingWindow) len() int   { return len(w.values) }
func (w *slidingWindow) full() bool { return len(w.values) >= w.capacity }

// last returns the trailing k values (the backing slice, not a copy).
func (w *slidingWindow) last(k int) []float64 {
	if k >= len(w.values) {
		return w.values
	}
	return w.values[len(w.values)-k:]
}

// snapshot returns an independent copy of the current contents.
func (w *slidingWindow) snapshot() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

func (w *slidingWindow) reset() {
	w.values = w.values[:0]
}
