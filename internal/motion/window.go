package motion

// window is a fixed-capacity FIFO of magnitudes that tracks how many samples
// are at or above the immobility threshold, so "all below" is O(1).
type window struct {
	buf       []float64
	head      int // index of the oldest sample
	size      int
	threshold float64
	active    int
}

func newWindow(capacity int, threshold float64) window {
	return window{buf: make([]float64, capacity), threshold: threshold}
}

func (w *window) push(m float64) {
	if w.size == len(w.buf) {
		if w.buf[w.head] >= w.threshold {
			w.active--
		}
		w.buf[w.head] = m
		w.head = (w.head + 1) % len(w.buf)
	} else {
		w.buf[(w.head+w.size)%len(w.buf)] = m
		w.size++
	}
	if m >= w.threshold {
		w.active++
	}
}

func (w *window) full() bool { return w.size == len(w.buf) }

func (w *window) allQuiet() bool { return w.active == 0 }

func (w *window) reset() {
	w.head, w.size, w.active = 0, 0, 0
}
