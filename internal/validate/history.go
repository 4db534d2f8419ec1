package validate

import "math"

// history is a fixed-capacity ring of samples; the oldest sample is dropped on overflow.
type history struct {
	buf  []float64
	head int
	n    int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]float64, capacity)}
}

func (h *history) push(v float64) {
	h.buf[(h.head+h.n)%len(h.buf)] = v
	if h.n < len(h.buf) {
		h.n++
		return
	}
	h.head = (h.head + 1) % len(h.buf)
}

func (h *history) len() int { return h.n }

// values returns the samples oldest first.
func (h *history) values() []float64 {
	out := make([]float64, h.n)
	for i := range out {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

// meanStd returns the mean and population standard deviation.
func (h *history) meanStd() (mean, std float64) {
	if h.n == 0 {
		return 0, 0
	}
	for i := 0; i < h.n; i++ {
		mean += h.buf[(h.head+i)%len(h.buf)]
	}
	mean /= float64(h.n)
	for i := 0; i < h.n; i++ {
		d := h.buf[(h.head+i)%len(h.buf)] - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(h.n))
}

func (h *history) clear() {
	h.head, h.n = 0, 0
}
