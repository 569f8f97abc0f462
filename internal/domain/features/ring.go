package features

// ring is a fixed-capacity FIFO; pushing onto a full ring evicts the oldest value.
type ring struct {
	values []float64
	start  int
	size   int
}

func newRing(capacity int) *ring {
	return &ring{values: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	if len(r.values) == 0 {
		return
	}
	if r.size < len(r.values) {
		r.values[(r.start+r.size)%len(r.values)] = v
		r.size++
		return
	}
	r.values[r.start] = v
	r.start = (r.start + 1) % len(r.values)
}

func (r *ring) len() int {
	return r.size
}

func (r *ring) total() float64 {
	var out float64
	for i := 0; i < r.size; i++ {
		out += r.values[(r.start+i)%len(r.values)]
	}
	return out
}

func (r *ring) mean() (float64, bool) {
	if r.size == 0 {
		return 0, false
	}
	return r.total() / float64(r.size), true
}

// items returns the window oldest first.
func (r *ring) items() []float64 {
	out := make([]float64, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.values[(r.start+i)%len(r.values)])
	}
	return out
}
