// Package ringbuf provides a fixed-capacity ring buffer that keeps the most
// recent values and overwrites the oldest once full. It backs the rolling
// score histories a session keeps per symbol.
//
// A Ring is not safe for concurrent use; its owner serializes access.
package ringbuf

// Ring is a bounded FIFO of the last Cap() pushed values.
type Ring[T any] struct {
	buf   []T
	pos   int // next write position
	count int

	evicted uint64
}

// New creates a ring with the given capacity. Minimum capacity is 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends a value, overwriting the oldest one when the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.count == len(r.buf) {
		r.evicted++
	} else {
		r.count++
	}
	r.buf[r.pos] = v
	r.pos = (r.pos + 1) % len(r.buf)
}

// Values returns the stored values, oldest first, as a new slice.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.count)
	start := r.pos - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Last returns the newest n values, oldest first. Fewer are returned when
// the ring holds fewer than n.
func (r *Ring[T]) Last(n int) []T {
	vals := r.Values()
	if n < len(vals) {
		return vals[len(vals)-n:]
	}
	return vals
}

// Newest returns the most recently pushed value.
func (r *Ring[T]) Newest() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	i := r.pos - 1
	if i < 0 {
		i += len(r.buf)
	}
	return r.buf[i], true
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Evicted returns how many values were overwritten since creation.
func (r *Ring[T]) Evicted() uint64 { return r.evicted }

// Reset empties the ring without releasing its storage.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.pos, r.count = 0, 0
}
