// Package ring provides a fixed-capacity buffer that evicts its oldest entry
// when full.
package ring

import "sync"

// Ring holds at most Cap() values. It is safe for concurrent use.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	next  int
	count int
}

// New creates a ring with the given capacity. Capacities below 1 are
// raised to 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when the ring is full. It
// reports whether an eviction happened.
func (r *Ring[T]) Push(v T) (evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted = r.count == len(r.buf)
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if !evicted {
		r.count++
	}
	return evicted
}

// Items returns the held values, most recent first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, 0, r.count)
	for i := 1; i <= r.count; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Filter keeps only the values for which keep returns true, preserving
// their order.
func (r *Ring[T]) Filter(keep func(T) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Oldest first so re-insertion keeps the order.
	kept := make([]T, 0, r.count)
	for i := r.count; i >= 1; i-- {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		if keep(r.buf[idx]) {
			kept = append(kept, r.buf[idx])
		}
	}

	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	copy(r.buf, kept)
	r.count = len(kept)
	r.next = len(kept) % len(r.buf)
}

// Len returns the number of held values.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}
