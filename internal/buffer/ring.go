// Package buffer provides the bounded in-memory buffers of the process.
package buffer

import "sync"

// Ring is a ring buffer keeping the last n elements.
type Ring[T any] struct {
	index  int
	count  int
	values []T
	lock   *sync.RWMutex
}

// NewRing creates a new ring with the given buffer size.
func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{
		values: make([]T, size),
		lock:   new(sync.RWMutex),
	}
}

// Push adds an element to the ring, evicting the oldest one when full.
func (r *Ring[T]) Push(v T) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[r.index] = v
	r.index = (r.index + 1) % len(r.values)
	r.count++
}

// Size returns the number of elements within the ring.
func (r *Ring[T]) Size() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.count < len(r.values) {
		return r.count
	}
	return len(r.values)
}

// Get returns the ring elements in insertion order, oldest first.
func (r *Ring[T]) Get() []T {
	r.lock.RLock()
	defer r.lock.RUnlock()

	l := len(r.values)
	if r.count < l {
		l = r.count
	}
	out := make([]T, l)
	for i := 0; i < l; i++ {
		idx := i
		if r.count > l {
			idx = (r.index + i) % len(r.values)
		}
		out[i] = r.values[idx]
	}
	return out
}
