package queue

import (
	"sync/atomic"
)

// Ring is the single-producer single-consumer second stage of the write
// pipeline. The dispatcher pushes, the writer pops; because commits happen
// between pops, the ring absorbs bursts so producers holding channel slots
// are not stalled by flush latency. Capacity is rounded up to a power of
// two so slot indexing is a mask.
type Ring struct {
	slots  []atomic.Pointer[Item]
	mask   uint64
	_      [56]byte // keep head and tail on separate cache lines
	head   atomic.Uint64
	_      [56]byte
	tail   atomic.Uint64
	closed atomic.Bool
}

// NewRing creates a ring with at least the given capacity.
func NewRing(capacity int) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring{
		slots: make([]atomic.Pointer[Item], size),
		mask:  uint64(size - 1),
	}
}

// Push appends it; false when the ring is full. Producer-side only.
func (r *Ring) Push(it *Item) bool {
	t := r.tail.Load()
	if t-r.head.Load() > r.mask {
		return false
	}
	r.slots[t&r.mask].Store(it)
	r.tail.Store(t + 1)
	return true
}

// Pop removes the oldest item; false when the ring is empty. Consumer-side
// only.
func (r *Ring) Pop() (*Item, bool) {
	h := r.head.Load()
	if h == r.tail.Load() {
		return nil, false
	}
	it := r.slots[h&r.mask].Swap(nil)
	r.head.Store(h + 1)
	return it, true
}

// Close publishes that no further pushes will happen. The producer must
// call it only after its final Push so the consumer can treat
// closed-and-empty as terminal.
func (r *Ring) Close() {
	r.closed.Store(true)
}

// Closed reports whether the producer has finished.
func (r *Ring) Closed() bool {
	return r.closed.Load()
}

// Len returns the number of buffered items.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the rounded-up capacity.
func (r *Ring) Cap() int {
	return len(r.slots)
}
