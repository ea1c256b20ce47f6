// Package ringbuf is a lock-free single-producer single-consumer byte ring.
//
// Frames are written and read whole: a Put that does not fit is rejected
// without writing anything, and a Get that cannot be satisfied consumes
// nothing. With one producer and one consumer no lock is needed; head and
// tail are each written by exactly one side.
package ringbuf

import (
	"fmt"
	"sync/atomic"
)

// Ring is a fixed-capacity SPSC byte ring. The zero value is not usable.
type Ring struct {
	buf  []byte
	mask uint64

	// head is only written by the consumer, tail only by the producer.
	// Both count bytes since creation and are reduced modulo len(buf).
	head atomic.Uint64
	_    [56]byte // keep head and tail on separate cache lines
	tail atomic.Uint64

	dropped atomic.Uint64
}

// New allocates a ring of the given capacity, which must be a power of two.
func New(capacity int) *Ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic(fmt.Sprintf("ringbuf: capacity %d is not a power of two", capacity))
	}
	return &Ring{
		buf:  make([]byte, capacity),
		mask: uint64(capacity - 1),
	}
}

// Cap returns the total capacity in bytes.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of readable bytes. It is exact when called by the
// producer or the consumer and a snapshot otherwise.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Free returns the number of bytes a Put could currently accept.
func (r *Ring) Free() int {
	return len(r.buf) - r.Len()
}

// Dropped returns how many Put calls were rejected for lack of space.
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}

// Put appends p as one unit. It returns false, writing nothing, when p does
// not fit. Producer side only.
func (r *Ring) Put(p []byte) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if uint64(len(p)) > uint64(len(r.buf))-(tail-head) {
		r.dropped.Add(1)
		return false
	}

	off := tail & r.mask
	n := copy(r.buf[off:], p)
	copy(r.buf, p[n:])

	// publish after the bytes are in place
	r.tail.Store(tail + uint64(len(p)))
	return true
}

// Get fills p entirely and returns true, or returns false and consumes
// nothing when fewer than len(p) bytes are buffered. Consumer side only.
func (r *Ring) Get(p []byte) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if uint64(len(p)) > tail-head {
		return false
	}

	off := head & r.mask
	n := copy(p, r.buf[off:])
	copy(p[n:], r.buf)

	r.head.Store(head + uint64(len(p)))
	return true
}

// Reset discards all buffered bytes. Only safe when neither side is active.
func (r *Ring) Reset() {
	r.head.Store(r.tail.Load())
}
