// Package pool provides reusable byte buffers for copy and compression I/O.
//
// sync.Pool caches allocated but unused objects for later reuse, relieving
// pressure on the garbage collector. Items may be dropped at any GC cycle,
// which makes it suitable for short-lived buffers but not for persistent
// resources.
package pool

import "sync"

// FixedBufferPool hands out byte slices of a single fixed size.
type FixedBufferPool struct {
	size int64
	pool sync.Pool
}

// NewFixedBuffer creates a pool of buffers with the given size in bytes.
func NewFixedBuffer(size int64) *FixedBufferPool {
	return &FixedBufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, int(size))
				return &b
			},
		},
	}
}

// Size returns the buffer size in bytes this pool hands out.
func (fp *FixedBufferPool) Size() int {
	return int(fp.size)
}

// Get retrieves a pointer to a byte slice of the pool's size.
func (fp *FixedBufferPool) Get() *[]byte {
	return fp.pool.Get().(*[]byte)
}

// Put returns the buffer to the pool. Buffers of a foreign size are dropped.
func (fp *FixedBufferPool) Put(b *[]byte) {
	if b == nil || int64(cap(*b)) != fp.size {
		return
	}
	*b = (*b)[:fp.size]
	fp.pool.Put(b)
}
