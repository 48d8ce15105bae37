// Package pool provides pooled payload buffers for frame reading.
//
// Binary trace files are read frame by frame, and every frame needs a
// payload buffer whose size is only known after the length prefix has
// been decoded. Pooling those buffers keeps steady-state reading free of
// per-frame allocations.
package pool

import "sync"

const (
	// FrameBufferDefaultSize is the initial capacity of a pooled frame
	// buffer. Typical perception frames are tens of KiB.
	FrameBufferDefaultSize = 64 * 1024

	// FrameBufferMaxRetained is the largest capacity returned to the
	// pool. Buffers grown beyond this (e.g. by one huge sensor frame)
	// are dropped instead of pinning memory for the process lifetime.
	FrameBufferMaxRetained = 8 * 1024 * 1024
)

// FrameBuffer is a reusable payload buffer.
type FrameBuffer struct {
	buf []byte
}

// Payload returns a slice of exactly n bytes backed by the buffer,
// growing the underlying storage if needed. The slice is valid until the
// buffer is returned to the pool or Payload is called again.
func (fb *FrameBuffer) Payload(n int) []byte {
	if cap(fb.buf) < n {
		fb.buf = make([]byte, n)
	}
	fb.buf = fb.buf[:n]

	return fb.buf
}

// Cap returns the current capacity of the underlying storage.
func (fb *FrameBuffer) Cap() int {
	return cap(fb.buf)
}

var frameBufferPool = sync.Pool{
	New: func() any {
		return &FrameBuffer{buf: make([]byte, 0, FrameBufferDefaultSize)}
	},
}

// GetFrameBuffer fetches a frame buffer from the pool.
func GetFrameBuffer() *FrameBuffer {
	fb, _ := frameBufferPool.Get().(*FrameBuffer)

	return fb
}

// PutFrameBuffer returns a frame buffer to the pool. Oversized buffers
// are discarded.
func PutFrameBuffer(fb *FrameBuffer) {
	if fb == nil || cap(fb.buf) > FrameBufferMaxRetained {
		return
	}
	fb.buf = fb.buf[:0]
	frameBufferPool.Put(fb)
}
