// Package pool provides a reusable byte-buffer pool for the row encoding
// path. Every row Assemble and every SSTable write encodes into a scratch
// buffer; pooling it avoids an allocation per row.
package pool

import (
	"io"
	"sync"
)

// Default growth parameters. Row buffers are small compared to the blob
// buffers this pool was adapted from, so the defaults are scaled down: most
// rows fit a handful of columns in well under 1KiB.
const (
	defaultBufferSize = 1024      // 1KiB
	maxThreshold      = 64 * 1024 // 64KiB
)

// ByteBuffer is a growable byte slice, reused across row/SSTable encodes. It
// implements primitives.Sink.
type ByteBuffer struct {
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the given starting capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{B: make([]byte, 0, defaultSize)}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte { return bb.B }

// Reset empties the buffer but retains its capacity for reuse.
func (bb *ByteBuffer) Reset() { bb.B = bb.B[:0] }

// Len returns the number of bytes written so far.
func (bb *ByteBuffer) Len() int { return len(bb.B) }

// MustWrite appends data, growing the buffer ahead of the append via Grow's
// tiered strategy rather than leaning on append's own doubling.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.Grow(len(data))
	bb.B = append(bb.B, data...)
}

// MustWriteByte appends a single byte, growing the buffer first via Grow.
func (bb *ByteBuffer) MustWriteByte(b byte) {
	bb.Grow(1)
	bb.B = append(bb.B, b)
}

// Grow ensures the buffer can accept requiredBytes more bytes without a
// reallocation on the next append. Buffers under 4x defaultBufferSize grow by
// a flat defaultBufferSize to minimize reallocations while small; larger
// buffers grow by 25% of their current capacity.
func (bb *ByteBuffer) Grow(requiredBytes int) {
	available := cap(bb.B) - len(bb.B)
	if available >= requiredBytes {
		return
	}

	growBy := defaultBufferSize
	if cap(bb.B) > 4*defaultBufferSize {
		growBy = cap(bb.B) / 4
	}
	if growBy < requiredBytes {
		growBy = requiredBytes
	}

	newBuf := make([]byte, len(bb.B), cap(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// WriteTo writes the buffer's contents to w, for framing a row or index
// entry straight into an SSTable file.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	return int64(n), err
}

// ByteBufferPool pools ByteBuffers via sync.Pool. Buffers grown past
// maxThreshold are discarded on Put rather than pooled, so one oversized row
// (a large text column, say) doesn't pin that memory in the pool forever.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool whose buffers start at defaultSize and are
// discarded on Put once they've grown past maxThreshold (0 disables discard).
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any { return NewByteBuffer(defaultSize) },
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a reset ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	return bbp.pool.Get().(*ByteBuffer)
}

// Put returns bb to the pool, discarding it instead if it has grown past
// maxThreshold. Put(nil) is a no-op.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}
	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

// defaultPool is the package-level pool used by row.Assemble and the
// SSTable writer.
var defaultPool = NewByteBufferPool(defaultBufferSize, maxThreshold)

// Get retrieves a ByteBuffer from the default pool.
func Get() *ByteBuffer { return defaultPool.Get() }

// Put returns a ByteBuffer to the default pool.
func Put(bb *ByteBuffer) { defaultPool.Put(bb) }
