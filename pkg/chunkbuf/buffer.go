// Package chunkbuf implements the fixed-capacity byte-chunk FIFOs used as
// the rx/tx queues between a transport and the packet codec. A Buffer has
// no notion of packet boundaries: it only ever moves whole chunks already
// sized by the caller (a transport's HID report, a firmware rx callback).
package chunkbuf

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue/TryEnqueue once the Buffer has been
// closed, and by Dequeue/TryDequeue once it is closed and drained.
var ErrClosed = errors.New("chunkbuf: buffer is closed")

// ErrFull is returned by TryEnqueue when the buffer has no free slots.
var ErrFull = errors.New("chunkbuf: buffer is full")

// ErrEmpty is returned by TryDequeue when the buffer has no pending chunks.
var ErrEmpty = errors.New("chunkbuf: buffer is empty")

// Buffer is a fixed-capacity FIFO of byte-chunks, backed by a buffered Go
// channel in the same way the teacher's buffer pool is backed by one
// (pkg/stream.BufferPool), generalized from a pool of reusable buffers to
// a queue of pending chunks awaiting send or dispatch.
type Buffer struct {
	capacity int
	chunks   chan []byte
	mu       sync.Mutex
	closed   bool
}

// NewBuffer returns a Buffer that holds up to capacity chunks before
// Enqueue blocks or TryEnqueue fails with ErrFull. capacity corresponds to
// the RxBuf/TxBuf sizing parameters of a firmware Config.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		capacity: capacity,
		chunks:   make(chan []byte, capacity),
	}
}

// Enqueue appends chunk to the FIFO, blocking until a slot is free, ctx is
// canceled, or the buffer is closed.
func (b *Buffer) Enqueue(ctx context.Context, chunk []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()

	select {
	case b.chunks <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue appends chunk without blocking, returning ErrFull if the
// buffer is at capacity and ErrClosed if it has been closed.
func (b *Buffer) TryEnqueue(chunk []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()

	select {
	case b.chunks <- chunk:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue removes and returns the oldest chunk, blocking until one is
// available, ctx is canceled, or the buffer is closed and drained.
func (b *Buffer) Dequeue(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-b.chunks:
		if !ok {
			return nil, ErrClosed
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryDequeue removes and returns the oldest chunk without blocking,
// returning ErrEmpty if none is pending.
func (b *Buffer) TryDequeue() ([]byte, error) {
	select {
	case chunk, ok := <-b.chunks:
		if !ok {
			return nil, ErrClosed
		}
		return chunk, nil
	default:
		return nil, ErrEmpty
	}
}

// Len returns the number of chunks currently queued.
func (b *Buffer) Len() int {
	return len(b.chunks)
}

// Capacity returns the maximum number of chunks the buffer can hold.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// IsFull reports whether the buffer has no free slots.
func (b *Buffer) IsFull() bool {
	return len(b.chunks) >= b.capacity
}

// IsEmpty reports whether the buffer has no pending chunks.
func (b *Buffer) IsEmpty() bool {
	return len(b.chunks) == 0
}

// Close marks the buffer closed. Chunks already queued remain available to
// Dequeue/TryDequeue until drained; after that, both return ErrClosed.
// Enqueue/TryEnqueue fail immediately once Close has been called.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.chunks)
}
