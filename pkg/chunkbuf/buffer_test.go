//go:build unit

package chunkbuf

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBufferEnqueueDequeueOrder(t *testing.T) {
	buf := NewBuffer(4)
	ctx := context.Background()

	chunks := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	for _, c := range chunks {
		if err := buf.Enqueue(ctx, c); err != nil {
			t.Fatalf("Enqueue error: %v", err)
		}
	}
	if buf.Len() != 3 {
		t.Errorf("Len() = %d, want 3", buf.Len())
	}

	for _, want := range chunks {
		got, err := buf.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue error: %v", err)
		}
		if string(got) != string(want) {
			t.Errorf("Dequeue() = %q, want %q", got, want)
		}
	}
	if !buf.IsEmpty() {
		t.Error("buffer should be empty after draining")
	}
}

func TestBufferTryEnqueueFullReturnsErrFull(t *testing.T) {
	buf := NewBuffer(2)
	if err := buf.TryEnqueue([]byte("1")); err != nil {
		t.Fatalf("TryEnqueue error: %v", err)
	}
	if err := buf.TryEnqueue([]byte("2")); err != nil {
		t.Fatalf("TryEnqueue error: %v", err)
	}
	if !buf.IsFull() {
		t.Error("buffer should report full at capacity")
	}
	if err := buf.TryEnqueue([]byte("3")); !errors.Is(err, ErrFull) {
		t.Fatalf("TryEnqueue() = %v, want ErrFull", err)
	}
}

func TestBufferTryDequeueEmptyReturnsErrEmpty(t *testing.T) {
	buf := NewBuffer(2)
	if _, err := buf.TryDequeue(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("TryDequeue() = %v, want ErrEmpty", err)
	}
}

func TestBufferEnqueueRespectsContextCancellation(t *testing.T) {
	buf := NewBuffer(1)
	ctx := context.Background()
	if err := buf.Enqueue(ctx, []byte("fills it")); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := buf.Enqueue(cancelCtx, []byte("blocked"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Enqueue() = %v, want context.DeadlineExceeded", err)
	}
}

func TestBufferCloseDrainsThenReturnsErrClosed(t *testing.T) {
	buf := NewBuffer(4)
	ctx := context.Background()
	if err := buf.Enqueue(ctx, []byte("leftover")); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	buf.Close()

	got, err := buf.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue after close error: %v", err)
	}
	if string(got) != "leftover" {
		t.Errorf("Dequeue() = %q, want %q", got, "leftover")
	}

	if _, err := buf.Dequeue(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Dequeue() after drain = %v, want ErrClosed", err)
	}

	if err := buf.TryEnqueue([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("TryEnqueue() after close = %v, want ErrClosed", err)
	}
}
