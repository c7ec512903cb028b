//go:build unit

package transport

import (
	"testing"
	"time"
)

func TestPipeTransportRoundTrip(t *testing.T) {
	a, b := NewPipePair(64)
	defer a.Close()
	defer b.Close()

	if a.MaxPacketLen() != 64 || b.MaxPacketLen() != 64 {
		t.Fatalf("MaxPacketLen() = %d/%d, want 64/64", a.MaxPacketLen(), b.MaxPacketLen())
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := a.Write([]byte("ping")); err != nil {
			t.Errorf("Write error: %v", err)
		}
	}()

	buf := make([]byte, 16)
	n, err := b.Read(buf)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("Read() = %q, want %q", buf[:n], "ping")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for writer goroutine")
	}
}

func TestPipeTransportCloseUnblocksRead(t *testing.T) {
	a, b := NewPipePair(64)
	defer b.Close()

	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 16)
		_, err := a.Read(buf)
		errCh <- err
	}()

	if err := a.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected Read to fail after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Read to unblock")
	}
}
