//go:build integration

// Package integration exercises a firmware.Engine against a real
// endpoint.Controller over an in-memory transport, end to end, the way
// cmd/hidiofwsim pairs them at runtime. These tests are slower and more
// timing-sensitive than the package-level unit suites, hence the
// separate build tag.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/hidio/hidio-core/pkg/command"
	"github.com/hidio/hidio-core/pkg/endpoint"
	"github.com/hidio/hidio-core/pkg/firmware"
	"github.com/hidio/hidio-core/pkg/mailbox"
	"github.com/hidio/hidio-core/pkg/packet"
	"github.com/hidio/hidio-core/pkg/transport"
	"github.com/hidio/hidio-core/testutil"
)

const chunkSize = 64

// pumpFirmware drains chunk-sized bytes from fwTransport into fw and
// flushes whatever fw queues back out, until ctx is canceled. It stands
// in for the interrupt/poll loop cmd/hidiofwsim runs in production.
func pumpFirmware(ctx context.Context, t *testing.T, fw *firmware.Engine, fwTransport transport.HidTransport) {
	t.Helper()
	go func() {
		buf := make([]byte, chunkSize)
		for {
			n, err := fwTransport.Read(buf)
			if err != nil {
				return
			}
			if err := fw.RxBytes(buf[:n]); err != nil {
				return
			}
			if _, err := fw.Process(ctx, 0); err != nil {
				return
			}
			for {
				chunk, ok := fw.TxBytes()
				if !ok {
					break
				}
				if _, err := fwTransport.Write(chunk); err != nil {
					return
				}
			}
		}
	}()
}

func TestFirmwareAndHostControllerRoundTripTestCommand(t *testing.T) {
	cfg := firmware.DefaultConfig()
	cfg.BufChunk = chunkSize
	fw, err := firmware.New(cfg, firmware.Identity{Name: "integration-fw"}, firmware.Callbacks{})
	if err != nil {
		t.Fatalf("firmware.New: %v", err)
	}

	fwTransport, hostTransport := transport.NewPipePair(uint32(chunkSize))
	defer fwTransport.Close()

	mb := mailbox.New()
	defer mb.Close()

	codec := packet.NewCodec(cfg.MessageLen)
	dispatcher := command.NewDispatcher()

	uid, err := mb.AssignUID("integration", "pipe")
	if err != nil {
		t.Fatalf("AssignUID: %v", err)
	}
	ctrl := endpoint.NewController(mb, uid, "pipe", hostTransport, codec, dispatcher)
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pumpFirmware(ctx, t, fw, fwTransport)

	sub := mb.Subscribe(0)
	defer sub.Close()

	if err := mb.SendCommand(mailbox.Module(), ctrl.Address(), command.Test, []byte("round-trip")); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	ack, err := mb.AckWait(ctx, ctrl.Address(), command.Test, 5)
	if err != nil {
		t.Fatalf("AckWait: %v", err)
	}
	if string(ack.Data.Payload) != "round-trip" {
		t.Fatalf("ack payload = %q, want %q", ack.Data.Payload, "round-trip")
	}
}

func TestSkipIfNoHidrawSkipsCleanlyOnAHostWithoutHardware(t *testing.T) {
	path := testutil.SkipIfNoHidraw(t)
	if path == "" {
		t.Fatal("SkipIfNoHidraw returned an empty path without skipping")
	}
}
