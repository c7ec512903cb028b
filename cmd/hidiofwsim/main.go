// Command hidiofwsim runs a firmware.Engine against an in-memory
// transport, driven by a regular host-side endpoint.Controller on the
// other end of the pipe, so the protocol can be exercised end to end
// without real hardware.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hidio/hidio-core/pkg/command"
	"github.com/hidio/hidio-core/pkg/endpoint"
	"github.com/hidio/hidio-core/pkg/firmware"
	"github.com/hidio/hidio-core/pkg/mailbox"
	"github.com/hidio/hidio-core/pkg/packet"
	"github.com/hidio/hidio-core/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hidiofwsim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := firmware.DefaultConfig()
	identity := firmware.Identity{
		Name:            "hidiofwsim",
		Serial:          "SIM-0001",
		MCU:             "simulated",
		FirmwareName:    "hidiofwsim",
		FirmwareVersion: "0.1.0",
		Vendor:          "hidio",
		HIDIOMajor:      1,
		HIDIOMinor:      0,
		HIDIOPatch:      0,
	}
	callbacks := firmware.Callbacks{
		Terminal: func(ctx context.Context, text string) error {
			log.Printf("fwsim: terminal cmd: %q", text)
			return nil
		},
		SleepMode: func(ctx context.Context) error {
			log.Print("fwsim: entering sleep mode")
			return nil
		},
		FlashMode: func(ctx context.Context) (byte, error) {
			log.Print("fwsim: entering flash mode")
			return 0, nil
		},
		ManufacturingTest: func(ctx context.Context, cmd, arg uint16, buf []byte) (int, error) {
			log.Printf("fwsim: manufacturing test cmd=%d arg=%d", cmd, arg)
			return 0, nil
		},
	}

	fw, err := firmware.New(cfg, identity, callbacks)
	if err != nil {
		return fmt.Errorf("constructing firmware engine: %w", err)
	}

	fwSide, hostSide := transport.NewPipePair(uint32(cfg.BufChunk))

	mb := mailbox.New()
	defer mb.Close()

	codec := packet.NewCodec(cfg.MessageLen)
	dispatcher := command.NewDispatcher()
	command.RegisterSupportedIDsHandler(dispatcher)
	command.RegisterTestHandler(dispatcher, func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})

	uid, err := mb.AssignUID("hidiofwsim", "pipe")
	if err != nil {
		return fmt.Errorf("assigning uid: %w", err)
	}
	ctrl := endpoint.NewController(mb, uid, "pipe", hostSide, codec, dispatcher)
	defer ctrl.Close()

	go driveFirmware(ctx, fw, fwSide, cfg.BufChunk)

	log.Printf("fwsim: running with uid %d, interrupt to stop", uid)
	if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("controller: %w", err)
	}
	return nil
}

// driveFirmware pumps bytes between the firmware Engine's rx/tx buffers
// and its end of the pipe transport, standing in for the interrupt
// handler and foreground poll loop a real firmware build would use to
// drive the same Engine methods.
func driveFirmware(ctx context.Context, fw *firmware.Engine, t transport.HidTransport, chunkSize int) {
	readCh := make(chan []byte, 1)
	go func() {
		for {
			buf := make([]byte, chunkSize)
			n, err := t.Read(buf)
			if err != nil {
				close(readCh)
				return
			}
			select {
			case readCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case chunk, ok := <-readCh:
			if !ok {
				return
			}
			if err := fw.RxBytes(chunk); err != nil {
				log.Printf("fwsim: rx: %v", err)
				continue
			}
			if _, err := fw.Process(ctx, 0); err != nil {
				log.Printf("fwsim: process: %v", err)
			}
			flushOutbound(fw, t)

		case <-ticker.C:
			flushOutbound(fw, t)

		case <-ctx.Done():
			return
		}
	}
}

func flushOutbound(fw *firmware.Engine, t transport.HidTransport) {
	for {
		chunk, ok := fw.TxBytes()
		if !ok {
			return
		}
		if _, err := t.Write(chunk); err != nil {
			log.Printf("fwsim: tx: %v", err)
			return
		}
	}
}
