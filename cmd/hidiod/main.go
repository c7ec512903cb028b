// Command hidiod is the host-side HID-IO daemon: it scans for hidraw
// nodes, opens an endpoint.Controller on each, and services them over a
// shared mailbox until interrupted.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/hidio/hidio-core/pkg/command"
	"github.com/hidio/hidio-core/pkg/device"
	"github.com/hidio/hidio-core/pkg/endpoint"
	"github.com/hidio/hidio-core/pkg/firmware"
	"github.com/hidio/hidio-core/pkg/mailbox"
	"github.com/hidio/hidio-core/pkg/packet"
	"github.com/hidio/hidio-core/pkg/transport"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = runScan()
	case "serve":
		err = runServe()
	case "version":
		printVersion()
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "hidiod: unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hidiod: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: hidiod <command>

commands:
  scan      list live hidraw device nodes
  serve     scan and serve every discovered hidraw node until interrupted
  version   print the daemon version
  help      show this message`)
}

func printVersion() {
	fmt.Printf("hidiod %s (%s)\n", version, runtime.Version())
}

func runScan() error {
	found, err := device.Scan()
	if err != nil {
		return fmt.Errorf("scanning hidraw nodes: %w", err)
	}
	if len(found) == 0 {
		fmt.Println("no hidraw nodes found")
		return nil
	}
	for _, info := range found {
		fmt.Printf("%s\t%s\n", info.Name, info.Path)
	}
	return nil
}

// hostIdentity answers the Info properties that belong to this host, the
// counterpart of firmware.Engine.answerInfo.
var hostIdentity = map[command.InfoProperty]string{
	command.InfoPropOSType:           runtime.GOOS,
	command.InfoPropOSVersion:        runtime.Version(),
	command.InfoPropHostSoftwareName: "hidiod",
}

func newHostDispatcher(mb *mailbox.Mailbox) *command.Dispatcher {
	d := command.NewDispatcher()
	command.RegisterSupportedIDsHandler(d)
	command.RegisterTestHandler(d, func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})
	command.RegisterInfoHandler(d, func(ctx context.Context, property command.InfoProperty) (string, error) {
		value, ok := hostIdentity[property]
		if !ok {
			return "", command.NewError(command.ErrKindInvalidArgument, command.Info, "property belongs to the device, not this host")
		}
		return value, nil
	})
	command.RegisterUnicodeTextHandler(d, func(ctx context.Context, text string) error {
		log.Printf("hidiod: type %q", text)
		return nil
	})
	command.RegisterUnicodeStateHandler(d, func(ctx context.Context, text string) error {
		log.Printf("hidiod: hold/release %q", text)
		return nil
	})
	command.RegisterTerminalOutHandler(d, func(ctx context.Context, text string) error {
		log.Printf("hidiod: terminal out: %s", text)
		return nil
	})
	return d
}

// runServe scans for hidraw nodes, opens a Controller on each over the
// shared mailbox, and blocks until SIGINT/SIGTERM.
func runServe() error {
	mb := mailbox.New()
	defer mb.Close()

	found, err := device.Scan()
	if err != nil {
		return fmt.Errorf("scanning hidraw nodes: %w", err)
	}
	if len(found) == 0 {
		return fmt.Errorf("no hidraw nodes found")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dispatcher := newHostDispatcher(mb)
	codec := packet.NewCodec(firmware.DefaultConfig().MessageLen)

	controllers := make([]*endpoint.Controller, 0, len(found))
	for _, info := range found {
		uid, err := mb.AssignUID("hidraw", info.Path)
		if err != nil {
			log.Printf("hidiod: skipping %s: %v", info.Path, err)
			continue
		}
		t, err := transport.OpenHidraw(info.Path, uint32(firmware.DefaultConfig().BufChunk))
		if err != nil {
			log.Printf("hidiod: opening %s: %v", info.Path, err)
			continue
		}
		ctrl := endpoint.NewController(mb, uid, info.Path, t, codec, dispatcher)
		controllers = append(controllers, ctrl)
		log.Printf("hidiod: serving %s (uid %d)", info.Path, uid)

		go func(c *endpoint.Controller, path string) {
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("hidiod: %s: controller stopped: %v", path, err)
			}
		}(ctrl, info.Path)
	}

	if len(controllers) == 0 {
		return fmt.Errorf("no hidraw nodes could be opened")
	}

	<-ctx.Done()
	log.Print("hidiod: shutting down")
	for _, ctrl := range controllers {
		if err := ctrl.Close(); err != nil {
			log.Printf("hidiod: close: %v", err)
		}
	}
	return nil
}
