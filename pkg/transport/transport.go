// Package transport implements the duplex byte-stream endpoints an
// endpoint.Controller drives: a Linux hidraw device and an in-memory pipe
// pair used for tests and the firmware simulator.
package transport

import "io"

// HidTransport is a duplex HID-IO transport: a stream of raw chunks in
// and out, sized to the device's max report length.
type HidTransport interface {
	io.Reader
	io.Writer
	io.Closer

	// MaxPacketLen returns the largest chunk this transport can carry in
	// a single report, used to size the packet codec's chunk length.
	MaxPacketLen() uint32
}
