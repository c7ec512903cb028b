// Package firmware implements the no-heap, single-threaded command engine
// a keyboard-class firmware endpoint runs: the same pkg/command.Dispatcher
// and pkg/packet codec the host side uses, wired to fixed-capacity
// pkg/chunkbuf rx/tx queues and a small set of foreign callbacks, mirroring
// hid_io_kiibohd::lib.rs's CommandInterface and its extern "C" surface.
package firmware

// Config bounds every buffer the Engine allocates at construction time;
// nothing grows after New returns. Field names and defaults match spec.md
// §6's firmware build-time sizes.
type Config struct {
	// BufChunk is the transport chunk size in bytes.
	BufChunk int
	// RxBuf is the rx byte-chunk buffer's capacity, in chunks.
	RxBuf int
	// TxBuf is the tx byte-chunk buffer's capacity, in chunks.
	TxBuf int
	// MessageLen bounds a single reassembled packet's payload.
	MessageLen int
	// SerializationLen bounds a response payload the Engine builds
	// internally (e.g. a ManufacturingTest ack's result buffer).
	SerializationLen int
	// IDLen bounds how many ids SupportedIDs will report before it Naks
	// with StatusErrorIDListTooSmall; 0 means unbounded.
	IDLen int
}

// DefaultConfig returns the firmware-side defaults from spec.md §6:
// BufChunk=64, RxBuf=8, TxBuf=8, MessageLen=256, SerializationLen=276,
// IDLen=10.
func DefaultConfig() Config {
	return Config{
		BufChunk:         64,
		RxBuf:            8,
		TxBuf:            8,
		MessageLen:       256,
		SerializationLen: 276,
		IDLen:            10,
	}
}
