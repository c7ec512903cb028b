package firmware

import (
	"context"
	"strconv"

	"github.com/hidio/hidio-core/pkg/chunkbuf"
	"github.com/hidio/hidio-core/pkg/command"
	"github.com/hidio/hidio-core/pkg/packet"
)

// Engine is one firmware-side HID-IO command interface: a Dispatcher, a
// packet Codec/Decoder, and fixed-capacity rx/tx chunkbuf.Buffers, all
// sized once at New and never regrown, matching spec.md §5's firmware
// execution model (single-threaded, cooperative, no allocation after
// init). Every method is synchronous and non-blocking; callers (an
// interrupt handler, a foreground loop) drive it directly.
type Engine struct {
	cfg       Config
	identity  Identity
	callbacks Callbacks

	dispatcher *command.Dispatcher
	codec      *packet.Codec
	decoder    *packet.Decoder
	rx         *chunkbuf.Buffer
	tx         *chunkbuf.Buffer

	hostInfo    HostInfo
	pendingInfo *command.InfoProperty
	lastError   string
}

// New constructs an Engine from cfg, identity, and callbacks. Unlike the
// package-level Init/Close pair (spec.md §9's process-wide firmware
// state), New has no global side effects and may be called as many times
// as a test needs.
func New(cfg Config, identity Identity, callbacks Callbacks) (*Engine, error) {
	e := &Engine{
		cfg:       cfg,
		identity:  identity,
		callbacks: callbacks,
		codec:     packet.NewCodec(cfg.MessageLen),
		rx:        chunkbuf.NewBuffer(cfg.RxBuf),
		tx:        chunkbuf.NewBuffer(cfg.TxBuf),
	}
	e.decoder = packet.NewDecoder(e.codec)
	e.dispatcher = command.NewDispatcher()
	e.registerHandlers()
	return e, nil
}

func (e *Engine) registerHandlers() {
	e.dispatcher.RegisterHandler(command.SupportedIDs, func(ctx context.Context, req []byte) ([]byte, error) {
		ids := e.dispatcher.Supported()
		if e.cfg.IDLen > 0 && len(ids) > e.cfg.IDLen {
			return nil, NewError(StatusErrorIDListTooSmall, "supported id list exceeds the firmware's fixed report buffer")
		}
		return command.PackSupportedIDsAck(ids), nil
	})

	command.RegisterTestHandler(e.dispatcher, func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})

	command.RegisterInfoHandler(e.dispatcher, e.answerInfo)

	e.dispatcher.RegisterHandler(command.FlashMode, func(ctx context.Context, req []byte) ([]byte, error) {
		if e.callbacks.FlashMode == nil {
			return nil, ErrCallbackNotConfigured
		}
		scancode, err := e.callbacks.FlashMode(ctx)
		if err != nil {
			return nil, err
		}
		return []byte{scancode}, nil
	})

	command.RegisterSleepModeHandler(e.dispatcher, func(ctx context.Context) error {
		if e.callbacks.SleepMode == nil {
			return ErrCallbackNotConfigured
		}
		return e.callbacks.SleepMode(ctx)
	})

	command.RegisterTerminalCmdHandler(e.dispatcher, func(ctx context.Context, text string) error {
		if e.callbacks.Terminal == nil {
			return ErrCallbackNotConfigured
		}
		if err := nulBudget(text, e.cfg.MessageLen); err != nil {
			return err
		}
		return e.callbacks.Terminal(ctx, text)
	})

	command.RegisterManufacturingTestHandler(e.dispatcher, func(ctx context.Context, cmd, arg uint16) ([]byte, error) {
		if e.callbacks.ManufacturingTest == nil {
			return nil, ErrCallbackNotConfigured
		}
		buf := make([]byte, e.cfg.SerializationLen)
		n, err := e.callbacks.ManufacturingTest(ctx, cmd, arg, buf)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	})
}

// answerInfo answers an incoming Info request with this Engine's own
// device identity; OS/host properties belong to the peer, not this
// device, and are rejected with command.ErrKindInvalidArgument.
func (e *Engine) answerInfo(ctx context.Context, property command.InfoProperty) (string, error) {
	switch property {
	case command.InfoPropHIDIOMajor:
		return strconv.Itoa(int(e.identity.HIDIOMajor)), nil
	case command.InfoPropHIDIOMinor:
		return strconv.Itoa(int(e.identity.HIDIOMinor)), nil
	case command.InfoPropHIDIOPatch:
		return strconv.Itoa(int(e.identity.HIDIOPatch)), nil
	case command.InfoPropDeviceName:
		return e.identity.Name, nil
	case command.InfoPropDeviceSerial:
		return e.identity.Serial, nil
	case command.InfoPropDeviceMCU:
		return e.identity.MCU, nil
	case command.InfoPropFirmwareName:
		return e.identity.FirmwareName, nil
	case command.InfoPropFirmwareVersion:
		return e.identity.FirmwareVersion, nil
	case command.InfoPropDeviceVendor:
		return e.identity.Vendor, nil
	default:
		return "", command.NewError(command.ErrKindInvalidArgument, command.Info, "property belongs to the host, not this device")
	}
}

// RxBytes enqueues one transport chunk for the next Process call to
// decode. It never blocks: a full rx buffer returns ErrorBufFull rather
// than growing.
func (e *Engine) RxBytes(chunk []byte) error {
	if err := e.rx.TryEnqueue(append([]byte(nil), chunk...)); err != nil {
		return NewErrorWithCause(StatusErrorBufFull, "rx buffer full", err)
	}
	return nil
}

// TxBytes dequeues the next pending outbound chunk. ok is false when the
// tx buffer is empty (StatusBufferEmpty at the C-ABI boundary).
func (e *Engine) TxBytes() (chunk []byte, ok bool) {
	c, err := e.tx.TryDequeue()
	if err != nil {
		return nil, false
	}
	return c, true
}

// Process drains up to count completed packets from the rx buffer
// (0 means drain until empty), dispatching each through the command
// registry and queuing any resulting ack/nak for TxBytes. It returns how
// many packets it serviced.
func (e *Engine) Process(ctx context.Context, count int) (int, error) {
	serviced := 0
	for count == 0 || serviced < count {
		chunk, err := e.rx.TryDequeue()
		if err != nil {
			break
		}

		pkt, decErr := e.decoder.Feed(chunk)
		if decErr != nil {
			e.lastError = decErr.Error()
			e.decoder.Reset()
			continue
		}
		if pkt == nil {
			continue
		}
		serviced++

		switch pkt.Type {
		case packet.TypeSync:
			continue
		case packet.TypeAck, packet.TypeNak:
			e.handleResponse(*pkt)
			continue
		}

		resp, dispatchErr := e.dispatcher.Dispatch(ctx, *pkt)
		if dispatchErr != nil {
			e.lastError = dispatchErr.Error()
		}
		if resp != nil {
			if err := e.enqueueOutbound(*resp); err != nil {
				return serviced, err
			}
		}
	}
	return serviced, nil
}

// handleResponse applies an incoming Ack/Nak to whatever this Engine is
// waiting on; currently only a QueryInfo in flight.
func (e *Engine) handleResponse(pkt packet.Packet) {
	if e.pendingInfo == nil || command.ID(pkt.ID) != command.Info {
		return
	}
	defer func() { e.pendingInfo = nil }()

	if pkt.Type == packet.TypeNak {
		e.lastError = NewError(StatusErrorDetailed, "Info query nak'd").Error()
		return
	}
	ack, err := command.ParseInfoAck(pkt.Payload)
	if err != nil {
		e.lastError = err.Error()
		return
	}
	switch ack.Property {
	case command.InfoPropHIDIOMajor:
		e.hostInfo.MajorVersion = uint16(ack.Number)
	case command.InfoPropHIDIOMinor:
		e.hostInfo.MinorVersion = uint16(ack.Number)
	case command.InfoPropHIDIOPatch:
		e.hostInfo.PatchVersion = uint16(ack.Number)
	case command.InfoPropOSType:
		e.hostInfo.OSType = ack.Value
	case command.InfoPropOSVersion:
		e.hostInfo.OSVersion = ack.Value
	case command.InfoPropHostSoftwareName:
		e.hostInfo.HostSoftwareName = ack.Value
	}
}

// QueryInfo sends an Info request for property and marks it as the
// Engine's single in-flight query; the next matching Ack/Nak Process sees
// resolves it. Only one query may be outstanding at a time.
func (e *Engine) QueryInfo(property command.InfoProperty) error {
	if e.pendingInfo != nil {
		return ErrQueryInFlight
	}
	pkt := packet.Packet{
		Type:    packet.TypeData,
		ID:      uint32(command.Info),
		Done:    true,
		Payload: command.PackInfoRequest(command.InfoRequest{Property: property}),
	}
	if err := e.enqueueOutbound(pkt); err != nil {
		return err
	}
	e.pendingInfo = &property
	return nil
}

// HostInfo returns the cached host-info record populated by prior
// QueryInfo/Process round-trips.
func (e *Engine) HostInfo() HostInfo { return e.hostInfo }

// SendUnicodeText asks the host to type s, as a no-ack UnicodeText
// command (spec.md §4.3).
func (e *Engine) SendUnicodeText(s string) error {
	return e.sendNoAck(command.UnicodeText, []byte(s))
}

// SendUnicodeState asks the host to hold (or, for an empty string,
// release) the Unicode symbols named in s.
func (e *Engine) SendUnicodeState(s string) error {
	return e.sendNoAck(command.UnicodeState, []byte(s))
}

// SendTerminalOut reports a line of this device's terminal output to the
// host.
func (e *Engine) SendTerminalOut(s string) error {
	return e.sendNoAck(command.TerminalOut, []byte(s))
}

func (e *Engine) sendNoAck(id command.ID, payload []byte) error {
	pkt := packet.Packet{Type: packet.TypeNaData, ID: uint32(id), Done: true, Payload: payload}
	return e.enqueueOutbound(pkt)
}

func (e *Engine) enqueueOutbound(pkt packet.Packet) error {
	chunks, err := e.codec.Encode(pkt, e.cfg.BufChunk)
	if err != nil {
		return NewErrorWithCause(StatusErrorBufSizeTooSmall, "encoding outbound packet", err)
	}
	for _, chunk := range chunks {
		if err := e.tx.TryEnqueue(chunk); err != nil {
			return NewErrorWithCause(StatusErrorBufFull, "tx buffer full", err)
		}
	}
	return nil
}

// LastError returns the most recent diagnostic string set by a decode,
// dispatch, or response failure, for the C-ABI's "retrieve the most
// recent error diagnostic string" entry point. It is not cleared on read.
func (e *Engine) LastError() string { return e.lastError }
