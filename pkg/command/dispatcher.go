package command

import (
	"context"
	"sort"
	"sync"

	"github.com/hidio/hidio-core/pkg/packet"
)

// CmdHandler answers one incoming command request. req is the request's
// raw payload (already stripped of packet framing). A non-nil error nacks
// the request (for ack-expecting Data packets); the returned byte slice is
// then sent as the Nak's payload (e.g. FlashMode's error-code byte), not
// discarded. Handlers registered for a no-ack command
// (only ever dispatched from NaData packets) may ignore the ack return
// value entirely, since Dispatch never emits a response for NaData.
type CmdHandler func(ctx context.Context, req []byte) (ack []byte, err error)

// Dispatcher is the symmetric command registry: the same type and
// registration API serve both a firmware Engine (single-threaded, handlers
// registered once at startup) and a host endpoint Controller
// (multithreaded, handlers may be registered and deregistered as the
// session's capabilities change).
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[ID]CmdHandler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[ID]CmdHandler)}
}

// RegisterHandler binds h as the handler for id, replacing any previously
// registered handler.
func (d *Dispatcher) RegisterHandler(id ID, h CmdHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[id] = h
}

// Unregister removes the handler for id, if any.
func (d *Dispatcher) Unregister(id ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, id)
}

// Supported returns the sorted list of ids with a registered handler, the
// payload of a SupportedIDs ack.
func (d *Dispatcher) Supported() []ID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]ID, 0, len(d.handlers))
	for id := range d.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d *Dispatcher) lookup(id ID) (CmdHandler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[id]
	return h, ok
}

// Dispatch routes a reassembled Data/NaData packet to its registered
// handler. For a Data packet it always returns a response packet: an Ack
// carrying the handler's result on success, or a Nak on failure or on an
// unregistered id. For a NaData packet it never returns a response packet
// (the sender asked for none), but the handler still runs so its side
// effects (e.g. UnicodeText typing a string) take place; a nil, non-nil
// return communicates a failure the caller may log but must not ack.
//
// Dispatch only accepts Data and NaData packets; callers are expected to
// have already handled Ack/Nak/Sync through the mailbox layer.
func (d *Dispatcher) Dispatch(ctx context.Context, pkt packet.Packet) (*packet.Packet, error) {
	noAck := pkt.Type == packet.TypeNaData
	if pkt.Type != packet.TypeData && !noAck {
		return nil, NewError(ErrKindInvalidArgument, ID(pkt.ID), "Dispatch requires a Data or NaData packet")
	}

	id := ID(pkt.ID)
	h, ok := d.lookup(id)
	if !ok {
		err := NewError(ErrKindNotSupported, id, "no registered handler")
		if noAck {
			return nil, err
		}
		return &packet.Packet{Type: packet.TypeNak, ID: pkt.ID}, err
	}

	ack, err := h(ctx, pkt.Payload)
	if noAck {
		return nil, err
	}
	if err != nil {
		return &packet.Packet{Type: packet.TypeNak, ID: pkt.ID, Payload: ack}, err
	}
	return &packet.Packet{Type: packet.TypeAck, ID: pkt.ID, Payload: ack}, nil
}
