// Package endpoint implements the host-side per-transport controller: the
// goroutine that drives a packet codec and a command dispatcher over one
// HidTransport, forwarding completed packets onto the shared mailbox bus
// and pulling outbound mailbox traffic addressed to it back out over the
// wire.
package endpoint

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hidio/hidio-core/pkg/command"
	"github.com/hidio/hidio-core/pkg/mailbox"
	"github.com/hidio/hidio-core/pkg/packet"
	"github.com/hidio/hidio-core/pkg/transport"
)

// maxRecvSize bounds a single transport Read, matching the upstream
// MAX_RECV_SIZE; a hidraw report is always far smaller than this.
const maxRecvSize = 1024

// syncInterval is how long the controller tolerates an otherwise idle
// transport before emitting a Sync beacon.
const syncInterval = 5 * time.Second

// ErrMailboxClosed is returned by Process once the endpoint's mailbox
// subscription has been torn down.
var ErrMailboxClosed = errors.New("endpoint: mailbox subscription closed")

// Controller is a single HID-IO endpoint: one transport, one packet
// decoder, one mailbox subscription, dispatched through a shared command
// Dispatcher. Process must be called repeatedly (directly, or via Run) to
// service both inbound transport traffic and outbound mailbox traffic.
type Controller struct {
	mb         *mailbox.Mailbox
	uid        uint64
	transport  transport.HidTransport
	codec      *packet.Codec
	decoder    *packet.Decoder
	dispatcher *command.Dispatcher
	sub        *mailbox.Subscription
	lastSync   time.Time
	strict     bool
	logger     *log.Logger

	rxCh   chan rxResult
	stopCh chan struct{}
}

// rxResult is one transport.Read outcome, handed from readLoop to Process
// over rxCh so Process can select between inbound bytes and the idle-sync
// timer instead of blocking on Read indefinitely.
type rxResult struct {
	n   int
	err error
	buf []byte
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithStrictMode makes decode errors terminal: Process returns the error
// from Decoder.Feed (usually a *packet.DecodeError) instead of logging it
// and resetting the decoder. The default
// (recoverable) behavior matches most deployments better than the
// original firmware's process-exit-on-decode-error behavior; see
// DESIGN.md's resolution of this Open Question.
func WithStrictMode() Option {
	return func(c *Controller) { c.strict = true }
}

// WithLogger overrides the controller's logger (default log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController registers a DeviceHIDIO(uid) node on mb, subscribes to
// traffic addressed to it, and returns a Controller ready for Process/Run.
func NewController(mb *mailbox.Mailbox, uid uint64, path string, t transport.HidTransport, codec *packet.Codec, dispatcher *command.Dispatcher, opts ...Option) *Controller {
	mb.RegisterNode(mailbox.Endpoint{UID: uid, Path: path})

	c := &Controller{
		mb:         mb,
		uid:        uid,
		transport:  t,
		codec:      codec,
		decoder:    packet.NewDecoder(codec),
		dispatcher: dispatcher,
		sub:        mb.Subscribe(uid),
		lastSync:   time.Now(),
		logger:     log.Default(),
		rxCh:       make(chan rxResult, 1),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// readLoop owns the only outstanding transport.Read at any time, handing
// each result to Process over rxCh. This turns a plain blocking Read into
// something Process can select against alongside the idle-sync timer.
func (c *Controller) readLoop() {
	for {
		buf := make([]byte, maxRecvSize)
		n, err := c.transport.Read(buf)
		select {
		case c.rxCh <- rxResult{n: n, err: err, buf: buf}:
		case <-c.stopCh:
			return
		}
		if err != nil {
			return
		}
	}
}

// Address returns this controller's mailbox address.
func (c *Controller) Address() mailbox.Address { return mailbox.DeviceHIDIO(c.uid) }

// Close unsubscribes from the mailbox and unregisters the node, then
// closes the underlying transport.
func (c *Controller) Close() error {
	close(c.stopCh)
	c.sub.Close()
	c.mb.UnregisterNode(c.uid)
	return c.transport.Close()
}

// respond answers a just-reassembled packet. A Data command always gets
// the dispatcher's Ack (success, or NotSupported handled as a Nak) or Nak
// (handler failure); a NaData command never gets a response, by
// definition. Ack/Nak/Sync packets (not commands themselves) get an
// empty link-level ack confirming their bytes arrived intact.
func (c *Controller) respond(ctx context.Context, pkt packet.Packet) error {
	switch pkt.Type {
	case packet.TypeData:
		resp, err := c.dispatcher.Dispatch(ctx, pkt)
		if err != nil {
			c.logger.Printf("endpoint: dispatch %v: %v", pkt.Type, err)
		}
		return c.writePacket(*resp)
	case packet.TypeNaData:
		if _, err := c.dispatcher.Dispatch(ctx, pkt); err != nil {
			c.logger.Printf("endpoint: dispatch %v: %v", pkt.Type, err)
		}
		return nil
	default:
		return c.writePacket(packet.Packet{Type: packet.TypeAck, ID: pkt.ID})
	}
}

func (c *Controller) writePacket(pkt packet.Packet) error {
	chunks, err := c.codec.Encode(pkt, int(c.transport.MaxPacketLen()))
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if _, err := c.transport.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Process runs one iteration of the controller loop: it waits for
// whichever comes first of (1) inbound transport bytes, (2) the idle-sync
// timer, or (3) ctx cancellation, then drains any outbound mailbox
// traffic addressed to this endpoint. It returns the number of I/O events
// serviced.
func (c *Controller) Process(ctx context.Context) (int, error) {
	ioEvents := 0

	wait := syncInterval - time.Since(c.lastSync)
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case res := <-c.rxCh:
		if res.err != nil {
			return ioEvents, res.err
		}
		ioEvents++
		c.lastSync = time.Now()

		pkt, decErr := c.decoder.Feed(res.buf[:res.n])
		if decErr != nil {
			c.logger.Printf("endpoint: decode error on %v: %v", c.Address(), decErr)
			if c.strict {
				return ioEvents, decErr
			}
			c.decoder.Reset()
		} else if pkt != nil && pkt.Done {
			if err := c.respond(ctx, *pkt); err != nil {
				return ioEvents, err
			}
			if err := c.mb.Publish(mailbox.Message{
				Src:  c.Address(),
				Dst:  mailbox.All(),
				Data: *pkt,
			}); err != nil {
				c.logger.Printf("endpoint: publish failed: %v", err)
			}
		}

	case <-timer.C:
		ioEvents++
		if err := c.writePacket(packet.Packet{Type: packet.TypeSync}); err != nil {
			return ioEvents, err
		}
		c.decoder.Reset()
		c.lastSync = time.Now()
		return ioEvents, nil

	case <-ctx.Done():
		return ioEvents, ctx.Err()
	}

	for {
		select {
		case msg, ok := <-c.sub.Messages():
			if !ok {
				return ioEvents, ErrMailboxClosed
			}
			if msg.Dst != c.Address() {
				continue
			}
			if err := c.writePacket(msg.Data); err != nil {
				return ioEvents, err
			}
			if msg.Data.Type == packet.TypeSync {
				c.decoder.Reset()
			}
		default:
			return ioEvents, nil
		}
	}
}

// Run calls Process in a loop until ctx is canceled or Process returns an
// error.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := c.Process(ctx); err != nil {
			return err
		}
	}
}
