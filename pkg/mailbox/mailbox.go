package mailbox

import (
	"context"
	"sync"

	"github.com/hidio/hidio-core/pkg/command"
	"github.com/hidio/hidio-core/pkg/packet"
)

// channelSlots is the per-subscriber buffered channel capacity, matching
// the broadcast bus's CHANNEL_SLOTS: it must be at least as large as the
// queue the slowest subscriber needs.
const channelSlots = 100

// Endpoint is a registered mailbox node: a device or API session
// identified by a uid and (for devices) the transport path it was
// discovered on, used by AssignUID to detect reconnects of the same
// physical device.
type Endpoint struct {
	UID  uint64
	Path string
	Name string
}

type subscriber struct {
	uid    uint64
	sid    uint64
	ch     chan Message
	closed bool
}

// Mailbox is the broadcast bus: every Publish fans out to every live
// Subscription's channel. A slow subscriber drops the message rather than
// stalling the publisher, and stays subscribed; the drop is silent, with
// no lag count or error reported to the subscriber or the publisher.
type Mailbox struct {
	mu      sync.RWMutex
	nodes   []Endpoint
	lastUID uint64
	lookup  map[string][]uint64

	subMu  sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64

	closed bool
}

// New returns an empty Mailbox.
func New() *Mailbox {
	return &Mailbox{
		lookup: make(map[string][]uint64),
		subs:   make(map[uint64]*subscriber),
	}
}

// GetUID attempts to locate an unused uid already associated with key. It
// returns (0, true) if key/path is already registered under a live uid
// (the caller should treat this as "already registered", not "assign me
// uid 0"), (uid, true) if a previously used, now-free uid is available
// for reuse, or (0, false) if no existing uid can be reused.
func (mb *Mailbox) GetUID(key, path string) (uint64, bool) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	for _, uid := range mb.lookup[key] {
		inUse := false
		for _, node := range mb.nodes {
			if node.UID == uid {
				if node.Path == path {
					return 0, true
				}
				inUse = true
				break
			}
		}
		if !inUse {
			return uid, true
		}
	}
	return 0, false
}

// AddUID records uid as belonging to key, so a future GetUID(key, ...) can
// find it once its node is unregistered.
func (mb *Mailbox) AddUID(key string, uid uint64) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.lookup[key] = append(mb.lookup[key], uid)
}

// AssignUID returns a uid for key/path, reusing a previously freed uid
// for the same key when one is available, and allocating a new one
// otherwise. It returns ErrAlreadyRegistered if key/path is already
// registered under a live node.
func (mb *Mailbox) AssignUID(key, path string) (uint64, error) {
	if uid, ok := mb.GetUID(key, path); ok {
		if uid == 0 {
			return 0, ErrAlreadyRegistered
		}
		return uid, nil
	}

	mb.mu.Lock()
	mb.lastUID++
	uid := mb.lastUID
	mb.mu.Unlock()

	mb.AddUID(key, uid)
	return uid, nil
}

// RegisterNode adds ep to the mailbox's live node list.
func (mb *Mailbox) RegisterNode(ep Endpoint) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.nodes = append(mb.nodes, ep)
}

// UnregisterNode removes the node with the given uid, freeing it for
// reuse by a future AssignUID call with the same key.
func (mb *Mailbox) UnregisterNode(uid uint64) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	kept := mb.nodes[:0]
	for _, node := range mb.nodes {
		if node.UID != uid {
			kept = append(kept, node)
		}
	}
	mb.nodes = kept
}

// Subscription is a live registration on the bus. Callers read from
// Messages() until the channel closes (the mailbox was closed, or the
// subscription was individually dropped via DropSubscriber or Close).
type Subscription struct {
	mb  *Mailbox
	sub *subscriber
}

// UID returns the owning endpoint's uid.
func (s *Subscription) UID() uint64 { return s.sub.uid }

// SID returns this subscription's id, used to address a cancellation at
// it specifically (see Address.CancelSubscription).
func (s *Subscription) SID() uint64 { return s.sub.sid }

// Messages returns the channel this subscription receives published
// messages on.
func (s *Subscription) Messages() <-chan Message { return s.sub.ch }

// Close unsubscribes, closing the channel returned by Messages.
func (s *Subscription) Close() { s.mb.unsubscribe(s.sub.sid) }

// Subscribe registers a new subscription owned by endpoint uid (use 0 for
// a transient, non-endpoint-owned subscription such as one created
// internally by AckWait) and returns it.
func (mb *Mailbox) Subscribe(uid uint64) *Subscription {
	mb.subMu.Lock()
	defer mb.subMu.Unlock()

	mb.nextID++
	sid := mb.nextID
	sub := &subscriber{uid: uid, sid: sid, ch: make(chan Message, channelSlots)}
	mb.subs[sid] = sub
	return &Subscription{mb: mb, sub: sub}
}

func (mb *Mailbox) unsubscribe(sid uint64) {
	mb.subMu.Lock()
	defer mb.subMu.Unlock()
	sub, ok := mb.subs[sid]
	if !ok || sub.closed {
		return
	}
	sub.closed = true
	delete(mb.subs, sid)
	close(sub.ch)
}

// DropSubscriber tears down the subscription sid owned by endpoint uid:
// it is removed immediately (unlike the broadcast-channel original, the
// registry here gives the mailbox a direct handle to the subscriber), and
// a CancelSubscription message is still published for any other listener
// (e.g. an API gateway) that needs to react to the teardown.
func (mb *Mailbox) DropSubscriber(uid, sid uint64) {
	mb.subMu.Lock()
	if sub, ok := mb.subs[sid]; ok && sub.uid == uid {
		delete(mb.subs, sid)
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	mb.subMu.Unlock()

	_ = mb.Publish(Message{
		Src:  DropSubscription(),
		Dst:  CancelSubscription(uid, sid),
		Data: packet.Packet{},
	})
}

// Publish fans msg out to every live subscription. A subscriber whose
// channel is full drops the message instead of blocking the publisher.
// Publish rejects a msg whose Src is All.
func (mb *Mailbox) Publish(msg Message) error {
	if msg.Src.Kind == AddrKindAll {
		return ErrInvalidSource
	}

	mb.subMu.RLock()
	defer mb.subMu.RUnlock()
	if mb.closed {
		return ErrMailboxClosed
	}
	for _, sub := range mb.subs {
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

// SendCommand is a convenience wrapper that publishes a Data command
// packet from src to dst.
func (mb *Mailbox) SendCommand(src, dst Address, id command.ID, payload []byte) error {
	return mb.Publish(Message{
		Src: src,
		Dst: dst,
		Data: packet.Packet{
			Type:    packet.TypeData,
			ID:      uint32(id),
			Done:    true,
			Payload: payload,
		},
	})
}

// AckWait subscribes transiently and waits for the next Ack or Nak from
// src answering command id. maxSyncPackets bounds how many Sync beacons
// (each signaling an otherwise idle bus) may pass before giving up; set
// it to 0 to fail on the very first Sync. Every Sync from src counts,
// whatever its id field.
func (mb *Mailbox) AckWait(ctx context.Context, src Address, id command.ID, maxSyncPackets int) (*Message, error) {
	sub := mb.Subscribe(0)
	defer sub.Close()

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil, &AckWaitError{Kind: AckWaitInvalid}
			}
			if msg.Src != src {
				continue
			}
			if msg.Data.Type == packet.TypeSync {
				if maxSyncPackets == 0 {
					return nil, &AckWaitError{Kind: AckWaitTooManySyncs}
				}
				maxSyncPackets--
				continue
			}
			if msg.Data.ID != uint32(id) {
				continue
			}
			switch msg.Data.Type {
			case packet.TypeAck:
				m := msg
				return &m, nil
			case packet.TypeNak:
				m := msg
				return nil, &AckWaitError{Kind: AckWaitNAKReceived, Msg: &m}
			default:
				// Data/Continued/NaData/NaContinued are not ack-wait's concern.
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close shuts the mailbox down, closing every live subscriber channel.
// Publish returns ErrMailboxClosed afterward.
func (mb *Mailbox) Close() {
	mb.subMu.Lock()
	defer mb.subMu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	for sid, sub := range mb.subs {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		delete(mb.subs, sid)
	}
}
