package mailbox

import (
	"errors"
	"fmt"
)

// ErrInvalidSource is returned by Publish when a message's Src is the All
// address, which is a broadcast destination only (see DESIGN.md's
// resolution of the corresponding Open Question).
var ErrInvalidSource = errors.New("mailbox: All is not a valid message source")

// ErrAlreadyRegistered is returned by AssignUID when the given key/path
// pair already owns a uid.
var ErrAlreadyRegistered = errors.New("mailbox: uid has already been registered")

// ErrMailboxClosed is returned by Publish once the Mailbox has been
// closed. (AckWait reports a closed bus as AckWaitInvalid, and a
// Subscription sees its Messages channel closed.)
var ErrMailboxClosed = errors.New("mailbox: mailbox is closed")

// AckWaitErrorKind classifies why AckWait failed to return an Ack.
type AckWaitErrorKind int

// AckWait failure kinds, mirroring Rust's AckWaitError enum.
const (
	// AckWaitTooManySyncs is returned when more Sync beacons arrive than
	// the caller was willing to tolerate while waiting (each Sync
	// signals an otherwise idle bus, i.e. no response is forthcoming).
	AckWaitTooManySyncs AckWaitErrorKind = iota
	// AckWaitNAKReceived is returned when the peer rejected the command;
	// the rejecting Message is attached for inspection.
	AckWaitNAKReceived
	// AckWaitInvalid is returned when the subscription stream ended
	// (mailbox closed) before a matching Ack/Nak arrived.
	AckWaitInvalid
)

// AckWaitError reports why AckWait did not return a successful Ack.
type AckWaitError struct {
	Kind AckWaitErrorKind
	Msg  *Message
}

func (e *AckWaitError) Error() string {
	switch e.Kind {
	case AckWaitTooManySyncs:
		return "mailbox: too many sync beacons while waiting for ack"
	case AckWaitNAKReceived:
		return fmt.Sprintf("mailbox: nak received: %v", e.Msg)
	case AckWaitInvalid:
		return "mailbox: ack wait ended without a matching response"
	default:
		return fmt.Sprintf("mailbox: unknown ack wait error (%d)", int(e.Kind))
	}
}
