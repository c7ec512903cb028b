// Package mailbox implements the address-tagged broadcast bus that routes
// HID-IO messages between devices, the host controller, and any API
// clients subscribed to the bus. It generalizes the teacher's
// AsyncSession pending-map/worker-pool pattern (pkg/infer/async.go) into a
// fan-out registry of per-subscriber channels.
package mailbox

import "fmt"

// AddrKind identifies the shape of an Address.
type AddrKind int

// Address kinds. All is a broadcast destination only and must never
// appear as a Message's Src (Mailbox.Publish rejects it).
const (
	AddrKindAll AddrKind = iota
	AddrKindAPICapnp
	AddrKindCancelSubscription
	AddrKindDeviceHIDIO
	AddrKindDeviceHID
	AddrKindDropSubscription
	AddrKindModule
)

var addrKindNames = map[AddrKind]string{
	AddrKindAll:                "All",
	AddrKindAPICapnp:           "ApiCapnp",
	AddrKindCancelSubscription: "CancelSubscription",
	AddrKindDeviceHIDIO:        "DeviceHidio",
	AddrKindDeviceHID:          "DeviceHid",
	AddrKindDropSubscription:   "DropSubscription",
	AddrKindModule:             "Module",
}

// Address identifies a mailbox endpoint: a device, an API session, a
// plain module, or one of the two sentinel kinds used to tear down a
// subscription (DropSubscription as Src, CancelSubscription as Dst).
type Address struct {
	Kind AddrKind
	UID  uint64
	SID  uint64
}

// All returns the broadcast destination address.
func All() Address { return Address{Kind: AddrKindAll} }

// APICapnp returns an address for a capnp API session with the given uid.
func APICapnp(uid uint64) Address { return Address{Kind: AddrKindAPICapnp, UID: uid} }

// CancelSubscription returns the destination address used to tell
// subscription sid (owned by endpoint uid) to terminate.
func CancelSubscription(uid, sid uint64) Address {
	return Address{Kind: AddrKindCancelSubscription, UID: uid, SID: sid}
}

// DeviceHIDIO returns an address for an HID-IO-capable device endpoint.
func DeviceHIDIO(uid uint64) Address { return Address{Kind: AddrKindDeviceHIDIO, UID: uid} }

// DeviceHID returns an address for a plain HID device endpoint.
func DeviceHID(uid uint64) Address { return Address{Kind: AddrKindDeviceHID, UID: uid} }

// DropSubscription returns the source address used on a subscription
// cancellation message.
func DropSubscription() Address { return Address{Kind: AddrKindDropSubscription} }

// Module returns the address used by an in-process module (not a
// networked device or API session).
func Module() Address { return Address{Kind: AddrKindModule} }

// String returns a human-readable form of the address.
func (a Address) String() string {
	name := addrKindNames[a.Kind]
	switch a.Kind {
	case AddrKindCancelSubscription:
		return fmt.Sprintf("%s{uid:%d,sid:%d}", name, a.UID, a.SID)
	case AddrKindAPICapnp, AddrKindDeviceHIDIO, AddrKindDeviceHID:
		return fmt.Sprintf("%s{uid:%d}", name, a.UID)
	default:
		return name
	}
}
