package mailbox

import "github.com/hidio/hidio-core/pkg/packet"

// Message is an addressed HID-IO packet moving through the bus: src and
// dst are mailbox Addresses, data is the reassembled wire packet.
type Message struct {
	Src  Address
	Dst  Address
	Data packet.Packet
}

// NewMessage returns a Message wrapping data between src and dst.
func NewMessage(src, dst Address, data packet.Packet) Message {
	return Message{Src: src, Dst: dst, Data: data}
}

// SendAck publishes an Ack response to m on mb, swapping src and dst and
// preserving m's command id, matching Message::send_ack.
func (m Message) SendAck(mb *Mailbox, payload []byte) error {
	return mb.Publish(Message{
		Src: m.Dst,
		Dst: m.Src,
		Data: packet.Packet{
			Type:    packet.TypeAck,
			ID:      m.Data.ID,
			Done:    true,
			Payload: payload,
		},
	})
}

// SendNak publishes a Nak response to m on mb, swapping src and dst and
// preserving m's command id, matching Message::send_nak.
func (m Message) SendNak(mb *Mailbox, payload []byte) error {
	return mb.Publish(Message{
		Src: m.Dst,
		Dst: m.Src,
		Data: packet.Packet{
			Type:    packet.TypeNak,
			ID:      m.Data.ID,
			Done:    true,
			Payload: payload,
		},
	})
}
