package packet

import "errors"

// Wire framing constants (spec.md §6): each non-Sync chunk begins with a
// head byte (type[3] | continued[1] | id_width[2] | len_hi[2]) followed by
// a length-low byte, then id bytes (head chunks only) and payload. Sync is
// a single byte chunk with no trailing fields.
const (
	maxLen      = 1<<10 - 1 // 10-bit len field: len_hi[2] | len_lo[8]
	headerBytes = 2         // head byte + len_lo byte, present on every non-Sync chunk
)

var (
	// ErrChunkTooSmall is returned by Encode when chunkSize cannot hold
	// even an empty head/continuation chunk for the given id width.
	ErrChunkTooSmall = errors.New("packet: chunk size too small for framing overhead")
	// ErrPayloadTooLarge is returned when payload exceeds the encoder's
	// capacity (the 10-bit wire length field) for a single chunk's share.
	ErrPayloadTooLarge = errors.New("packet: payload exceeds maximum chunk length")
	// ErrInvalidIDWidth is returned by Encode when Codec.IDWidth is not
	// 1, 2, or 4, and by Decoder.Feed for the reserved id-width code 3.
	ErrInvalidIDWidth = errors.New("packet: id width must be 1, 2, or 4 bytes")
	// ErrMalformedChunk is returned when a chunk is too short to contain
	// its own declared fields.
	ErrMalformedChunk = errors.New("packet: malformed chunk")
	// ErrNonChainingType is returned by Encode when asked to fragment a
	// packet type that may never chain (Sync, Ack, Nak).
	ErrNonChainingType = errors.New("packet: type does not support continuation")
)

func idWidthCode(widthBytes int) (byte, error) {
	switch widthBytes {
	case 1:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	default:
		return 0, ErrInvalidIDWidth
	}
}

func idWidthBytesHead(code byte) (int, error) {
	switch code {
	case 0:
		return 1, nil
	case 1:
		return 2, nil
	case 2:
		return 4, nil
	default:
		return 0, ErrInvalidIDWidth
	}
}

func packHead(t Type, continued bool, idCode byte, length int) (head, lenLo byte) {
	var c byte
	if continued {
		c = 1
	}
	lenHi := byte((length >> 8) & 0x3)
	head = (byte(t) << 5) | (c << 4) | (idCode << 2) | lenHi
	lenLo = byte(length & 0xFF)
	return
}

func unpackHead(b byte) (t Type, continued bool, idCode byte, lenHi byte) {
	t = Type((b >> 5) & 0x7)
	continued = (b>>4)&0x1 == 1
	idCode = (b >> 2) & 0x3
	lenHi = b & 0x3
	return
}

func putID(dst []byte, id uint32, width int) {
	for i := 0; i < width; i++ {
		dst[i] = byte(id >> (8 * i))
	}
}

func getID(src []byte, width int) uint32 {
	var id uint32
	for i := 0; i < width; i++ {
		id |= uint32(src[i]) << (8 * i)
	}
	return id
}

// Codec configures id-field width and the encoder's per-packet payload
// ceiling. Construction-time parameters stand in for the source's
// type-level buffer sizing (spec.md §9 "type-level buffer sizing").
type Codec struct {
	// IDWidth is the number of bytes used for the id field on head
	// chunks (1, 2, or 4). HID-IO's command identifier space is 16-bit,
	// so the default constructed by NewCodec is 2.
	IDWidth int
	// MaxPayload bounds the total reassembled payload size the Decoder
	// will accept; it never grows the accumulation buffer past this.
	MaxPayload int
}

// NewCodec returns a Codec with a 2-byte id width and the given payload
// ceiling.
func NewCodec(maxPayload int) *Codec {
	return &Codec{IDWidth: 2, MaxPayload: maxPayload}
}

// Encode serializes pkt into an ordered sequence of wire chunks, each no
// larger than chunkSize bytes. Sync, Ack, and Nak always produce exactly
// one chunk; Data/NaData fragment across a head chunk plus zero or more
// Continued/NaContinued chunks, with done set only on the last.
func (c *Codec) Encode(pkt Packet, chunkSize int) ([][]byte, error) {
	if pkt.Type == TypeSync {
		head, _ := packHead(TypeSync, false, 0, 0)
		return [][]byte{{head}}, nil
	}

	idCode, err := idWidthCode(c.IDWidth)
	if err != nil {
		return nil, err
	}

	if pkt.Type == TypeAck || pkt.Type == TypeNak {
		return c.encodeSingle(pkt, idCode, chunkSize)
	}

	if !pkt.Type.Chains() {
		return nil, ErrNonChainingType
	}
	return c.encodeChained(pkt, idCode, chunkSize)
}

func (c *Codec) encodeSingle(pkt Packet, idCode byte, chunkSize int) ([][]byte, error) {
	header := headerBytes + c.IDWidth
	if chunkSize < header {
		return nil, ErrChunkTooSmall
	}
	length := c.IDWidth + len(pkt.Payload)
	if length > maxLen || header+len(pkt.Payload) > chunkSize {
		return nil, ErrPayloadTooLarge
	}

	head, lenLo := packHead(pkt.Type, false, idCode, length)
	chunk := make([]byte, header+len(pkt.Payload))
	chunk[0] = head
	chunk[1] = lenLo
	putID(chunk[2:2+c.IDWidth], pkt.ID, c.IDWidth)
	copy(chunk[header:], pkt.Payload)
	return [][]byte{chunk}, nil
}

func (c *Codec) encodeChained(pkt Packet, idCode byte, chunkSize int) ([][]byte, error) {
	headHeader := headerBytes + c.IDWidth
	contHeader := headerBytes
	if chunkSize < headHeader || chunkSize < contHeader+1 {
		return nil, ErrChunkTooSmall
	}

	payload := pkt.Payload
	headCap := chunkSize - headHeader
	if headCap > maxLen-c.IDWidth {
		headCap = maxLen - c.IDWidth
	}

	var chunks [][]byte

	firstLen := len(payload)
	more := firstLen > headCap
	if more {
		firstLen = headCap
	}
	head, lenLo := packHead(pkt.Type, more, idCode, c.IDWidth+firstLen)
	first := make([]byte, headHeader+firstLen)
	first[0] = head
	first[1] = lenLo
	putID(first[2:2+c.IDWidth], pkt.ID, c.IDWidth)
	copy(first[headHeader:], payload[:firstLen])
	chunks = append(chunks, first)
	payload = payload[firstLen:]

	contType, _ := pkt.Type.ContinuationOf()
	contCap := chunkSize - contHeader
	if contCap > maxLen {
		contCap = maxLen
	}

	for len(payload) > 0 {
		n := len(payload)
		last := n <= contCap
		if !last {
			n = contCap
		}
		h, lo := packHead(contType, !last, 0, n)
		chunk := make([]byte, contHeader+n)
		chunk[0] = h
		chunk[1] = lo
		copy(chunk[contHeader:], payload[:n])
		chunks = append(chunks, chunk)
		payload = payload[n:]
	}

	return chunks, nil
}

// decodeState holds in-progress reassembly for one peer.
type decodeState struct {
	active   bool
	headType Type
	id       uint32
	payload  []byte
}

// Decoder reassembles a stream of wire chunks from a single peer into
// complete Packets. It is not safe for concurrent use; each peer (each
// endpoint, or the firmware's single rx stream) owns one Decoder.
type Decoder struct {
	codec *Codec
	state decodeState
}

// NewDecoder returns a Decoder bound to codec's id width and payload
// ceiling.
func NewDecoder(codec *Codec) *Decoder {
	return &Decoder{codec: codec}
}

// Reset clears any in-progress reassembly. Called on Sync and on protocol
// faults (spec.md §7: resets, never grows, the affected buffer).
func (d *Decoder) Reset() {
	d.state = decodeState{}
}

// Feed consumes one wire chunk. It returns (nil, nil) while a multi-chunk
// packet is still assembling, (pkt, nil) when a packet completes, and a
// non-nil error (typically *DecodeError) on a framing violation. A Sync
// chunk always forcibly resets reassembly state and is returned
// immediately, even mid-packet.
func (d *Decoder) Feed(chunk []byte) (*Packet, error) {
	if len(chunk) == 0 {
		return nil, ErrMalformedChunk
	}

	typ, continued, idCode, lenHi := unpackHead(chunk[0])

	if typ == TypeSync {
		d.Reset()
		return &Packet{Type: TypeSync, Done: true}, nil
	}

	if len(chunk) < headerBytes {
		return nil, ErrMalformedChunk
	}
	length := int(lenHi)<<8 | int(chunk[1])

	switch typ {
	case TypeAck, TypeNak:
		return d.feedSingle(typ, idCode, length, chunk)
	case TypeData, TypeNaData:
		return d.feedHead(typ, continued, idCode, length, chunk)
	case TypeContinued, TypeNaContinued:
		return d.feedContinuation(typ, continued, idCode, length, chunk)
	default:
		return nil, newDecodeError(ErrUnexpectedHead, "unrecognized packet type")
	}
}

func (d *Decoder) feedSingle(typ Type, idCode byte, length int, chunk []byte) (*Packet, error) {
	if d.state.active {
		d.Reset()
		return nil, newDecodeError(ErrUnexpectedHead, typ.String()+" received mid-reassembly")
	}
	idWidth, err := idWidthBytesHead(idCode)
	if err != nil {
		return nil, err
	}
	if len(chunk) < headerBytes+idWidth || length < idWidth {
		return nil, ErrMalformedChunk
	}
	id := getID(chunk[headerBytes:headerBytes+idWidth], idWidth)
	payloadLen := length - idWidth
	payload := chunk[headerBytes+idWidth:]
	if len(payload) != payloadLen {
		return nil, ErrMalformedChunk
	}
	return &Packet{Type: typ, ID: id, Done: true, Payload: append([]byte(nil), payload...)}, nil
}

func (d *Decoder) feedHead(typ Type, continued bool, idCode byte, length int, chunk []byte) (*Packet, error) {
	if d.state.active {
		d.Reset()
		return nil, newDecodeError(ErrUnexpectedHead, typ.String()+" received mid-reassembly")
	}
	idWidth, err := idWidthBytesHead(idCode)
	if err != nil {
		return nil, err
	}
	if len(chunk) < headerBytes+idWidth || length < idWidth {
		return nil, ErrMalformedChunk
	}
	id := getID(chunk[headerBytes:headerBytes+idWidth], idWidth)
	payloadLen := length - idWidth
	payload := chunk[headerBytes+idWidth:]
	if len(payload) != payloadLen {
		return nil, ErrMalformedChunk
	}

	if d.codec.MaxPayload > 0 && payloadLen > d.codec.MaxPayload {
		return nil, newDecodeError(ErrLengthOverflow, "head chunk exceeds max payload")
	}

	done := !continued
	if done {
		return &Packet{Type: typ, ID: id, Done: true, Payload: append([]byte(nil), payload...)}, nil
	}

	d.state = decodeState{
		active:   true,
		headType: typ,
		id:       id,
		payload:  append([]byte(nil), payload...),
	}
	return nil, nil
}

func (d *Decoder) feedContinuation(typ Type, continued bool, idCode byte, length int, chunk []byte) (*Packet, error) {
	if !d.state.active {
		return nil, newDecodeError(ErrUnexpectedContinuation, "no packet in progress")
	}

	wantType, ok := d.state.headType.ContinuationOf()
	if !ok || typ != wantType {
		d.Reset()
		return nil, newDecodeError(ErrTypeMismatch, "continuation type does not match head")
	}

	// A wire-legal continuation chunk encodes id_width=0 (no id field).
	// A non-default but spec-permitted id width here carries redundant id
	// bytes that must agree with the head's id.
	idWidth := 0
	if idCode != 0 {
		w, err := idWidthBytesHead(idCode)
		if err != nil {
			d.Reset()
			return nil, err
		}
		idWidth = w
		if len(chunk) < headerBytes+idWidth {
			d.Reset()
			return nil, ErrMalformedChunk
		}
		gotID := getID(chunk[headerBytes:headerBytes+idWidth], idWidth)
		if gotID != d.state.id {
			d.Reset()
			return nil, newDecodeError(ErrIDMismatch, "continuation id does not match head id")
		}
	}

	payloadLen := length - idWidth
	payload := chunk[headerBytes+idWidth:]
	if payloadLen < 0 || len(payload) != payloadLen {
		d.Reset()
		return nil, ErrMalformedChunk
	}

	if d.codec.MaxPayload > 0 && len(d.state.payload)+len(payload) > d.codec.MaxPayload {
		d.Reset()
		return nil, newDecodeError(ErrLengthOverflow, "accumulated payload exceeds max payload")
	}

	d.state.payload = append(d.state.payload, payload...)

	if !continued {
		pkt := &Packet{Type: d.state.headType, ID: d.state.id, Done: true, Payload: d.state.payload}
		d.Reset()
		return pkt, nil
	}
	return nil, nil
}
