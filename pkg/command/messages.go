package command

import (
	"encoding/binary"
	"fmt"
)

// PackSupportedIDsAck packs the SupportedIDs ack payload: a 16-bit count
// followed by each id, little-endian, matching the wire id width pkg/packet
// uses for head chunks.
func PackSupportedIDsAck(ids []ID) []byte {
	buf := make([]byte, 2+2*len(ids))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(ids)))
	for i, id := range ids {
		off := 2 + 2*i
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(id))
	}
	return buf
}

// ParseSupportedIDsAck parses a SupportedIDs ack payload.
func ParseSupportedIDsAck(data []byte) ([]ID, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("command: SupportedIDs ack too short: %d bytes", len(data))
	}
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	if len(data) < 2+2*count {
		return nil, fmt.Errorf("command: SupportedIDs ack truncated: want %d ids, have %d bytes", count, len(data)-2)
	}
	ids := make([]ID, count)
	for i := 0; i < count; i++ {
		off := 2 + 2*i
		ids[i] = ID(binary.LittleEndian.Uint16(data[off : off+2]))
	}
	return ids, nil
}

// InfoProperty selects which host/device property an Info request asks
// for, matching HidIoCommandId::Info's sub-command byte. Property values
// follow the original enum's ordering (MCU=5, FirmwareName=6,
// FirmwareVersion=7, DeviceVendor=8) rather than inventing new ones.
type InfoProperty uint8

// Info properties supported by both peers.
const (
	InfoPropHIDIOMajor InfoProperty = iota
	InfoPropHIDIOMinor
	InfoPropHIDIOPatch
	InfoPropDeviceName
	InfoPropDeviceSerial
	InfoPropDeviceMCU
	InfoPropFirmwareName
	InfoPropFirmwareVersion
	InfoPropDeviceVendor
	InfoPropOSType
	InfoPropOSVersion
	InfoPropHostSoftwareName
)

// OSType tags the operating system family carried in an Info ack's os
// field, matching the original's OSType enum (HidioHostInfo.os).
type OSType uint8

// OS types recognized on the wire; OSTypeUnknown is the default for any
// property whose answer doesn't concern the peer's OS family.
const (
	OSTypeUnknown OSType = iota
	OSTypeWindows
	OSTypeLinux
	OSTypeMacOS
	OSTypeAndroid
	OSTypeIOS
)

// ParseOSType maps a runtime.GOOS-style string to its wire OSType tag,
// defaulting to OSTypeUnknown for anything it doesn't recognize.
func ParseOSType(goos string) OSType {
	switch goos {
	case "windows":
		return OSTypeWindows
	case "linux":
		return OSTypeLinux
	case "android":
		return OSTypeAndroid
	case "darwin":
		return OSTypeMacOS
	case "ios":
		return OSTypeIOS
	default:
		return OSTypeUnknown
	}
}

// InfoRequest asks the peer for a single property.
type InfoRequest struct {
	Property InfoProperty
}

// PackInfoRequest packs an Info request payload (one byte: the property).
func PackInfoRequest(req InfoRequest) []byte {
	return []byte{byte(req.Property)}
}

// ParseInfoRequest parses an Info request payload.
func ParseInfoRequest(data []byte) (InfoRequest, error) {
	if len(data) < 1 {
		return InfoRequest{}, fmt.Errorf("command: Info request too short")
	}
	return InfoRequest{Property: InfoProperty(data[0])}, nil
}

// InfoAck carries the requested property's full (property, os_type,
// number, string) tuple, matching h0001::Ack's property/os/number/string
// fields. Number is load-bearing for the MajorVersion/MinorVersion/
// PatchVersion properties; OS is only meaningful for the OsType property;
// Value holds every string-shaped property (name, serial, version text).
type InfoAck struct {
	Property InfoProperty
	OS       OSType
	Number   uint32
	Value    string
}

// infoAckHeaderLen is the property + os + number fields' fixed width;
// Value follows with no length prefix (the packet payload length is
// authoritative, per the wire codec).
const infoAckHeaderLen = 6

// PackInfoAck packs an Info ack payload.
func PackInfoAck(ack InfoAck) []byte {
	buf := make([]byte, infoAckHeaderLen+len(ack.Value))
	buf[0] = byte(ack.Property)
	buf[1] = byte(ack.OS)
	binary.LittleEndian.PutUint32(buf[2:6], ack.Number)
	copy(buf[infoAckHeaderLen:], ack.Value)
	return buf
}

// ParseInfoAck parses an Info ack payload.
func ParseInfoAck(data []byte) (InfoAck, error) {
	if len(data) < infoAckHeaderLen {
		return InfoAck{}, fmt.Errorf("command: Info ack too short")
	}
	return InfoAck{
		Property: InfoProperty(data[0]),
		OS:       OSType(data[1]),
		Number:   binary.LittleEndian.Uint32(data[2:6]),
		Value:    string(data[infoAckHeaderLen:]),
	}, nil
}

// TestRequest is an opaque loopback payload for the Test command; a
// correct peer acks with the identical bytes it received.
type TestRequest struct {
	Payload []byte
}

// PackTestRequest returns req's payload unchanged (Test carries no framing
// of its own beyond the packet header).
func PackTestRequest(req TestRequest) []byte {
	return append([]byte(nil), req.Payload...)
}

// ParseTestRequest wraps data as a TestRequest.
func ParseTestRequest(data []byte) TestRequest {
	return TestRequest{Payload: append([]byte(nil), data...)}
}

// UnicodeTextRequest asks the firmware to type a Unicode string. It is
// always sent as a no-ack (NaData) command: the host does not wait for a
// response before continuing, matching h0017_unicodetext_cmd.
type UnicodeTextRequest struct {
	Text string
}

// PackUnicodeTextRequest packs a UnicodeText request payload.
func PackUnicodeTextRequest(req UnicodeTextRequest) []byte {
	return []byte(req.Text)
}

// ParseUnicodeTextRequest parses a UnicodeText request payload.
func ParseUnicodeTextRequest(data []byte) UnicodeTextRequest {
	return UnicodeTextRequest{Text: string(data)}
}

// UnicodeStateRequest asks the firmware to hold (or release, for an empty
// string) a set of Unicode symbols as if they were physically held keys.
// Also a no-ack command, matching h0018_unicodestate_cmd.
type UnicodeStateRequest struct {
	Text string
}

// PackUnicodeStateRequest packs a UnicodeState request payload.
func PackUnicodeStateRequest(req UnicodeStateRequest) []byte {
	return []byte(req.Text)
}

// ParseUnicodeStateRequest parses a UnicodeState request payload.
func ParseUnicodeStateRequest(data []byte) UnicodeStateRequest {
	return UnicodeStateRequest{Text: string(data)}
}

// TerminalCmdRequest carries a line (or fragment) of terminal input. The
// original handles a Data variant (expects an ack/nak) and a NaData
// variant (fire-and-forget) for the same command id; Dispatch tells them
// apart by the incoming packet's Type, not by anything in this payload.
type TerminalCmdRequest struct {
	Text string
}

// PackTerminalCmdRequest packs a TerminalCmd request payload.
func PackTerminalCmdRequest(req TerminalCmdRequest) []byte {
	return []byte(req.Text)
}

// ParseTerminalCmdRequest parses a TerminalCmd request payload.
func ParseTerminalCmdRequest(data []byte) TerminalCmdRequest {
	return TerminalCmdRequest{Text: string(data)}
}

// TerminalOutRequest carries a line of firmware-originated terminal
// output. Always sent as NaData (h0034_terminalout_cmd never expects an
// ack from the host).
type TerminalOutRequest struct {
	Text string
}

// PackTerminalOutRequest packs a TerminalOut request payload.
func PackTerminalOutRequest(req TerminalOutRequest) []byte {
	return []byte(req.Text)
}

// ParseTerminalOutRequest parses a TerminalOut request payload.
func ParseTerminalOutRequest(data []byte) TerminalOutRequest {
	return TerminalOutRequest{Text: string(data)}
}

// ManufacturingTestRequest selects a manufacturing self-test and an
// optional argument, matching h0050_manufacturing_cmd's command/argument
// pair.
type ManufacturingTestRequest struct {
	Command  uint16
	Argument uint16
}

// PackManufacturingTestRequest packs a ManufacturingTest request payload.
func PackManufacturingTestRequest(req ManufacturingTestRequest) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], req.Command)
	binary.LittleEndian.PutUint16(buf[2:4], req.Argument)
	return buf
}

// ParseManufacturingTestRequest parses a ManufacturingTest request payload.
func ParseManufacturingTestRequest(data []byte) (ManufacturingTestRequest, error) {
	if len(data) < 4 {
		return ManufacturingTestRequest{}, fmt.Errorf("command: ManufacturingTest request too short")
	}
	return ManufacturingTestRequest{
		Command:  binary.LittleEndian.Uint16(data[0:2]),
		Argument: binary.LittleEndian.Uint16(data[2:4]),
	}, nil
}

// ManufacturingTestAck carries the self-test's result data, whose layout
// is test-specific; callers that recognize Command interpret Data
// themselves.
type ManufacturingTestAck struct {
	Data []byte
}

// PackManufacturingTestAck packs a ManufacturingTest ack payload.
func PackManufacturingTestAck(ack ManufacturingTestAck) []byte {
	return append([]byte(nil), ack.Data...)
}

// ParseManufacturingTestAck parses a ManufacturingTest ack payload.
func ParseManufacturingTestAck(data []byte) ManufacturingTestAck {
	return ManufacturingTestAck{Data: append([]byte(nil), data...)}
}
