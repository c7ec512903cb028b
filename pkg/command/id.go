// Package command implements the HID-IO command registry: the symmetric
// ID-keyed handler table used identically by a firmware Engine and a host
// Controller, plus the typed request/ack/nak payloads for the commands
// both peers are expected to answer.
package command

import "fmt"

// ID identifies a command, matching the 16-bit id field carried on the
// wire by pkg/packet.
type ID uint16

// Command IDs implemented on both firmware and host peers.
const (
	SupportedIDs      ID = 0x0000
	Info              ID = 0x0001
	Test              ID = 0x0002
	FlashMode         ID = 0x0016
	UnicodeText       ID = 0x0017
	UnicodeState      ID = 0x0018
	SleepMode         ID = 0x001A
	TerminalCmd       ID = 0x0031
	TerminalOut       ID = 0x0034
	ManufacturingTest ID = 0x0050
)

var idNames = map[ID]string{
	SupportedIDs:      "SupportedIDs",
	Info:              "Info",
	Test:              "Test",
	FlashMode:         "FlashMode",
	UnicodeText:       "UnicodeText",
	UnicodeState:      "UnicodeState",
	SleepMode:         "SleepMode",
	TerminalCmd:       "TerminalCmd",
	TerminalOut:       "TerminalOut",
	ManufacturingTest: "ManufacturingTest",
}

// String returns the command's mnemonic name, or a hex fallback for an
// unrecognized or vendor-defined id.
func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return fmt.Sprintf("ID(0x%04X)", uint16(id))
}
