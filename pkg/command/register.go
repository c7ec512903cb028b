package command

import (
	"context"
	"strconv"
)

// RegisterSupportedIDsHandler registers the SupportedIDs handler, which
// always answers with the dispatcher's own registry at call time (so it
// reflects any Register/Unregister calls made after this one).
func RegisterSupportedIDsHandler(d *Dispatcher) {
	d.RegisterHandler(SupportedIDs, func(ctx context.Context, req []byte) ([]byte, error) {
		return PackSupportedIDsAck(d.Supported()), nil
	})
}

// InfoFunc answers a single Info property lookup with its string
// representation (the version properties answer with a base-10 number
// string, e.g. answerInfo's strconv.Itoa(int(major))).
type InfoFunc func(ctx context.Context, property InfoProperty) (string, error)

// isVersionProperty reports whether property carries a number rather than
// a free-form string, per spec.md §4.3's Info ack (property, os_type,
// number, string) tuple.
func isVersionProperty(property InfoProperty) bool {
	switch property {
	case InfoPropHIDIOMajor, InfoPropHIDIOMinor, InfoPropHIDIOPatch:
		return true
	default:
		return false
	}
}

// RegisterInfoHandler adapts fn to the raw CmdHandler contract for Info,
// filling the ack's Number field for the version properties and its OS
// field for OsType, leaving both zero (Number=0, OS=OSTypeUnknown) for
// every other property.
func RegisterInfoHandler(d *Dispatcher, fn InfoFunc) {
	d.RegisterHandler(Info, func(ctx context.Context, req []byte) ([]byte, error) {
		in, err := ParseInfoRequest(req)
		if err != nil {
			return nil, NewErrorWithCause(ErrKindSerializationFailed, Info, "decoding request", err)
		}
		value, err := fn(ctx, in.Property)
		if err != nil {
			return nil, err
		}

		ack := InfoAck{Property: in.Property, Value: value}
		switch {
		case isVersionProperty(in.Property):
			if n, convErr := strconv.ParseUint(value, 10, 32); convErr == nil {
				ack.Number = uint32(n)
			}
		case in.Property == InfoPropOSType:
			ack.OS = ParseOSType(value)
		}
		return PackInfoAck(ack), nil
	})
}

// TestFunc answers a Test loopback request; the default implementation a
// caller should register is an identity echo.
type TestFunc func(ctx context.Context, payload []byte) ([]byte, error)

// RegisterTestHandler adapts fn to the raw CmdHandler contract for Test.
func RegisterTestHandler(d *Dispatcher, fn TestFunc) {
	d.RegisterHandler(Test, func(ctx context.Context, req []byte) ([]byte, error) {
		return fn(ctx, ParseTestRequest(req).Payload)
	})
}

// FlashModeFunc enters the firmware's flash/bootloader mode. It typically
// never returns on firmware (the device resets); on a host stub it should
// return ErrKindNotSupported.
type FlashModeFunc func(ctx context.Context) error

// RegisterFlashModeHandler adapts fn to the raw CmdHandler contract for
// FlashMode.
func RegisterFlashModeHandler(d *Dispatcher, fn FlashModeFunc) {
	d.RegisterHandler(FlashMode, func(ctx context.Context, req []byte) ([]byte, error) {
		return nil, fn(ctx)
	})
}

// SleepModeFunc requests the device enter sleep mode.
type SleepModeFunc func(ctx context.Context) error

// RegisterSleepModeHandler adapts fn to the raw CmdHandler contract for
// SleepMode.
func RegisterSleepModeHandler(d *Dispatcher, fn SleepModeFunc) {
	d.RegisterHandler(SleepMode, func(ctx context.Context, req []byte) ([]byte, error) {
		return nil, fn(ctx)
	})
}

// UnicodeTextFunc types a Unicode string. UnicodeText is always sent as
// NaData, so the dispatcher never uses this handler's error for a Nak; it
// exists only to report failure to the caller's logs.
type UnicodeTextFunc func(ctx context.Context, text string) error

// RegisterUnicodeTextHandler adapts fn to the raw CmdHandler contract for
// UnicodeText.
func RegisterUnicodeTextHandler(d *Dispatcher, fn UnicodeTextFunc) {
	d.RegisterHandler(UnicodeText, func(ctx context.Context, req []byte) ([]byte, error) {
		return nil, fn(ctx, ParseUnicodeTextRequest(req).Text)
	})
}

// UnicodeStateFunc holds (or releases, for an empty string) a set of
// Unicode symbols as if they were physically held keys.
type UnicodeStateFunc func(ctx context.Context, text string) error

// RegisterUnicodeStateHandler adapts fn to the raw CmdHandler contract for
// UnicodeState.
func RegisterUnicodeStateHandler(d *Dispatcher, fn UnicodeStateFunc) {
	d.RegisterHandler(UnicodeState, func(ctx context.Context, req []byte) ([]byte, error) {
		return nil, fn(ctx, ParseUnicodeStateRequest(req).Text)
	})
}

// TerminalCmdFunc feeds a line (or fragment) of terminal input to the
// peer's shell/console.
type TerminalCmdFunc func(ctx context.Context, text string) error

// RegisterTerminalCmdHandler adapts fn to the raw CmdHandler contract for
// TerminalCmd. The same handler serves both the Data (acked) and NaData
// (fire-and-forget) variants; Dispatch decides whether to emit a
// response.
func RegisterTerminalCmdHandler(d *Dispatcher, fn TerminalCmdFunc) {
	d.RegisterHandler(TerminalCmd, func(ctx context.Context, req []byte) ([]byte, error) {
		return nil, fn(ctx, ParseTerminalCmdRequest(req).Text)
	})
}

// TerminalOutFunc receives a line of firmware-originated terminal output.
type TerminalOutFunc func(ctx context.Context, text string) error

// RegisterTerminalOutHandler adapts fn to the raw CmdHandler contract for
// TerminalOut.
func RegisterTerminalOutHandler(d *Dispatcher, fn TerminalOutFunc) {
	d.RegisterHandler(TerminalOut, func(ctx context.Context, req []byte) ([]byte, error) {
		return nil, fn(ctx, ParseTerminalOutRequest(req).Text)
	})
}

// ManufacturingTestFunc runs a manufacturing self-test and returns its
// result data.
type ManufacturingTestFunc func(ctx context.Context, cmd, arg uint16) ([]byte, error)

// RegisterManufacturingTestHandler adapts fn to the raw CmdHandler
// contract for ManufacturingTest.
func RegisterManufacturingTestHandler(d *Dispatcher, fn ManufacturingTestFunc) {
	d.RegisterHandler(ManufacturingTest, func(ctx context.Context, req []byte) ([]byte, error) {
		in, err := ParseManufacturingTestRequest(req)
		if err != nil {
			return nil, NewErrorWithCause(ErrKindSerializationFailed, ManufacturingTest, "decoding request", err)
		}
		data, err := fn(ctx, in.Command, in.Argument)
		if err != nil {
			return nil, err
		}
		return PackManufacturingTestAck(ManufacturingTestAck{Data: data}), nil
	})
}
