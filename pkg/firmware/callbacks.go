package firmware

import "context"

// Callbacks holds the foreign, device-specific handlers an Engine
// delegates to, matching spec.md §6's "Foreign callback surface": flash
// mode, sleep mode, the terminal console, and manufacturing self-tests.
// A nil field leaves its command Nak'd with ErrCallbackNotConfigured.
// Implementations must not retain req slices or strings past return.
type Callbacks struct {
	// FlashMode enters the device's bootloader. On success it returns
	// the scancode that triggered entry (echoed in the command's Ack);
	// most real firmware never returns at all (the device resets).
	FlashMode func(ctx context.Context) (scancode uint8, err error)

	// SleepMode requests the device enter a low-power sleep state.
	SleepMode func(ctx context.Context) error

	// Terminal feeds one line (or fragment) of input to the device's
	// internal console. cmd never carries a trailing NUL; before calling
	// this, Engine runs nulBudget (terminal.go), which Naks a command
	// with no room left for a NUL within Config.MessageLen (see
	// DESIGN.md's resolution of spec.md §9's Open Question on NUL
	// handling).
	Terminal func(ctx context.Context, cmd string) error

	// ManufacturingTest runs self-test cmd with argument arg, writing
	// its result into buf (sized Config.SerializationLen) and returning
	// how many bytes it used.
	ManufacturingTest func(ctx context.Context, cmd, arg uint16, buf []byte) (n int, err error)
}

// ErrCallbackNotConfigured is returned (and Nak'd) when a command arrives
// for a callback the caller left nil.
var ErrCallbackNotConfigured = NewError(StatusErrorDetailed, "callback not configured")
