package firmware

import (
	"context"
	"sync"

	"github.com/hidio/hidio-core/pkg/command"
)

// The firmware side has exactly one transport and no heap, so spec.md §9
// models it as an explicitly-initialized module-global rather than an
// ambient runtime: Init must run before any other package-level call, and
// re-initializing without an intervening Close is refused rather than
// silently replacing the live engine (the original Rust source's
// `static mut INTF: Option<...>` has no such guard; this package adds
// one).
var (
	globalMu sync.Mutex
	global   *Engine
)

// Init constructs the package-level Engine singleton. It is the Go
// analogue of the C-ABI's initialize-with-a-device-identity-struct entry
// point.
func Init(cfg Config, identity Identity, callbacks Callbacks) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		return ErrAlreadyInitialized
	}
	e, err := New(cfg, identity, callbacks)
	if err != nil {
		return err
	}
	global = e
	return nil
}

// Close tears down the singleton, after which every other package-level
// call returns StatusErrorNotInitialized until the next Init.
func Close() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
}

func withEngine(f func(*Engine) error) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return NewError(StatusErrorNotInitialized, "firmware.Init has not been called")
	}
	return f(global)
}

// RxBytes pushes one transport chunk into the singleton engine's rx queue.
func RxBytes(chunk []byte) error {
	return withEngine(func(e *Engine) error { return e.RxBytes(chunk) })
}

// TxBytes pulls the next pending outbound chunk from the singleton
// engine, returning a StatusErrorNotInitialized-shaped error before Init
// and (nil, false, nil) when the tx queue is simply empty.
func TxBytes() ([]byte, bool, error) {
	var chunk []byte
	var ok bool
	err := withEngine(func(e *Engine) error {
		chunk, ok = e.TxBytes()
		return nil
	})
	return chunk, ok, err
}

// Process steps the singleton engine's dispatcher, servicing up to count
// completed packets (0 = drain to empty).
func Process(ctx context.Context, count int) (int, error) {
	var n int
	err := withEngine(func(e *Engine) error {
		var procErr error
		n, procErr = e.Process(ctx, count)
		return procErr
	})
	return n, err
}

// QueryInfo triggers an outbound Info query for property on the singleton
// engine.
func QueryInfo(property command.InfoProperty) error {
	return withEngine(func(e *Engine) error { return e.QueryInfo(property) })
}

// CachedHostInfo fetches the singleton engine's cached HostInfo record.
func CachedHostInfo() (HostInfo, error) {
	var info HostInfo
	err := withEngine(func(e *Engine) error {
		info = e.HostInfo()
		return nil
	})
	return info, err
}

// SendUnicodeText asks the host to type s via the singleton engine.
func SendUnicodeText(s string) error {
	return withEngine(func(e *Engine) error { return e.SendUnicodeText(s) })
}

// SendUnicodeState asks the host to hold/release s's symbols via the
// singleton engine.
func SendUnicodeState(s string) error {
	return withEngine(func(e *Engine) error { return e.SendUnicodeState(s) })
}

// SendTerminalOut reports a line of terminal output via the singleton
// engine.
func SendTerminalOut(s string) error {
	return withEngine(func(e *Engine) error { return e.SendTerminalOut(s) })
}

// LastError retrieves the singleton engine's most recent diagnostic
// string.
func LastError() string {
	var msg string
	_ = withEngine(func(e *Engine) error {
		msg = e.LastError()
		return nil
	})
	return msg
}
