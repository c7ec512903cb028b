// Package testutil collects small test helpers shared across package
// boundaries, in the style of the teacher's own testutil package (skip
// helpers for hardware that may not be present, plus generic byte-slice
// assertions) adapted from Hailo device/HEF presence checks to hidraw
// presence checks.
package testutil

import (
	"os"
	"strconv"
	"testing"
)

// SkipIfNoHidraw returns the path to the first live /dev/hidrawN node it
// finds, or skips the test if none exists. Used by integration tests that
// need a real HID-class device attached to the host.
func SkipIfNoHidraw(t *testing.T) string {
	t.Helper()

	for i := 0; i < 16; i++ {
		path := "/dev/hidraw" + strconv.Itoa(i)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Skip("no /dev/hidraw* node available")
	return ""
}

// AssertBytesEqual fails the test if got and want differ, the way the
// teacher's testutil compares decoded inference buffers.
func AssertBytesEqual(t *testing.T, got, want []byte, msg string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s: length mismatch: got %d, want %d", msg, len(got), len(want))
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s: mismatch at index %d: got %d, want %d", msg, i, got[i], want[i])
			return
		}
	}
}
