//go:build unit

package device

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanFindsNodesWithBothSysfsAndDevEntries(t *testing.T) {
	tmp := t.TempDir()
	sysfsDir := filepath.Join(tmp, "sys", "class", "hidraw")
	devDir := filepath.Join(tmp, "dev")
	if err := os.MkdirAll(sysfsDir, 0o755); err != nil {
		t.Fatalf("mkdir sysfs: %v", err)
	}
	if err := os.MkdirAll(devDir, 0o755); err != nil {
		t.Fatalf("mkdir dev: %v", err)
	}

	for _, name := range []string{"hidraw1", "hidraw0"} {
		if err := os.Mkdir(filepath.Join(sysfsDir, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}
	// Only hidraw0 has a live /dev node; hidraw1 is sysfs-only (e.g. a
	// node that was just unplugged) and must not be reported.
	f, err := os.Create(filepath.Join(devDir, "hidraw0"))
	if err != nil {
		t.Fatalf("create dev node: %v", err)
	}
	f.Close()

	s := ScannerAt(sysfsDir, devDir)
	found, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(found) != 1 || found[0].Name != "hidraw0" {
		t.Fatalf("got %+v, want exactly [{hidraw0}]", found)
	}
	if found[0].Path != filepath.Join(devDir, "hidraw0") {
		t.Errorf("Path = %q, want %q", found[0].Path, filepath.Join(devDir, "hidraw0"))
	}
}

func TestScanEmptyWhenSysfsMissing(t *testing.T) {
	tmp := t.TempDir()
	s := ScannerAt(filepath.Join(tmp, "no-such-class"), filepath.Join(tmp, "dev"))
	found, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected no devices, got %+v", found)
	}
}
