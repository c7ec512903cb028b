// Package device implements the minimal sysfs/devfs scanner the host
// daemon uses to discover hidraw nodes, generalized from the teacher's
// Hailo PCIe scanner (sysfs-directory-then-devfs-fallback) onto Linux's
// hidraw class. Device discovery/hot-plug watching beyond this is out of
// scope (spec.md §1); this exists only so cmd/hidiod has something to
// enumerate before handing a path to pkg/transport.
package device

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// sysfsHidrawClass is where Linux exposes one directory per hidraw node.
const sysfsHidrawClass = "/sys/class/hidraw"

// devPath is where the corresponding device nodes live.
const devPath = "/dev"

// Info describes one discovered hidraw node.
type Info struct {
	// Path is the /dev/hidrawN node to open.
	Path string
	// Name is the sysfs directory name (e.g. "hidraw0").
	Name string
}

// Scanner discovers hidraw device nodes. NewScanner returns one for the
// standard Linux paths; tests construct one with ScannerAt to point at a
// temporary directory tree instead. The zero value has empty paths and
// finds no devices.
type Scanner struct {
	sysfsPath string
	devPath   string
}

// NewScanner returns a Scanner for the standard Linux hidraw paths.
func NewScanner() *Scanner {
	return &Scanner{sysfsPath: sysfsHidrawClass, devPath: devPath}
}

// ScannerAt returns a Scanner rooted at the given sysfs class directory
// and /dev directory, for tests.
func ScannerAt(sysfsPath, devPath string) *Scanner {
	return &Scanner{sysfsPath: sysfsPath, devPath: devPath}
}

// Scan lists every hidraw node with both a sysfs entry and a live /dev
// node, sorted by name. A missing sysfs directory (no hidraw support on
// this host) is not an error: it simply yields no devices.
func (s *Scanner) Scan() ([]Info, error) {
	entries, err := os.ReadDir(s.sysfsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("device: reading %s: %w", s.sysfsPath, err)
	}

	var found []Info
	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(s.devPath, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		found = append(found, Info{Path: path, Name: name})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

// Scan scans the standard Linux hidraw paths using a default Scanner.
func Scan() ([]Info, error) {
	return NewScanner().Scan()
}
