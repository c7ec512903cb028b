//go:build linux

package transport

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// hidrawMagic is the 'H' ioctl type used by every hidraw ioctl.
const hidrawMagic = 'H'

// IOCTL size/direction encoding, matching the teacher's pkg/driver.Ioc
// helpers but reproduced locally so this package has no dependency on the
// driver control-protocol package.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead = 2
)

func ior(iocType, nr, size int) uint32 {
	return uint32((iocRead << iocDirShift) | (iocType << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift))
}

var (
	// HIDIOCGRDESCSIZE: HIDIOCGRDESCSIZE _IOR('H', 0x01, int)
	ioctlGRDescSize = ior(hidrawMagic, 0x01, 4)
	// HIDIOCGRAWINFO: _IOR('H', 0x03, struct hidraw_devinfo)
	ioctlGRawInfo = ior(hidrawMagic, 0x03, 8)
)

// rawInfo mirrors struct hidraw_devinfo.
type rawInfo struct {
	BusType uint32
	Vendor  int16
	Product int16
}

// DeviceInfo reports the bus type, vendor, and product ids a hidraw node
// was enumerated with.
type DeviceInfo struct {
	BusType uint32
	Vendor  uint16
	Product uint16
}

// HidrawTransport is a Linux /dev/hidraw* HidTransport.
type HidrawTransport struct {
	fd     int
	path   string
	maxLen uint32
}

// OpenHidraw opens the hidraw device at path. maxPacketLen should match
// the device's report size (HIDIOCGRDESCSIZE's descriptor implies it, but
// callers typically already know it from USB HID report descriptors).
func OpenHidraw(path string, maxPacketLen uint32) (*HidrawTransport, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: opening %s: %w", path, err)
	}
	return &HidrawTransport{fd: fd, path: path, maxLen: maxPacketLen}, nil
}

// Read implements io.Reader.
func (h *HidrawTransport) Read(buf []byte) (int, error) {
	n, err := unix.Read(h.fd, buf)
	if err != nil {
		return n, fmt.Errorf("transport: reading %s: %w", h.path, err)
	}
	return n, nil
}

// Write implements io.Writer.
func (h *HidrawTransport) Write(buf []byte) (int, error) {
	n, err := unix.Write(h.fd, buf)
	if err != nil {
		return n, fmt.Errorf("transport: writing %s: %w", h.path, err)
	}
	return n, nil
}

// Close implements io.Closer.
func (h *HidrawTransport) Close() error {
	if h.fd < 0 {
		return nil
	}
	err := unix.Close(h.fd)
	h.fd = -1
	return err
}

// MaxPacketLen returns the configured maximum report length.
func (h *HidrawTransport) MaxPacketLen() uint32 { return h.maxLen }

// SetNonblock toggles O_NONBLOCK on the underlying file descriptor, for
// callers that want to poll rather than block in Read.
func (h *HidrawTransport) SetNonblock(nonblocking bool) error {
	return unix.SetNonblock(h.fd, nonblocking)
}

// ReportDescriptorSize queries the device's report descriptor size via
// HIDIOCGRDESCSIZE.
func (h *HidrawTransport) ReportDescriptorSize() (int, error) {
	var size int32
	if err := ioctl(h.fd, ioctlGRDescSize, unsafe.Pointer(&size)); err != nil {
		return 0, fmt.Errorf("transport: HIDIOCGRDESCSIZE on %s: %w", h.path, err)
	}
	return int(size), nil
}

// Info queries the device's bus type, vendor, and product ids via
// HIDIOCGRAWINFO.
func (h *HidrawTransport) Info() (DeviceInfo, error) {
	var info rawInfo
	if err := ioctl(h.fd, ioctlGRawInfo, unsafe.Pointer(&info)); err != nil {
		return DeviceInfo{}, fmt.Errorf("transport: HIDIOCGRAWINFO on %s: %w", h.path, err)
	}
	return DeviceInfo{
		BusType: info.BusType,
		Vendor:  uint16(info.Vendor),
		Product: uint16(info.Product),
	}, nil
}

func ioctl(fd int, cmd uint32, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(cmd), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
