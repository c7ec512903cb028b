package firmware

// HostInfo is the host-side property cache the Engine populates from acks
// to its own outbound Info queries (spec.md §3 "Host-info record": "major/
// minor/patch version, OS type, OS version string, host-software name").
// Fields are only as fresh as the last successful QueryInfo/Process pair;
// an unqueried field keeps its zero value.
type HostInfo struct {
	MajorVersion     uint16
	MinorVersion     uint16
	PatchVersion     uint16
	OSType           string
	OSVersion        string
	HostSoftwareName string
}

// Identity describes the device-side properties the Engine answers when
// the peer sends it an Info request (spec.md §3's "Info" properties that
// belong to the device rather than the host).
type Identity struct {
	Name            string
	Serial          string
	MCU             string
	FirmwareName    string
	FirmwareVersion string
	Vendor          string
	// HIDIOMajor/Minor/Patch report the protocol version this Engine
	// speaks, not the firmware's own version.
	HIDIOMajor uint8
	HIDIOMinor uint8
	HIDIOPatch uint8
}
