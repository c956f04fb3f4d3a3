// Package frame holds the fixed 110-byte Elster telemetry frame and
// everything needed to check and decode it.
package frame

const (
	// Size is the length of a complete frame on the wire.
	Size = 110
	// Capacity is the size of the acquisition buffer. Larger than Size so an
	// over-long request is caught by the overflow guard instead of a panic.
	Capacity = 128
	// HeaderSize is the number of bytes read before the marker is checked.
	HeaderSize = 4
	// Marker is the fixed value at MarkerOffset that starts every frame.
	Marker byte = 0x68

	// DiscriminatorImportExport selects the import/export register pair.
	DiscriminatorImportExport byte = 2
)

// Offsets into the frame, see the wire table in SPEC_FULL.md section 6.
const (
	MarkerOffset        = 2
	identityOffset      = 4
	identityLen         = 12
	identity2Offset     = 16
	identity2Len        = 9
	manufacturerOffset  = 25
	configCodeOffset    = 28
	statusTextOffset    = 30
	statusTextLen       = 16
	meterDefOffset      = 46
	DiscriminatorOffset = 47
	tariff1Offset       = 49
	tariff2Offset       = 64
	registerLen         = 5
	powerFactorOffset   = 79
	statusByteOffset    = 80
	errorByteOffset     = 81
	hoursOffset         = 82
	hoursLen            = 3
	powerFailOffset     = 94
	watchdogOffset      = 96
	reverseRunOffset    = 97
	ChecksumOffset      = 109
)

// Status records how the last acquisition into a Frame ended.
type Status uint8

const (
	StatusEmpty Status = iota
	StatusComplete
	StatusShort
	StatusNoMarker
	StatusOverflow
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusComplete:
		return "complete"
	case StatusShort:
		return "short"
	case StatusNoMarker:
		return "no-marker"
	case StatusOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Frame is a bounds-checked acquisition buffer. Only the port reader fills
// it; everything else reads it through the accessors below.
type Frame struct {
	buf    [Capacity]byte
	count  int
	status Status
}

// Reading is the pair of register values published to the server.
type Reading struct {
	Import float64
	Export float64
}

// Offsets are the configured corrections applied to a decoded Reading.
type Offsets struct {
	Import float64
	Export float64
}
