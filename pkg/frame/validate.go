package frame

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrShortFrame = errors.New("short frame")
	ErrChecksum   = errors.New("checksum failure")
)

// Decode checks length and checksum and extracts the two published
// registers. The returned Reading is only meaningful when err is nil.
func Decode(f *Frame, off Offsets) (Reading, error) {
	if f.count != Size {
		return Reading{}, errors.Wrapf(ErrShortFrame, "datacount %d != %d", f.count, Size)
	}
	if !f.ChecksumOK() {
		return Reading{}, errors.Wrapf(ErrChecksum, "computed 0x%02x, frame carries 0x%02x",
			Checksum(f.buf[:Size]), f.buf[ChecksumOffset])
	}

	second := 3
	if f.Discriminator() == DiscriminatorImportExport {
		second = 2
	}
	return Reading{
		Import: BCDValue(f.Register(1, 1)) + off.Import,
		Export: BCDValue(f.Register(1, second)) - off.Export,
	}, nil
}

// Line is the text sent to the server for a published reading.
func (r Reading) Line() string {
	return fmt.Sprintf("meter 2 %.3f %.3f", r.Import, r.Export)
}
