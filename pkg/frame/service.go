package frame

import "encoding/binary"

// New returns a frame pre-filled with b. Bytes beyond Capacity are dropped.
func New(b []byte) *Frame {
	f := &Frame{}
	f.count = copy(f.buf[:], b)
	if f.count == Size {
		f.status = StatusComplete
	}
	return f
}

// Reset empties the frame for a new acquisition cycle.
func (f *Frame) Reset() {
	f.count = 0
	f.status = StatusEmpty
}

func (f *Frame) Len() int { return f.count }

func (f *Frame) Status() Status { return f.status }

func (f *Frame) SetStatus(s Status) { f.status = s }

// Free is the number of bytes the buffer can still take.
func (f *Frame) Free() int { return Capacity - f.count }

// Window returns the next n unfilled bytes of the buffer, clamped to
// the remaining capacity. Fill it and then call Advance.
func (f *Frame) Window(n int) []byte {
	if n > f.Free() {
		n = f.Free()
	}
	return f.buf[f.count : f.count+n]
}

// Advance marks n more bytes of the buffer as filled.
func (f *Frame) Advance(n int) {
	if n > f.Free() {
		n = f.Free()
	}
	f.count += n
}

// Bytes returns the filled part of the buffer. Callers must not modify it.
func (f *Frame) Bytes() []byte {
	return f.buf[:f.count]
}

// Complete reports whether the frame holds exactly Size bytes.
func (f *Frame) Complete() bool {
	return f.count == Size
}

// at returns byte i, or zero when it has not been filled yet.
func (f *Frame) at(i int) byte {
	if i < 0 || i >= f.count {
		return 0
	}
	return f.buf[i]
}

// field returns bytes [off, off+n) without exceeding what has been filled.
func (f *Frame) field(off, n int) []byte {
	if off >= f.count {
		return nil
	}
	end := off + n
	if end > f.count {
		end = f.count
	}
	return f.buf[off:end]
}

func (f *Frame) MarkerByte() byte { return f.at(MarkerOffset) }

// HasMarker reports whether the header is long enough and carries Marker.
func (f *Frame) HasMarker() bool {
	return f.count > MarkerOffset && f.buf[MarkerOffset] == Marker
}

func (f *Frame) Discriminator() byte { return f.at(DiscriminatorOffset) }

func (f *Frame) ChecksumByte() byte { return f.at(ChecksumOffset) }

// MeterDefinition returns the three meter-definition bytes.
func (f *Frame) MeterDefinition() []byte {
	return f.field(meterDefOffset, 3)
}

// Register returns the packed-decimal field for register reg (1..3) of
// the given tariff (1 or 2). Out-of-range arguments return nil.
func (f *Frame) Register(tariff, reg int) []byte {
	if reg < 1 || reg > 3 {
		return nil
	}
	var base int
	switch tariff {
	case 1:
		base = tariff1Offset
	case 2:
		base = tariff2Offset
	default:
		return nil
	}
	return f.field(base+(reg-1)*registerLen, registerLen)
}

func (f *Frame) Identity() string {
	return text(f.field(identityOffset, identityLen))
}

func (f *Frame) Identity2() string {
	return text(f.field(identity2Offset, identity2Len))
}

func (f *Frame) StatusText() string {
	return text(f.field(statusTextOffset, statusTextLen))
}

// Manufacturer is the 3-byte big-endian manufacturer code.
func (f *Frame) Manufacturer() uint32 {
	b := f.field(manufacturerOffset, 3)
	if len(b) < 3 {
		return 0
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// ConfigCode is the 2-byte big-endian configuration code.
func (f *Frame) ConfigCode() uint16 {
	b := f.field(configCodeOffset, 2)
	if len(b) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (f *Frame) PowerFactor() byte { return f.at(powerFactorOffset) }

func (f *Frame) StatusByte() byte { return f.at(statusByteOffset) }

func (f *Frame) ErrorByte() byte { return f.at(errorByteOffset) }

// HourCounter returns hour counter i (0 anticreep, 1 powerup, 2 rate 1,
// 3 rate 2) as a 3-byte packed-decimal field.
func (f *Frame) HourCounter(i int) []byte {
	if i < 0 || i > 3 {
		return nil
	}
	return f.field(hoursOffset+i*hoursLen, hoursLen)
}

// PowerFailCount is stored little-endian, unlike the other multi-byte fields.
func (f *Frame) PowerFailCount() uint16 {
	b := f.field(powerFailOffset, 2)
	if len(b) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (f *Frame) WatchdogCount() byte { return f.at(watchdogOffset) }

func (f *Frame) ReverseRunCount() byte { return f.at(reverseRunOffset) }

// text cuts b at the first NUL and replaces unprintable bytes.
func text(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c == 0 {
			break
		}
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		out = append(out, c)
	}
	return string(out)
}
