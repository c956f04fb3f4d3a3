package frame

// Checksum is the additive checksum over the first Size-1 bytes of b.
// b must hold at least Size-1 bytes.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b[:ChecksumOffset] {
		sum += c
	}
	return sum
}

// Seal writes the checksum of b into its last byte. Used to build frames
// for the simulator and tests.
func Seal(b []byte) {
	b[ChecksumOffset] = Checksum(b)
}

// ChecksumOK reports whether a complete frame carries a matching checksum.
func (f *Frame) ChecksumOK() bool {
	if !f.Complete() {
		return false
	}
	return Checksum(f.buf[:Size]) == f.buf[ChecksumOffset]
}
