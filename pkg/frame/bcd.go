package frame

import (
	"fmt"
	"math"
	"strings"
)

// bcdDigits turns one packed-decimal byte into its two-digit value.
func bcdDigits(b byte) uint64 {
	return uint64(b>>4)*10 + uint64(b&0x0f)
}

// DecodeBCD concatenates the digit pairs of b into an integer.
func DecodeBCD(b []byte) uint64 {
	var sum uint64
	for _, c := range b {
		sum = sum*100 + bcdDigits(c)
	}
	return sum
}

// BCDValue decodes b as a register with three implied decimal places.
func BCDValue(b []byte) float64 {
	return float64(DecodeBCD(b)) / 1000
}

// EncodeBCD packs v with three implied decimal places into n bytes.
// Digits that do not fit are dropped from the left, as a meter register
// rolls over.
func EncodeBCD(v float64, n int) []byte {
	out := make([]byte, n)
	digits := uint64(math.Round(math.Abs(v) * 1000))
	for i := n - 1; i >= 0; i-- {
		lo := digits % 10
		digits /= 10
		hi := digits % 10
		digits /= 10
		out[i] = byte(hi<<4 | lo)
	}
	return out
}

// registerString renders a 5-byte register as "dddddd.ddd" the way the
// meter display shows it. The nibbles are printed as-is so a corrupt
// field stays visible.
func registerString(b []byte) string {
	if len(b) < registerLen {
		return "?"
	}
	return fmt.Sprintf("%02x%02x%02x%01x.%01x%02x", b[0], b[1], b[2], b[3]>>4, b[3]&0x0f, b[4])
}

func hexString(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}
