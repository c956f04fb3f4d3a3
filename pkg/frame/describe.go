package frame

import (
	"fmt"
	"strings"
)

// Describe renders the frame as three operator lines: identity and
// configuration, the six tariff registers, and status with hour counters.
// It works on any frame, validated or not; check ChecksumOK separately.
func Describe(f *Frame) []string {
	def := f.MeterDefinition()
	config := fmt.Sprintf("config %s %s MFG:%d Cfg:%d S: %s T: %s",
		f.Identity(), f.Identity2(), f.Manufacturer(), f.ConfigCode(), f.StatusText(), hexString(def))

	var regs strings.Builder
	regs.WriteString("registers")
	for tariff := 1; tariff <= 2; tariff++ {
		fmt.Fprintf(&regs, " Rate %d", tariff)
		for reg := 1; reg <= 3; reg++ {
			regs.WriteString(" ")
			regs.WriteString(registerString(f.Register(tariff, reg)))
		}
	}

	status := fmt.Sprintf("status PF: %d St: 0x%02x Err: 0x%02x Hours: Anticreep %s Powerup %s R1 %s R2 %s "+
		"Counts: Powerfail %d Watchdog %d Reverse %d",
		f.PowerFactor(), f.StatusByte(), f.ErrorByte(),
		hexString(f.HourCounter(0)), hexString(f.HourCounter(1)),
		hexString(f.HourCounter(2)), hexString(f.HourCounter(3)),
		f.PowerFailCount(), f.WatchdogCount(), f.ReverseRunCount())

	return []string{config, regs.String(), status}
}

// Dump is a raw hex listing of the filled bytes, used in single-shot mode.
func Dump(f *Frame) string {
	parts := make([]string, f.count)
	for i, c := range f.buf[:f.count] {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return "Buffer dump: " + strings.Join(parts, " ")
}
