package types

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrNotMeterLine = errors.New("not a meter line")

// MeterReading is one published register pair as relayed by the monitor
// server. Values are the meter's kWh registers after offsets.
type MeterReading struct {
	Timestamp string `json:"timestamp"`
	Gateway   string `json:"gateway"`

	// Totals
	ImportKWH float64 `json:"import_kwh"`
	ExportKWH float64 `json:"export_kwh"`
}

// ParseMeterLine turns a gateway line "meter 2 <import> <export>" into a
// reading stamped with at.
func ParseMeterLine(gateway, line string, at time.Time) (*MeterReading, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[0] != "meter" || fields[1] != "2" {
		return nil, errors.Wrapf(ErrNotMeterLine, "%q", line)
	}
	imp, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, errors.Wrap(err, "import register")
	}
	exp, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, errors.Wrap(err, "export register")
	}
	return &MeterReading{
		Timestamp: at.UTC().Format(time.RFC3339),
		Gateway:   gateway,
		ImportKWH: imp,
		ExportKWH: exp,
	}, nil
}

func (r *MeterReading) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}

func (r *MeterReading) ToJsonBytes() []byte {
	b, _ := json.Marshal(r)
	return b
}

// MeterReadingFromJsonBytes returns nil for anything that is not a reading.
func MeterReadingFromJsonBytes(b []byte) *MeterReading {
	var r MeterReading
	if err := json.Unmarshal(b, &r); err != nil || r.Timestamp == "" {
		return nil
	}
	return &r
}
