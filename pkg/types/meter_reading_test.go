package types

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestParseMeterLine(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r, err := ParseMeterLine("1", "meter 2 12345.678 987.654", at)
	if err != nil {
		t.Fatalf("ParseMeterLine err=%v", err)
	}
	if r.ImportKWH != 12345.678 || r.ExportKWH != 987.654 || r.Gateway != "1" {
		t.Fatalf("reading=%+v", r)
	}
	if r.Timestamp != "2024-03-01T12:00:00Z" {
		t.Fatalf("timestamp=%q", r.Timestamp)
	}
	if got, err := r.Time(); err != nil || !got.Equal(at) {
		t.Fatalf("Time=%v err=%v", got, err)
	}
}

func TestParseMeterLineRejects(t *testing.T) {
	for _, line := range []string{"", "event INFO Elster hello", "meter 1 1.0 2.0", "meter 2 1.0"} {
		if _, err := ParseMeterLine("1", line, time.Now()); !errors.Is(err, ErrNotMeterLine) {
			t.Fatalf("%q: err=%v", line, err)
		}
	}
	if _, err := ParseMeterLine("1", "meter 2 x 2.0", time.Now()); err == nil {
		t.Fatalf("expected number error")
	}
}

func TestMeterReadingFromJsonBytes(t *testing.T) {
	if MeterReadingFromJsonBytes([]byte(`{"status":"running"}`)) != nil {
		t.Fatalf("status message parsed as reading")
	}
	if MeterReadingFromJsonBytes([]byte(`not json`)) != nil {
		t.Fatalf("garbage parsed as reading")
	}
	r := MeterReadingFromJsonBytes([]byte(`{"timestamp":"2024-03-01T12:00:00Z","gateway":"1","import_kwh":1.5,"export_kwh":0.25}`))
	if r == nil || r.ImportKWH != 1.5 || r.ExportKWH != 0.25 {
		t.Fatalf("reading=%+v", r)
	}
}
