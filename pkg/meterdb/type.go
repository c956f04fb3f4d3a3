package meterdb

type MeterDbReading struct {
	Timestamp int64  `db:"timestamp"`
	Gateway   string `db:"gateway"`
	ImportWh  uint64 `db:"import_wh"`
	ExportWh  uint64 `db:"export_wh"`
}

// Snapshot models - retained register standings
type SnapshotMeterHourly struct {
	Timestamp int64  `db:"timestamp"`
	Gateway   string `db:"gateway"`
	ImportWh  uint64 `db:"import_wh"`
	ExportWh  uint64 `db:"export_wh"`
}

// Aggregate models - energy used per day, from register deltas
type UsageDaily struct {
	DayStart    int64  `db:"day_start"`
	Gateway     string `db:"gateway"`
	ImportWh    uint64 `db:"import_wh"`
	ExportWh    uint64 `db:"export_wh"`
	SampleCount uint32 `db:"sample_count"`
}
