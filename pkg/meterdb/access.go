package meterdb

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/NotCoffee418/elster_gateway/pkg/esmutils"
	"github.com/NotCoffee418/elster_gateway/pkg/types"
)

var ErrNotInitialized = errors.New("meter database not initialized")

// FromMeterReading converts a relayed reading to its stored form.
func FromMeterReading(r *types.MeterReading) (*MeterDbReading, error) {
	at, err := r.Time()
	if err != nil {
		return nil, errors.Wrap(err, "reading timestamp")
	}
	return &MeterDbReading{
		Timestamp: at.Unix(),
		Gateway:   r.Gateway,
		ImportWh:  esmutils.KwhToWh(r.ImportKWH),
		ExportWh:  esmutils.KwhToWh(r.ExportKWH),
	}, nil
}

// InsertMeterReading stores reading. A duplicate (gateway, timestamp) is
// ignored, since the monitor resends its latest reading to every new
// subscriber.
func InsertMeterReading(reading *MeterDbReading) error {
	db := GetDB()
	if db == nil {
		return ErrNotInitialized
	}

	_, err := db.Exec(
		"INSERT OR IGNORE INTO meter_readings (timestamp, gateway, import_wh, export_wh) "+
			"VALUES (?, ?, ?, ?)",
		reading.Timestamp,
		reading.Gateway,
		reading.ImportWh,
		reading.ExportWh,
	)
	if err != nil {
		return errors.Wrap(err, "insert meter reading")
	}
	return nil
}

// LatestMeterReading returns the newest stored reading for gateway, or
// nil when there is none.
func LatestMeterReading(gateway string) (*MeterDbReading, error) {
	db := GetDB()
	if db == nil {
		return nil, ErrNotInitialized
	}

	var r MeterDbReading
	err := db.QueryRow(
		"SELECT timestamp, gateway, import_wh, export_wh FROM meter_readings "+
			"WHERE gateway = ? ORDER BY timestamp DESC LIMIT 1",
		gateway,
	).Scan(&r.Timestamp, &r.Gateway, &r.ImportWh, &r.ExportWh)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query latest meter reading")
	}
	return &r, nil
}

// CountMeterReadings is the number of stored readings for gateway.
func CountMeterReadings(gateway string) (int, error) {
	db := GetDB()
	if db == nil {
		return 0, ErrNotInitialized
	}
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM meter_readings WHERE gateway = ?", gateway).Scan(&n)
	return n, errors.Wrap(err, "count meter readings")
}
