// Package aggregator condenses stored meter readings: hourly register
// snapshots, daily usage from register deltas, and cleanup of old raw
// readings.
package aggregator

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/elster_gateway/pkg/meterdb"
)

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// roundToDayStart returns the Unix timestamp of the start of the day for the given time
func roundToDayStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// getHourEnd returns the Unix timestamp of the last second of the hour (next hour start - 1)
func getHourEnd(hourStart int64) int64 {
	return time.Unix(hourStart, 0).Add(time.Hour).Unix() - 1
}

// getDayEnd returns the Unix timestamp of the last second of the day (next day start - 1)
func getDayEnd(dayStart int64) int64 {
	return time.Unix(dayStart, 0).UTC().AddDate(0, 0, 1).Unix() - 1
}

// snapshotMeterHourly records, per gateway, the last standing known at the
// end of the hour starting at hourStart.
func snapshotMeterHourly(db *sql.DB, hourStart int64) (int, error) {
	hourEnd := getHourEnd(hourStart)
	lookbackStart := hourEnd - int64(snapshotLookback/time.Second)

	query := `
		SELECT r.gateway, r.import_wh, r.export_wh
		FROM meter_readings r
		JOIN (
			SELECT gateway, MAX(timestamp) AS ts
			FROM meter_readings
			WHERE timestamp >= ? AND timestamp <= ?
			GROUP BY gateway
		) last ON last.gateway = r.gateway AND last.ts = r.timestamp
	`
	rows, err := db.Query(query, lookbackStart, hourEnd)
	if err != nil {
		return 0, errors.Wrap(err, "query standings")
	}
	defer rows.Close()

	var snaps []meterdb.SnapshotMeterHourly
	for rows.Next() {
		s := meterdb.SnapshotMeterHourly{Timestamp: hourStart}
		if err := rows.Scan(&s.Gateway, &s.ImportWh, &s.ExportWh); err != nil {
			return 0, err
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	insertQuery := `
		INSERT OR REPLACE INTO snapshot_meter_hourly
		(timestamp, gateway, import_wh, export_wh)
		VALUES (?, ?, ?, ?)
	`
	for _, s := range snaps {
		if _, err := db.Exec(insertQuery, s.Timestamp, s.Gateway, s.ImportWh, s.ExportWh); err != nil {
			return 0, errors.Wrap(err, "insert snapshot")
		}
	}
	return len(snaps), nil
}

// aggregateUsageDaily stores, per gateway, how far each register moved
// during the day starting at dayStart.
func aggregateUsageDaily(db *sql.DB, dayStart int64) error {
	dayEnd := getDayEnd(dayStart)

	// Registers only count up, so the spread is the day's usage.
	query := `
		SELECT
			gateway,
			MAX(import_wh) - MIN(import_wh),
			MAX(export_wh) - MIN(export_wh),
			COUNT(*)
		FROM meter_readings
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY gateway
	`
	rows, err := db.Query(query, dayStart, dayEnd)
	if err != nil {
		return errors.Wrap(err, "query daily usage")
	}
	defer rows.Close()

	var usage []meterdb.UsageDaily
	for rows.Next() {
		u := meterdb.UsageDaily{DayStart: dayStart}
		if err := rows.Scan(&u.Gateway, &u.ImportWh, &u.ExportWh, &u.SampleCount); err != nil {
			return err
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	insertQuery := `
		INSERT OR REPLACE INTO usage_daily
		(day_start, gateway, import_wh, export_wh, sample_count)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, u := range usage {
		if _, err := db.Exec(insertQuery, u.DayStart, u.Gateway, u.ImportWh, u.ExportWh, u.SampleCount); err != nil {
			return errors.Wrap(err, "insert daily usage")
		}
	}
	return nil
}

// cleanupOldData removes raw readings older than the retention period if
// hourly snapshots already cover that period.
func cleanupOldData(db *sql.DB, now time.Time, log logrus.FieldLogger) error {
	cutoff := now.UTC().AddDate(0, -rawRetentionMonths, 0)

	var lastSnapshot sql.NullInt64
	if err := db.QueryRow("SELECT MAX(timestamp) FROM snapshot_meter_hourly").Scan(&lastSnapshot); err != nil {
		return errors.Wrap(err, "query last snapshot")
	}
	if !lastSnapshot.Valid || lastSnapshot.Int64 < cutoff.Unix() {
		return nil
	}

	res, err := db.Exec("DELETE FROM meter_readings WHERE timestamp < ?", cutoff.Unix())
	if err != nil {
		return errors.Wrap(err, "delete old readings")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Infof("Cleaned up %d readings older than %s", n, cutoff.Format(time.RFC3339))
	}
	return nil
}

// AggregateAndCleanup snapshots the previous hour, aggregates the previous
// day when now is in the first hour of a new day, then drops expired raw
// readings. Call it once an hour.
func AggregateAndCleanup(now time.Time, log logrus.FieldLogger) error {
	db := meterdb.GetDB()
	if db == nil {
		return meterdb.ErrNotInitialized
	}
	now = now.UTC()

	// Aggregate the previous hour (current hour is still ongoing)
	hourStart := roundToHourStart(now.Add(-time.Hour))
	n, err := snapshotMeterHourly(db, hourStart)
	if err != nil {
		return errors.Wrap(err, "hourly snapshot")
	}
	log.Debugf("Snapshot for hour starting %s covers %d gateways",
		time.Unix(hourStart, 0).UTC().Format(time.RFC3339), n)

	if now.Hour() == 0 {
		dayStart := roundToDayStart(now.AddDate(0, 0, -1))
		log.Infof("Aggregating usage for day starting at %s", time.Unix(dayStart, 0).UTC().Format(time.RFC3339))
		if err := aggregateUsageDaily(db, dayStart); err != nil {
			return errors.Wrap(err, "daily usage")
		}
	}

	return cleanupOldData(db, now, log)
}

// DailyUsage returns the stored usage for gateway on the day containing t.
func DailyUsage(gateway string, t time.Time) (*meterdb.UsageDaily, error) {
	db := meterdb.GetDB()
	if db == nil {
		return nil, meterdb.ErrNotInitialized
	}
	u := meterdb.UsageDaily{Gateway: gateway}
	err := db.QueryRow(
		"SELECT day_start, import_wh, export_wh, sample_count FROM usage_daily WHERE gateway = ? AND day_start = ?",
		gateway, roundToDayStart(t),
	).Scan(&u.DayStart, &u.ImportWh, &u.ExportWh, &u.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query daily usage")
	}
	return &u, nil
}
