package aggregator

import "time"

const (
	// Raw readings older than this are dropped once snapshots cover them.
	rawRetentionMonths = 3
	// snapshotLookback is how far back an hourly snapshot may reach for
	// the last known standing.
	snapshotLookback = 24 * time.Hour
)
