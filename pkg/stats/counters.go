// Package stats keeps the process-lifetime frame counters reported by the
// "stats" command.
package stats

import (
	"fmt"
	"time"
)

type Counters struct {
	Total    int
	Valid    int
	Short    int
	Checksum int
	Started  time.Time
}

// New returns zeroed counters started at now.
func New(now time.Time) Counters {
	return Counters{Started: now}
}

// Reset zeroes every counter and restarts the clock.
func (c *Counters) Reset(now time.Time) {
	*c = New(now)
}

// Elapsed is the whole number of seconds since the counters started.
func (c *Counters) Elapsed(now time.Time) int64 {
	return int64(now.Sub(c.Started) / time.Second)
}

// Summary is the line logged for the "stats" command.
func (c *Counters) Summary(now time.Time) string {
	return fmt.Sprintf("Stats Total: %d Valid %d Short: %d Bad Checksum %d Seconds: %d",
		c.Total, c.Valid, c.Short, c.Checksum, c.Elapsed(now))
}
