// Package scheduler decides when a decoded reading is published. Readings
// go out on wall-clock boundaries of a fixed interval; once a boundary has
// passed the schedule stays due until a reading is actually sent.
package scheduler

import "time"

const (
	DefaultInterval = 300 * time.Second
	// FallbackInterval replaces a configured interval of zero.
	FallbackInterval = 600 * time.Second
)

type Decision uint8

const (
	// Skip: not due, nothing to do.
	Skip Decision = iota
	// Hold: due, but the frame was rejected. The next valid frame is used.
	Hold
	// Publish: due and valid, send the reading now.
	Publish
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Hold:
		return "hold"
	case Publish:
		return "publish"
	default:
		return "unknown"
	}
}

type Schedule struct {
	interval time.Duration
	offset   time.Duration
	nextDue  time.Time
	pending  bool
}

// New returns a schedule that is due immediately, so the first valid frame
// after start-up is published.
func New(interval, offset time.Duration) *Schedule {
	if interval < time.Second {
		interval = FallbackInterval
	}
	return &Schedule{interval: interval, offset: offset}
}

// NextDue returns the first instant after now that lies offset past a
// multiple of interval, counted from the Unix epoch in whole seconds.
func NextDue(now time.Time, interval, offset time.Duration) time.Time {
	if interval < time.Second {
		interval = FallbackInterval
	}
	i := int64(interval / time.Second)
	o := int64(offset / time.Second)
	t := now.Unix()

	due := (t/i)*i + i + o
	for due <= t {
		due += i
	}
	return time.Unix(due, 0)
}

func (s *Schedule) Due(now time.Time) bool {
	return s.pending || !now.Before(s.nextDue)
}

func (s *Schedule) Pending() bool { return s.pending }

func (s *Schedule) NextDue() time.Time { return s.nextDue }

func (s *Schedule) Interval() time.Duration { return s.interval }

// Observe is called once per acquired frame with the validation outcome.
func (s *Schedule) Observe(now time.Time, valid bool) Decision {
	if !s.Due(now) {
		return Skip
	}
	if !valid {
		s.pending = true
		return Hold
	}
	return Publish
}

// Published clears the pending flag and moves to the next boundary.
func (s *Schedule) Published(now time.Time) {
	s.pending = false
	s.nextDue = NextDue(now, s.interval, s.offset)
}

// SendFailed keeps the schedule due after a reading could not be delivered.
func (s *Schedule) SendFailed() {
	s.pending = true
}
