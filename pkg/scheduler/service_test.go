package scheduler

import (
	"testing"
	"time"
)

func TestNextDueAlignment(t *testing.T) {
	intervals := []time.Duration{60 * time.Second, 300 * time.Second, 3600 * time.Second}
	offsets := []time.Duration{0, 15 * time.Second, -30 * time.Second, 45 * time.Second}
	base := time.Unix(1_700_000_000, 0)

	for _, interval := range intervals {
		for _, offset := range offsets {
			i := int64(interval / time.Second)
			o := int64(offset / time.Second)
			for step := int64(0); step < 2*i; step += 7 {
				now := base.Add(time.Duration(step) * time.Second)
				due := NextDue(now, interval, offset)
				if !due.After(now) {
					t.Fatalf("interval=%v offset=%v now=%d: due %d not after now", interval, offset, now.Unix(), due.Unix())
				}
				if r := ((due.Unix()-o)%i + i) % i; r != 0 {
					t.Fatalf("interval=%v offset=%v: due %d not aligned (rem %d)", interval, offset, due.Unix(), r)
				}
				if due.Sub(now) > interval+absDuration(offset) {
					t.Fatalf("interval=%v offset=%v: due %v too far ahead", interval, offset, due.Sub(now))
				}
			}
		}
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func TestZeroIntervalFallsBack(t *testing.T) {
	s := New(0, 0)
	if s.Interval() != FallbackInterval {
		t.Fatalf("Interval=%v", s.Interval())
	}
	now := time.Unix(1_700_000_123, 0)
	if got := NextDue(now, 0, 0).Unix(); got%600 != 0 || got <= now.Unix() {
		t.Fatalf("NextDue with zero interval=%d", got)
	}
}

func TestFirstFrameIsDue(t *testing.T) {
	s := New(DefaultInterval, 0)
	if d := s.Observe(time.Unix(1_700_000_000, 0), true); d != Publish {
		t.Fatalf("first valid frame decision=%v", d)
	}
}

func TestPendingPersistsUntilPublished(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := New(DefaultInterval, 0)
	s.Published(now)
	due := s.NextDue()

	if d := s.Observe(due.Add(-time.Second), true); d != Skip {
		t.Fatalf("before boundary decision=%v", d)
	}

	// Noisy frames across the boundary keep the schedule pending.
	for k := 0; k < 5; k++ {
		if d := s.Observe(due.Add(time.Duration(k)*time.Second), false); d != Hold {
			t.Fatalf("rejected frame %d decision=%v", k, d)
		}
		if !s.Pending() {
			t.Fatalf("pending cleared by rejected frame %d", k)
		}
	}

	// A send failure does not clear it either.
	if d := s.Observe(due.Add(6*time.Second), true); d != Publish {
		t.Fatalf("valid frame decision=%v", d)
	}
	s.SendFailed()
	if !s.Pending() {
		t.Fatalf("pending cleared by failed send")
	}

	if d := s.Observe(due.Add(7*time.Second), true); d != Publish {
		t.Fatalf("retry decision=%v", d)
	}
	s.Published(due.Add(7 * time.Second))
	if s.Pending() {
		t.Fatalf("pending still set after publish")
	}
	if !s.NextDue().After(due) {
		t.Fatalf("next due %v did not advance past %v", s.NextDue(), due)
	}
	if d := s.Observe(due.Add(8*time.Second), true); d != Skip {
		t.Fatalf("after publish decision=%v", d)
	}
}

func TestPendingOverridesClock(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := New(DefaultInterval, 0)
	s.Published(now)
	s.SendFailed()
	if d := s.Observe(now.Add(time.Second), true); d != Publish {
		t.Fatalf("pending schedule decision=%v", d)
	}
}
