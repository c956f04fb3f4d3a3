package port_reader

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/elster_gateway/pkg/frame"
)

// NewFrameReader wraps port. Zero durations select the defaults.
func NewFrameReader(port Port, log logrus.Ext1FieldLogger, gap, byteTimeout time.Duration) *FrameReader {
	if gap <= 0 {
		gap = DefaultGap
	}
	if byteTimeout <= 0 {
		byteTimeout = DefaultByteTimeout
	}
	return &FrameReader{
		port:        port,
		log:         log,
		gap:         gap,
		byteTimeout: byteTimeout,
	}
}

// read wraps Port.ReadTimeout with reopen-on-stall. A stall never aborts
// the caller; only a failed reopen or a hard read error does.
func (r *FrameReader) read(p []byte, timeout time.Duration) (int, error) {
	for {
		n, err := r.port.ReadTimeout(p, timeout)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, ErrStalled) {
			return n, errors.Wrap(err, "read serial")
		}
		r.log.Error("Serial port was ready but got no data, reopening")
		if err := r.port.Reopen(); err != nil {
			return 0, errors.Wrap(err, "reopen serial")
		}
	}
}

// WaitForGap discards input until the port has been silent for one full
// gap window, which puts it on a frame boundary. It returns the number of
// bytes thrown away.
func (r *FrameReader) WaitForGap() (int, error) {
	r.lead = nil
	var scratch [32]byte
	discarded := 0
	for {
		n, err := r.read(scratch[:], r.gap)
		if err != nil {
			return discarded, err
		}
		if n == 0 {
			if discarded > 0 {
				r.log.Tracef("Waitforgap discarded %d chars", discarded)
			}
			return discarded, nil
		}
		discarded += n
	}
}

// Poll waits up to d for the first byte of a frame. That byte is kept and
// becomes byte 0 of the next AcquireFrame.
func (r *FrameReader) Poll(d time.Duration) (bool, error) {
	if len(r.lead) > 0 {
		return true, nil
	}
	n, err := r.read(r.leadBuf[:], d)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	r.lead = r.leadBuf[:n]
	return true, nil
}

// AcquireFrame reads one frame into f: the 4-byte header, a marker check,
// then the body. The returned status is also stored on f. An error means
// the serial device failed and the caller should stop.
func (r *FrameReader) AcquireFrame(f *frame.Frame) (frame.Status, error) {
	f.Reset()
	f.Advance(copy(f.Window(len(r.lead)), r.lead))
	r.lead = nil

	status, err := r.fillTo(f, frame.HeaderSize)
	if err != nil || status != frame.StatusComplete {
		return r.finish(f, status, err)
	}
	if !f.HasMarker() {
		r.log.Debugf("Count is %d (0x%x) not 104", f.MarkerByte(), f.MarkerByte())
		return r.finish(f, frame.StatusNoMarker, nil)
	}

	status, err = r.fillTo(f, frame.Size)
	return r.finish(f, status, err)
}

func (r *FrameReader) finish(f *frame.Frame, s frame.Status, err error) (frame.Status, error) {
	f.SetStatus(s)
	return s, err
}

// fillTo reads until f holds target bytes, the per-byte timeout expires
// (StatusShort) or the request would overflow the buffer (StatusOverflow).
func (r *FrameReader) fillTo(f *frame.Frame, target int) (frame.Status, error) {
	want := target - f.Len()
	if want > f.Free() {
		r.log.Errorf("Buffer overflow - requested %d bytes with %d free (count %d)", want, f.Free(), f.Len())
		return frame.StatusOverflow, nil
	}
	for f.Len() < target {
		n, err := r.read(f.Window(target-f.Len()), r.byteTimeout)
		f.Advance(n)
		if err != nil {
			return frame.StatusShort, err
		}
		if n == 0 {
			return frame.StatusShort, nil
		}
	}
	return frame.StatusComplete, nil
}
