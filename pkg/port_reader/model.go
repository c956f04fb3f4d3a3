package port_reader

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrStalled is returned by a Port when the device signalled data but
// delivered none, which is how a dropped USB adapter shows up.
var ErrStalled = errors.New("serial device ready but returned no data")

// Port is an open serial device with bounded reads.
type Port interface {
	// ReadTimeout reads up to len(p) bytes, waiting at most timeout for
	// the first one. It returns 0, nil when nothing arrived in time.
	ReadTimeout(p []byte, timeout time.Duration) (int, error)
	// Reopen closes and reopens the device with the same settings.
	Reopen() error
	Close() error
}

const (
	DefaultGap         = 100 * time.Millisecond
	DefaultByteTimeout = 500 * time.Millisecond
)

// FrameReader aligns to frame boundaries on a Port and fills frames.
type FrameReader struct {
	port        Port
	log         logrus.Ext1FieldLogger
	gap         time.Duration
	byteTimeout time.Duration

	// lead holds bytes taken by Poll; they start the next frame.
	lead    []byte
	leadBuf [1]byte
}
