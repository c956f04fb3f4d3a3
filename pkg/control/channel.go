package control

import (
	"encoding/binary"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

var (
	ErrLengthTimeout = errors.New("failed to read length from socket")
	ErrReadTimeout   = errors.New("timed out reading from server")
	ErrNoLogFile     = errors.New("log file is not open")
)

const helpText = "Commands are: debug 0|1, exit, truncate, read, stats, reset, Ok, help"

// Link is the read side of the server connection.
type Link interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// Actions are the side effects a command may have on the gateway.
type Actions interface {
	TruncateLog() error
	SetDebug(on bool)
	StatsSummary() string
	ResetStats()
}

// Channel reads commands from a Link with a bounded retry budget so a
// slow server degrades into a warning instead of blocking the loop.
type Channel struct {
	link    Link
	log     logrus.FieldLogger
	retries int
	delay   time.Duration
}

func NewChannel(link Link, log logrus.FieldLogger, retries int, delay time.Duration) *Channel {
	if retries < 1 {
		retries = DefaultRetries
	}
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Channel{link: link, log: log, retries: retries, delay: delay}
}

// Read returns the next command text. Timeouts come back as
// ErrLengthTimeout or ErrReadTimeout; anything else is a link failure.
func (c *Channel) Read() (string, error) {
	var prefix [2]byte
	if err := c.readFull(prefix[:]); err != nil {
		if isTimeout(err) {
			return "", ErrLengthTimeout
		}
		return "", err
	}

	buf := make([]byte, binary.BigEndian.Uint16(prefix[:]))
	if err := c.readFull(buf); err != nil {
		if isTimeout(err) {
			return "", ErrReadTimeout
		}
		return "", err
	}
	return string(buf), nil
}

// readFull fills buf, giving each attempt one retry delay to make
// progress. The deadline doubles as the pause between attempts.
func (c *Channel) readFull(buf []byte) error {
	got := 0
	for attempt := 1; got < len(buf); attempt++ {
		if err := c.link.SetReadDeadline(time.Now().Add(c.delay)); err != nil {
			return errors.Wrap(err, "set read deadline")
		}
		n, err := io.ReadFull(c.link, buf[got:])
		got += n
		if err == nil {
			break
		}
		if !isTimeout(err) {
			return errors.Wrap(err, "read from server")
		}
		if attempt >= c.retries {
			return err
		}
		c.log.Debugf("Short read from server, %d of %d bytes (attempt %d)", got, len(buf), attempt)
	}
	return c.link.SetReadDeadline(time.Time{})
}

// Handle reads one command and applies it. A returned error means the
// link itself failed; the signal is Continue in that case.
func (c *Channel) Handle(a Actions) (Signal, error) {
	text, err := c.Read()
	switch {
	case errors.Is(err, ErrLengthTimeout), errors.Is(err, ErrReadTimeout):
		c.log.Warn(err.Error())
		return Continue, nil
	case err != nil:
		return Continue, err
	}
	return Dispatch(Parse(text), a, c.log), nil
}

// Dispatch applies cmd and returns the loop signal. Every Kind is handled.
func Dispatch(cmd Command, a Actions, log logrus.FieldLogger) Signal {
	switch cmd.Kind {
	case Exit:
		return Stop
	case Acknowledge:
		return Continue
	case Truncate:
		if err := a.TruncateLog(); err != nil {
			if errors.Is(err, ErrNoLogFile) {
				log.Info("Log file not truncated as it is not open")
			} else {
				log.Warnf("Log file not truncated: %v", err)
			}
			return Continue
		}
		log.Info("Truncated log file")
		return Continue
	case SetDebug:
		a.SetDebug(cmd.Debug)
		return Continue
	case Help:
		log.Info(helpText)
		return Continue
	case ReadNow:
		return FullDump
	case Stats:
		log.Info(a.StatsSummary())
		return Continue
	case Reset:
		a.ResetStats()
		return Continue
	case Unknown:
		// Quoted so the server never receives its own text back as a command.
		log.Infof("Unknown message from server: %q", cmd.Text)
		return Continue
	default:
		log.Errorf("Unhandled command kind %v", cmd.Kind)
		return Continue
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
