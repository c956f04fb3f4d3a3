// Package remote is the gateway's connection to the monitoring server. It
// carries commands in and lines out over one TCP socket and redials with
// backoff when the server goes away.
package remote

import (
	"bufio"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/elster_gateway/pkg/control"
)

const (
	DefaultPort = 10010

	dialTimeout    = 5 * time.Second
	writeTimeout   = 5 * time.Second
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second
	// minPoll keeps a poll from expiring before the socket is even checked.
	minPoll = time.Millisecond
)

var ErrOffline = errors.New("not connected to server")

type DialFunc func(addr string) (net.Conn, error)

// Link is the socket to the server. It is used from the gateway loop only.
type Link struct {
	addr  string
	logon string
	log   logrus.FieldLogger
	dial  DialFunc

	conn      net.Conn
	br        *bufio.Reader
	retry     time.Duration
	nextDial  time.Time
	announced bool
}

// NewLink prepares a link to addr. logon is sent as the first line after
// every successful connect. Nothing is dialled until Connect or Poll.
func NewLink(addr, logon string, log logrus.FieldLogger, dial DialFunc) *Link {
	if dial == nil {
		dial = func(addr string) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, dialTimeout)
		}
	}
	return &Link{addr: addr, logon: logon, log: log, dial: dial}
}

func (l *Link) Online() bool { return l.conn != nil }

// Connect dials immediately, ignoring any backoff in progress.
func (l *Link) Connect() error {
	conn, err := l.dial(l.addr)
	if err != nil {
		l.scheduleRetry()
		return errors.Wrapf(err, "connect to %s", l.addr)
	}
	l.conn = conn
	l.br = bufio.NewReader(conn)
	l.retry = 0
	l.announced = false
	if err := l.SendLine(l.logon); err != nil {
		return errors.Wrap(err, "send logon")
	}
	l.log.Infof("Connected to server %s", l.addr)
	return nil
}

func (l *Link) scheduleRetry() {
	if l.retry == 0 {
		l.retry = baseRetryDelay
	} else {
		l.retry *= 2
		if l.retry > maxRetryDelay {
			l.retry = maxRetryDelay
		}
	}
	l.nextDial = time.Now().Add(l.retry)
}

// maybeRedial reconnects once the backoff has elapsed.
func (l *Link) maybeRedial() {
	if l.conn != nil || time.Now().Before(l.nextDial) {
		return
	}
	if err := l.Connect(); err != nil {
		if !l.announced {
			l.log.Warnf("Cannot reach server, retrying in %v: %v", l.retry, err)
			l.announced = true
		} else {
			l.log.Debugf("Redial failed, next attempt in %v: %v", l.retry, err)
		}
	}
}

// Poll reports whether a command is waiting, waiting at most d. While
// offline it redials when due and otherwise returns false at once.
func (l *Link) Poll(d time.Duration) (bool, error) {
	l.maybeRedial()
	if l.conn == nil {
		return false, nil
	}
	if d < minPoll {
		d = minPoll
	}
	if err := l.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		l.Drop()
		return false, nil
	}
	if _, err := l.br.Peek(1); err != nil {
		if isTimeout(err) {
			return false, nil
		}
		l.log.Warnf("Lost connection to server: %v", err)
		l.Drop()
		return false, nil
	}
	return true, nil
}

// Read serves buffered socket data to the command channel.
func (l *Link) Read(p []byte) (int, error) {
	if l.conn == nil {
		return 0, ErrOffline
	}
	return l.br.Read(p)
}

func (l *Link) SetReadDeadline(t time.Time) error {
	if l.conn == nil {
		return ErrOffline
	}
	return l.conn.SetReadDeadline(t)
}

// SendLine writes one framed line. It does not log, so it is safe to call
// from a log hook. A failed write drops the connection.
func (l *Link) SendLine(text string) error {
	if l.conn == nil {
		return ErrOffline
	}
	if err := l.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		l.Drop()
		return err
	}
	if err := control.WriteMessage(l.conn, text); err != nil {
		l.Drop()
		return err
	}
	return nil
}

// Drop closes the connection and schedules a redial.
func (l *Link) Drop() {
	if l.conn == nil {
		return
	}
	l.conn.Close()
	l.conn = nil
	l.br = nil
	l.scheduleRetry()
}

func (l *Link) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	l.br = nil
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
