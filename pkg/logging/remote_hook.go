package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LineSender delivers one text line to the server. Implementations must
// not log through the logger the hook is attached to.
type LineSender interface {
	SendLine(text string) error
}

// RemoteHook mirrors INFO and above to the server as
// "event <SEVERITY> <program> <message>".
type RemoteHook struct {
	sender  LineSender
	program string
	firing  bool
}

func NewRemoteHook(sender LineSender, program string) *RemoteHook {
	return &RemoteHook{sender: sender, program: program}
}

func (h *RemoteHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
	}
}

// Fire never returns an error: a server that cannot be reached is already
// reported by the link, and logrus would print every failure to stderr.
func (h *RemoteHook) Fire(e *logrus.Entry) error {
	if h.firing {
		return nil
	}
	h.firing = true
	defer func() { h.firing = false }()

	h.sender.SendLine(fmt.Sprintf("event %s %s %s", Severity(e.Level), h.program, e.Message))
	return nil
}

// Severity is the protocol name of a logrus level.
func Severity(l logrus.Level) string {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel:
		return "FATAL"
	case logrus.ErrorLevel:
		return "ERROR"
	case logrus.WarnLevel:
		return "WARN"
	case logrus.InfoLevel:
		return "INFO"
	default:
		return "DEBUG"
	}
}
