// Package logging builds the gateway's logrus logger: stderr plus an
// append-mode log file, with INFO and above mirrored to the server.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// DefaultLogFile is formatted with the program name and controller number.
const DefaultLogFile = "/tmp/%s%d.log"

type Options struct {
	// Path of the log file. Ignored when NoLog is set.
	Path  string
	NoLog bool
	Debug int
	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// LevelFor maps the diagnostic verbosity onto a logrus level.
func LevelFor(debug int) logrus.Level {
	switch {
	case debug <= 0:
		return logrus.InfoLevel
	case debug == 1:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// DefaultPath is the log file used when the config leaves it empty.
func DefaultPath(program string, controller int) string {
	return fmt.Sprintf(DefaultLogFile, program, controller)
}

// New returns the logger and, unless disabled or unavailable, the open log
// file. Failing to open the file is not fatal: the logger falls back to
// stderr only and the error is returned for the caller to report.
func New(opts Options) (*logrus.Logger, *LogFile, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(LevelFor(opts.Debug))
	logger.SetOutput(stderr)

	if opts.NoLog || opts.Path == "" {
		return logger, nil, nil
	}
	file, err := OpenLogFile(opts.Path)
	if err != nil {
		return logger, nil, err
	}
	logger.SetOutput(io.MultiWriter(stderr, file))
	return logger, file, nil
}
