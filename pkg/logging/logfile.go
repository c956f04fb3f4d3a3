package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// LogFile is an append-only log that can be emptied in place while the
// process keeps writing to it.
type LogFile struct {
	path string
	f    *os.File
}

func OpenLogFile(path string) (*LogFile, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open logfile %s", path)
	}
	return &LogFile{path: path, f: f}, nil
}

func (l *LogFile) Path() string { return l.path }

func (l *LogFile) Write(p []byte) (int, error) {
	return l.f.Write(p)
}

// Truncate empties the file. O_APPEND makes the next write land at the
// new end, so no reopen is needed.
func (l *LogFile) Truncate() error {
	if err := l.f.Truncate(0); err != nil {
		return errors.Wrapf(err, "truncate %s", l.path)
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek %s", l.path)
	}
	return nil
}

func (l *LogFile) Close() error {
	return l.f.Close()
}
