package gateway

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/elster_gateway/pkg/control"
	"github.com/NotCoffee418/elster_gateway/pkg/frame"
	"github.com/NotCoffee418/elster_gateway/pkg/logging"
	"github.com/NotCoffee418/elster_gateway/pkg/scheduler"
	"github.com/NotCoffee418/elster_gateway/pkg/stats"
)

// Context is all mutable gateway state. Only the loop touches it, one
// phase at a time.
type Context struct {
	Counters stats.Counters
	Schedule *scheduler.Schedule
	// Last is the most recently acquired frame, complete or not.
	Last frame.Frame

	logger  *logrus.Logger
	logFile *logging.LogFile
	now     func() time.Time
}

// NewContext starts the counters at now. logFile may be nil when logging
// to a file is disabled. A nil clock means time.Now.
func NewContext(logger *logrus.Logger, logFile *logging.LogFile, sched *scheduler.Schedule, now func() time.Time) *Context {
	if now == nil {
		now = time.Now
	}
	if sched == nil {
		sched = scheduler.New(scheduler.DefaultInterval, 0)
	}
	return &Context{
		Counters: stats.New(now()),
		Schedule: sched,
		logger:   logger,
		logFile:  logFile,
		now:      now,
	}
}

func (c *Context) Now() time.Time { return c.now() }

func (c *Context) TruncateLog() error {
	if c.logFile == nil {
		return control.ErrNoLogFile
	}
	return c.logFile.Truncate()
}

func (c *Context) SetDebug(on bool) {
	level := 0
	if on {
		level = 1
	}
	c.logger.SetLevel(logging.LevelFor(level))
}

func (c *Context) StatsSummary() string { return c.Counters.Summary(c.now()) }

func (c *Context) ResetStats() { c.Counters.Reset(c.now()) }
