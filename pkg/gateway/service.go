// Package gateway runs the meter loop: wait for a frame or a server
// command, then read, validate and schedule the frame or apply the
// command.
package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/elster_gateway/pkg/control"
	"github.com/NotCoffee418/elster_gateway/pkg/frame"
	"github.com/NotCoffee418/elster_gateway/pkg/scheduler"
)

const (
	DefaultReceiveTimeout = 90 * time.Second
	DefaultSerialSlice    = 100 * time.Millisecond
	DefaultSocketSlice    = 10 * time.Millisecond
)

// FrameSource is the serial side, satisfied by *port_reader.FrameReader.
type FrameSource interface {
	WaitForGap() (int, error)
	Poll(d time.Duration) (bool, error)
	AcquireFrame(f *frame.Frame) (frame.Status, error)
}

// ServerLink is the socket side, satisfied by *remote.Link.
type ServerLink interface {
	control.Link
	Poll(d time.Duration) (bool, error)
	SendLine(text string) error
	Drop()
}

type Options struct {
	Offsets frame.Offsets
	// SuppressChecksum: 0 warns on every checksum failure, N reports
	// every Nth failure as one INFO line.
	SuppressChecksum int
	// SingleShot stops the loop after the first complete frame.
	SingleShot     bool
	ReceiveTimeout time.Duration
	SerialSlice    time.Duration
	SocketSlice    time.Duration
	Retries        int
	RetryDelay     time.Duration
}

type Gateway struct {
	state   *Context
	reader  FrameSource
	link    ServerLink
	channel *control.Channel
	opts    Options
	log     logrus.Ext1FieldLogger
	sources []source
	// quiet is set once "No data" has been reported for this outage.
	quiet bool
}

// New wires the loop. link may be nil, in which case readings are logged
// instead of sent and no commands are read.
func New(state *Context, reader FrameSource, link ServerLink, log logrus.Ext1FieldLogger, opts Options) *Gateway {
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = DefaultReceiveTimeout
	}
	if opts.SerialSlice <= 0 {
		opts.SerialSlice = DefaultSerialSlice
	}
	if opts.SocketSlice <= 0 {
		opts.SocketSlice = DefaultSocketSlice
	}
	g := &Gateway{state: state, reader: reader, link: link, opts: opts, log: log}
	g.sources = []source{{name: "serial", poll: reader.Poll, slice: opts.SerialSlice, handle: g.onFrame}}
	if link != nil {
		g.channel = control.NewChannel(link, log, opts.Retries, opts.RetryDelay)
		g.sources = append(g.sources, source{name: "server", poll: link.Poll, slice: opts.SocketSlice, handle: g.onCommand})
	}
	return g
}

// Run loops until the server sends exit, ctx is cancelled, single-shot
// mode has seen its frame, or the serial port fails. Only the last is an
// error.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			g.log.Info("Shutdown requested")
			return nil
		}
		if _, err := g.reader.WaitForGap(); err != nil {
			return errors.Wrap(err, "wait for gap")
		}
		src, err := wait(ctx, g.sources, g.opts.ReceiveTimeout)
		if err != nil {
			return errors.Wrapf(err, "poll %s", src.name)
		}
		if src == nil {
			if ctx.Err() == nil && !g.quiet {
				g.log.Warn("No data for last period")
				g.quiet = true
			}
			continue
		}

		sig, err := src.handle()
		if err != nil {
			return err
		}
		if sig == control.Stop {
			g.log.Info("Shutdown requested")
			return nil
		}
	}
}

func (g *Gateway) onFrame() (control.Signal, error) {
	st := g.state
	status, err := g.reader.AcquireFrame(&st.Last)
	if err != nil {
		return control.Stop, errors.Wrap(err, "acquire frame")
	}
	g.quiet = false
	st.Counters.Total++
	g.log.Tracef("Got packet %d long, status %v", st.Last.Len(), status)

	switch status {
	case frame.StatusComplete:
	case frame.StatusShort:
		st.Counters.Short++
		g.log.Warnf("Datacount %d != %d", st.Last.Len(), frame.Size)
		// A short frame is a rejected frame: if one was due, the send
		// stays pending for the next valid frame.
		st.Schedule.Observe(st.Now(), false)
		return control.Continue, nil
	default:
		// No marker or overflow. The next gap wait resynchronises.
		return control.Continue, nil
	}

	if g.opts.SingleShot {
		g.log.Info(frame.Dump(&st.Last))
		g.describe(&st.Last)
	}

	reading, valid := g.validate(&st.Last)
	now := st.Now()
	switch st.Schedule.Observe(now, valid) {
	case scheduler.Publish:
		if err := g.publish(reading.Line()); err != nil {
			g.log.Debugf("Reading not sent, will retry on next frame: %v", err)
			st.Schedule.SendFailed()
		} else {
			st.Schedule.Published(now)
			g.log.Debugf("Published, next due %s", st.Schedule.NextDue().Format(time.TimeOnly))
		}
	case scheduler.Hold:
		g.log.Debug("Rejected frame while due, send pending")
	}

	if g.opts.SingleShot {
		return control.Stop, nil
	}
	return control.Continue, nil
}

// validate decodes a complete frame and keeps the counters.
func (g *Gateway) validate(f *frame.Frame) (frame.Reading, bool) {
	st := g.state
	reading, err := frame.Decode(f, g.opts.Offsets)
	switch {
	case err == nil:
		st.Counters.Valid++
		return reading, true
	case errors.Is(err, frame.ErrChecksum):
		st.Counters.Checksum++
		g.log.Debug(err.Error())
		if n := g.opts.SuppressChecksum; n == 0 {
			g.log.Warn("Checksum failure")
		} else if st.Counters.Checksum%n == 0 {
			g.log.Infof("%d Checksum failures", st.Counters.Checksum)
		}
	default:
		g.log.Warn(err.Error())
	}
	return frame.Reading{}, false
}

func (g *Gateway) publish(line string) error {
	if g.link == nil {
		g.log.Info(line)
		return nil
	}
	return g.link.SendLine(line)
}

func (g *Gateway) onCommand() (control.Signal, error) {
	sig, err := g.channel.Handle(g.state)
	if err != nil {
		g.log.Warnf("Lost connection to server: %v", err)
		g.link.Drop()
		return control.Continue, nil
	}
	if sig == control.FullDump {
		g.describe(&g.state.Last)
		return control.Continue, nil
	}
	return sig, nil
}

// describe logs the three description lines and re-checks the checksum,
// since the frame may never have been validated.
func (g *Gateway) describe(f *frame.Frame) {
	for _, line := range frame.Describe(f) {
		g.log.Info(line)
	}
	if !f.ChecksumOK() {
		g.log.Warn("Checksum failure")
	}
}
