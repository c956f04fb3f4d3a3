package port_reader

import (
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
)

const (
	// termiosTick is the VTIME granularity the port is opened with. Every
	// empty read takes about this long unless the device has gone away.
	termiosTick = 100 * time.Millisecond
	// quickRead is how fast an empty read must return to count as a stall.
	quickRead = 10 * time.Millisecond
	// stallReads is how many quick empty reads in a row make a stall.
	stallReads = 3
)

// termiosPort drives the device through github.com/jacobsa/go-serial with
// VMIN=0 and a short VTIME, building longer timeouts out of ticks.
type termiosPort struct {
	options serial.OpenOptions
	rwc     io.ReadWriteCloser
}

// OpenTermios opens device at baud, 8N1, without flow control.
func OpenTermios(device string, baud uint) (Port, error) {
	p := &termiosPort{
		options: serial.OpenOptions{
			PortName:              device,
			BaudRate:              baud,
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       0,
			InterCharacterTimeout: uint(termiosTick / time.Millisecond),
		},
	}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *termiosPort) open() error {
	rwc, err := serial.Open(p.options)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", p.options.PortName)
	}
	p.rwc = rwc
	return nil
}

func (p *termiosPort) ReadTimeout(b []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	quick := 0
	for {
		start := time.Now()
		n, err := p.rwc.Read(b)
		if n > 0 {
			return n, nil
		}
		// An expired VTIME surfaces as io.EOF from the file read.
		if err != nil && err != io.EOF {
			return 0, err
		}
		if time.Since(start) < quickRead {
			quick++
			if quick >= stallReads {
				return 0, ErrStalled
			}
		} else {
			quick = 0
		}
		if !time.Now().Before(deadline) {
			return 0, nil
		}
	}
}

func (p *termiosPort) Reopen() error {
	if p.rwc != nil {
		p.rwc.Close()
	}
	return p.open()
}

func (p *termiosPort) Close() error {
	if p.rwc == nil {
		return nil
	}
	return p.rwc.Close()
}
