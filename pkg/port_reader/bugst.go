package port_reader

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// bugstPort drives the device through go.bug.st/serial, which supports a
// read timeout per call.
type bugstPort struct {
	device string
	mode   *serial.Mode
	port   serial.Port
}

// OpenBugst opens device at baud, 8N1.
func OpenBugst(device string, baud uint) (Port, error) {
	p := &bugstPort{
		device: device,
		mode: &serial.Mode{
			BaudRate: int(baud),
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *bugstPort) open() error {
	port, err := serial.Open(p.device, p.mode)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", p.device)
	}
	p.port = port
	return nil
}

func (p *bugstPort) ReadTimeout(b []byte, timeout time.Duration) (int, error) {
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return 0, errors.Wrap(err, "set read timeout")
	}
	start := time.Now()
	n, err := p.port.Read(b)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
			return 0, ErrStalled
		}
		return n, err
	}
	// The library reports a timeout as 0, nil. Getting that back long
	// before the timeout means the device hung up.
	if n == 0 && timeout >= termiosTick && time.Since(start) < quickRead {
		return 0, ErrStalled
	}
	return n, nil
}

func (p *bugstPort) Reopen() error {
	if p.port != nil {
		p.port.Close()
	}
	return p.open()
}

func (p *bugstPort) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}
