package port_reader

import "github.com/pkg/errors"

const (
	DriverTermios = "termios"
	DriverBugst   = "bugst"
)

var ErrUnknownDriver = errors.New("unknown serial driver")

// Open opens device with the named driver. An empty name selects termios.
func Open(driver, device string, baud uint) (Port, error) {
	switch driver {
	case "", DriverTermios:
		return OpenTermios(device, baud)
	case DriverBugst:
		return OpenBugst(device, baud)
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", driver)
	}
}
