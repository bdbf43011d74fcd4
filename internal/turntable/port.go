package turntable

import (
	"errors"
	"fmt"
	"slices"

	"go.bug.st/serial"

	"github.com/nerrad567/ugoku-core/internal/transport"
)

// ErrPortNotAvailable is returned when the named port is not attached.
var ErrPortNotAvailable = errors.New("turntable: serial port not available")

// OpenPort opens a serial port in 8N1 mode. It satisfies transport.Opener.
//
// When the system port list can be read, a port that is not in it is
// rejected up front; opening a missing USB adapter can otherwise hang.
func OpenPort(name string, baud int) (transport.Port, error) {
	if ports, err := serial.GetPortsList(); err == nil && !slices.Contains(ports, name) {
		return nil, fmt.Errorf("%w: %s (attached: %v)", ErrPortNotAvailable, name, ports)
	}

	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return port, nil
}
