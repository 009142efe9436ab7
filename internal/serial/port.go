package serial

import (
	"io"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// defaultOpenPort is the production Link.openPort: it opens the named
// UART via go.bug.st/serial with cfg.ReadTimeout as the read timeout so
// lineReader's blocking Read calls return periodically to observe ctx
// cancellation.
func defaultOpenPort(cfg Config) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{BaudRate: cfg.Baud}
	port, err := serial.Open(cfg.PortName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", cfg.PortName)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "set read timeout")
	}
	return port, nil
}
