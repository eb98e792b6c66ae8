package port_reader

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// TICReader is a line source over the Linky teleinformation serial port.
// It is opened and closed once per acquisition cycle.
type TICReader struct {
	port        string
	baudrate    uint
	readTimeout time.Duration
	serialPort  io.ReadWriteCloser
	reader      *bufio.Reader

	// Partial line left over by a read that timed out
	pending strings.Builder

	open func(serial.OpenOptions) (io.ReadWriteCloser, error)
}
