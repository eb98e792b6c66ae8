package port_reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// termios VTIME is one byte of deciseconds.
const maxInterCharacterTimeout = 25500 * time.Millisecond

var ErrNotConnected = errors.New("serial port not connected")

// Initialize a new TICReader. readTimeout bounds how long a single
// ReadLine blocks on a silent line; 0 blocks until data arrives.
func NewTICReader(port string, baudrate uint, readTimeout time.Duration) *TICReader {
	if readTimeout > maxInterCharacterTimeout {
		readTimeout = maxInterCharacterTimeout
	}
	return &TICReader{
		port:        port,
		baudrate:    baudrate,
		readTimeout: readTimeout,
		open:        serial.Open,
	}
}

// Open the connection to the TIC port: 7 data bits, even parity, 1 stop bit.
func (p *TICReader) Open() error {
	options := serial.OpenOptions{
		PortName:   p.port,
		BaudRate:   p.baudrate,
		DataBits:   7,
		StopBits:   1,
		ParityMode: serial.PARITY_EVEN,
	}
	if p.readTimeout > 0 {
		options.MinimumReadSize = 0
		options.InterCharacterTimeout = uint(p.readTimeout / time.Millisecond)
	} else {
		options.MinimumReadSize = 1
	}

	port, err := p.open(options)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", p.port, err)
	}

	p.serialPort = port
	p.reader = bufio.NewReader(port)
	p.pending.Reset()
	return nil
}

// ReadLine returns the next line without its line terminator. When the
// line stays silent for the read timeout it returns an error wrapping
// os.ErrDeadlineExceeded; the partial line is kept for the next call.
func (p *TICReader) ReadLine() (string, error) {
	if p.reader == nil {
		return "", ErrNotConnected
	}

	chunk, err := p.reader.ReadString('\n')
	p.pending.WriteString(chunk)
	if err != nil {
		if errors.Is(err, io.EOF) && p.readTimeout > 0 {
			// A tty with VMIN=0 reports a timed out read as EOF.
			return "", fmt.Errorf("read %s: %w", p.port, os.ErrDeadlineExceeded)
		}
		return "", fmt.Errorf("read %s: %w", p.port, err)
	}

	line := strings.TrimRight(p.pending.String(), "\r\n")
	p.pending.Reset()
	return line, nil
}

func (p *TICReader) Close() error {
	if p.serialPort == nil {
		return nil
	}
	err := p.serialPort.Close()
	p.serialPort = nil
	p.reader = nil
	return err
}

func (p *TICReader) Port() string {
	return p.port
}
