package link

import (
	"bytes"
	"fmt"

	"go.bug.st/serial"
)

const PERIPHERAL_BAUD = 115200

// SerialTransport frames JSON lines over a tty to one peripheral
// controller.
type SerialTransport struct {
	name string
	mode *serial.Mode
	port serial.Port

	// pending carries bytes read past the last newline into the next Recv.
	pending []byte
}

func NewSerialTransport(name string, baud int) *SerialTransport {
	if baud == 0 {
		baud = PERIPHERAL_BAUD
	}
	return &SerialTransport{
		name: name,
		mode: &serial.Mode{BaudRate: baud},
	}
}

func (t *SerialTransport) Open() (err error) {
	t.port, err = serial.Open(t.name, t.mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.name, err)
	}
	t.pending = nil
	return t.port.SetReadTimeout(SERIAL_TIMEOUT)
}

func (t *SerialTransport) Send(frame []byte) error {
	for len(frame) > 0 {
		n, err := t.port.Write(frame)
		if err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

// Recv reads until the frame terminator. A read that returns no bytes
// within the port timeout is reported as ErrTimeout.
func (t *SerialTransport) Recv() ([]byte, error) {
	buf := make([]byte, 256)
	for {
		if i := bytes.IndexByte(t.pending, '\n'); i >= 0 {
			frame := t.pending[:i+1]
			t.pending = t.pending[i+1:]
			return frame, nil
		}

		n, err := t.port.Read(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrTimeout
		}
		t.pending = append(t.pending, buf[:n]...)
	}
}

func (t *SerialTransport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}
