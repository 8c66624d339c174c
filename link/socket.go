package link

import (
	"bufio"
	"io"
	"net"
	"time"
)

// SocketTransport dials one TCP counterpart and frames JSON lines with
// per-operation deadlines.
type SocketTransport struct {
	addr    string
	timeout time.Duration

	conn   net.Conn
	reader *bufio.Reader
}

func NewSocketTransport(addr string, timeout time.Duration) *SocketTransport {
	if timeout == 0 {
		timeout = SOCKET_TIMEOUT
	}
	return &SocketTransport{addr: addr, timeout: timeout}
}

func (t *SocketTransport) Open() (err error) {
	t.conn, err = net.DialTimeout("tcp", t.addr, t.timeout)
	if err != nil {
		return
	}
	t.reader = bufio.NewReader(t.conn)
	return
}

func (t *SocketTransport) Send(frame []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	_, err := t.conn.Write(frame)
	return wireError(err)
}

func (t *SocketTransport) Recv() ([]byte, error) {
	t.conn.SetReadDeadline(time.Now().Add(t.timeout))
	frame, err := t.reader.ReadBytes('\n')
	if err != nil {
		return nil, wireError(err)
	}
	return frame, nil
}

func (t *SocketTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	return err
}

// ConnTransport wraps an already-accepted connection, for the server side of
// the control-station link. Open is a no-op; reconnection happens by
// re-accepting, not by redialling.
type ConnTransport struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

func NewConnTransport(conn net.Conn, timeout time.Duration) *ConnTransport {
	if timeout == 0 {
		timeout = SOCKET_TIMEOUT
	}
	return &ConnTransport{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
	}
}

func (t *ConnTransport) Open() error { return nil }

func (t *ConnTransport) Send(frame []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	_, err := t.conn.Write(frame)
	return wireError(err)
}

func (t *ConnTransport) Recv() ([]byte, error) {
	t.conn.SetReadDeadline(time.Now().Add(t.timeout))
	frame, err := t.reader.ReadBytes('\n')
	if err != nil {
		return nil, wireError(err)
	}
	return frame, nil
}

func (t *ConnTransport) Close() error { return t.conn.Close() }

// wireError folds the zoo of socket failures into the link taxonomy: a
// deadline expiry becomes ErrTimeout, a peer close becomes ErrClosed. Both
// are fatal for the current connection.
func wireError(err error) error {
	if err == nil {
		return nil
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return ErrTimeout
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrClosed
	}
	return err
}
