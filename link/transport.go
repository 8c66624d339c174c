// Package link implements the resilient point-to-point channels between the
// shared store and its physical counterparts: serial lines to the peripheral
// controllers and the TCP link between surface and vehicle. A Link owns the
// reconnect/backoff state machine; Transports own the bytes.
package link

import (
	"errors"
	"time"
)

const (
	// RECONNECT_DELAY offloads some computing power between attempts.
	RECONNECT_DELAY = time.Second

	// SERIAL_TIMEOUT bounds one serial read or write.
	SERIAL_TIMEOUT = time.Second

	// SOCKET_TIMEOUT bounds one socket operation, dial included.
	SOCKET_TIMEOUT = 3 * time.Second
)

var (
	// ErrTimeout marks an I/O call that expired without moving a frame.
	// Treated as fatal: the link is torn down and reconnected.
	ErrTimeout = errors.New("link timed out")

	// ErrClosed marks a zero-byte read or a peer reset.
	ErrClosed = errors.New("link closed by peer")
)

// Transport is one physical ordered byte-stream connection to exactly one
// counterpart. Implementations carry newline-terminated frames and must be
// reopenable after Close.
type Transport interface {
	Open() error
	Send(frame []byte) error
	Recv() ([]byte, error)
	Close() error
}
