// Package video moves camera frames from the vehicle to the surface on
// dedicated TCP sockets, one per camera, outside the control link. A frame
// is an opaque encoded blob followed by a fixed end-of-frame marker and is
// acknowledged by one reply message before the next frame is sent.
package video

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	STREAM_TIMEOUT  = 3 * time.Second
	RECONNECT_DELAY = time.Second

	// ackLimit bounds the acknowledgement read; the reply content is
	// irrelevant, only its arrival matters.
	ackLimit = 128
)

// endPayload marks the end of one frame on the wire.
var endPayload = []byte("Frame was successfully sent")

var ackPayload = []byte("ACK")

// FrameSource produces encoded frames. The camera driver implementing it
// lives outside this package.
type FrameSource interface {
	NextFrame() ([]byte, error)
}

// Stream serves one camera to at most one client at a time, re-accepting
// forever after a client drops.
type Stream struct {
	src FrameSource
	ln  net.Listener

	stop chan struct{}
	once sync.Once
	log  *logrus.Entry
}

// NewStream binds the camera's socket. A bind failure at startup is fatal
// for the same reason the dispatch listener's is.
func NewStream(src FrameSource, addr string) (v *Stream, err error) {
	v = &Stream{
		src:  src,
		stop: make(chan struct{}),
		log:  logrus.WithField("stream", addr),
	}

	v.ln, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind video socket to %s: %w", addr, err)
	}
	v.log = logrus.WithField("stream", v.ln.Addr().String())

	return v, nil
}

func (v *Stream) Addr() net.Addr {
	return v.ln.Addr()
}

// Run accepts and serves clients until Close.
func (v *Stream) Run() {
	for {
		v.log.Info("video stream is waiting for a client...")

		conn, err := v.ln.Accept()
		if err != nil {
			select {
			case <-v.stop:
				return
			default:
			}
			v.log.Warnf("accept failed: %v", err)
			continue
		}

		v.log.Infof("client %s connected to video stream", conn.RemoteAddr())
		v.serve(conn)
		conn.Close()
		v.log.Infof("video stream to %s closed", conn.RemoteAddr())
	}
}

func (v *Stream) serve(conn net.Conn) {
	ack := make([]byte, ackLimit)
	for {
		select {
		case <-v.stop:
			return
		default:
		}

		frame, err := v.src.NextFrame()
		if err != nil {
			v.log.Debugf("dropping frame: %v", err)
			time.Sleep(RECONNECT_DELAY)
			continue
		}
		if frame == nil {
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(STREAM_TIMEOUT))
		if _, err := conn.Write(frame); err != nil {
			return
		}
		if _, err := conn.Write(endPayload); err != nil {
			return
		}

		// Wait for the acknowledgement before the next frame.
		conn.SetReadDeadline(time.Now().Add(STREAM_TIMEOUT))
		if _, err := conn.Read(ack); err != nil {
			return
		}
	}
}

func (v *Stream) Close() error {
	v.once.Do(func() { close(v.stop) })
	return v.ln.Close()
}
