package video

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	// FRAME_TTL discards a frame that was never consumed, so a stalled
	// consumer always gets fresh footage when it comes back.
	FRAME_TTL = time.Second

	latestKey = "latest"
)

// Receiver pulls frames from one Stream, keeping only the newest frame.
// It reconnects forever until Close.
type Receiver struct {
	addr   string
	frames *cache.Cache

	stop chan struct{}
	once sync.Once
	log  *logrus.Entry
}

func NewReceiver(addr string) *Receiver {
	return &Receiver{
		addr:   addr,
		frames: cache.New(FRAME_TTL, FRAME_TTL),
		stop:   make(chan struct{}),
		log:    logrus.WithField("stream", addr),
	}
}

// Frame returns the most recent frame, or nil when none has arrived within
// the last FRAME_TTL.
func (r *Receiver) Frame() []byte {
	if f, ok := r.frames.Get(latestKey); ok {
		return f.([]byte)
	}
	return nil
}

// Run dials the stream and consumes frames until Close, retrying the
// connection after RECONNECT_DELAY.
func (r *Receiver) Run() {
	for {
		conn, err := net.DialTimeout("tcp", r.addr, STREAM_TIMEOUT)
		if err != nil {
			r.log.Debugf("video stream unavailable: %v", err)
			if !r.sleep() {
				return
			}
			continue
		}

		r.log.Info("connected to video stream")
		r.consume(conn)
		conn.Close()

		if !r.sleep() {
			return
		}
	}
}

func (r *Receiver) consume(conn net.Conn) {
	var frame bytes.Buffer
	chunk := make([]byte, 4096)

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(STREAM_TIMEOUT))
		n, err := conn.Read(chunk)
		if err != nil {
			r.log.Warnf("video stream read failed: %v", err)
			return
		}
		frame.Write(chunk[:n])

		// The marker may straddle reads, so always search the
		// accumulated buffer rather than the chunk.
		if i := bytes.Index(frame.Bytes(), endPayload); i >= 0 {
			data := make([]byte, i)
			copy(data, frame.Bytes()[:i])
			r.frames.Set(latestKey, data, cache.DefaultExpiration)

			rest := frame.Bytes()[i+len(endPayload):]
			remainder := make([]byte, len(rest))
			copy(remainder, rest)
			frame.Reset()
			frame.Write(remainder)

			conn.SetWriteDeadline(time.Now().Add(STREAM_TIMEOUT))
			if _, err := conn.Write(ackPayload); err != nil {
				r.log.Warnf("video stream ack failed: %v", err)
				return
			}
		}
	}
}

func (r *Receiver) sleep() bool {
	select {
	case <-r.stop:
		return false
	case <-time.After(RECONNECT_DELAY):
		return true
	}
}

func (r *Receiver) Close() error {
	r.once.Do(func() { close(r.stop) })
	return nil
}
