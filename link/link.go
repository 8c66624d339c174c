package link

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State of a Link's connection machine.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// Status classifies the outcome of one exchange cycle. Malformed payloads
// are recoverable and keep the link up; everything below the frame layer
// tears the connection down.
type Status int

const (
	StatusOK Status = iota
	// StatusDropped: frame skipped, cycle continues.
	StatusDropped
	// StatusDown: connection failure, link must reconnect.
	StatusDown
)

// Session supplies the data side of an exchange cycle: what to send and how
// to apply what came back.
type Session interface {
	Outbound() Frame
	Apply(f Frame) Status
}

// Exchange performs one write-then-read cycle on t.
func Exchange(t Transport, s Session, log *logrus.Entry) Status {
	payload, err := EncodeFrame(s.Outbound())
	if err != nil {
		log.Warnf("unable to encode outbound snapshot: %v", err)
		return StatusDropped
	}

	if err := t.Send(payload); err != nil {
		log.Debugf("send failed: %v", err)
		return StatusDown
	}

	raw, err := t.Recv()
	if err != nil {
		log.Debugf("recv failed: %v", err)
		return StatusDown
	}

	frame, err := DecodeFrame(raw)
	if err == ErrEmptyFrame {
		return StatusOK
	}
	if err != nil {
		log.Warnf("received invalid data: %q", raw)
		return StatusDropped
	}

	return s.Apply(frame)
}

// Link runs a self-healing exchange loop over one Transport. Once started it
// reconnects forever; Close is only used on process shutdown.
type Link struct {
	Name string

	transport Transport
	session   Session
	delay     time.Duration

	mu    sync.Mutex
	state State

	stop chan struct{}
	once sync.Once
	log  *logrus.Entry
}

func NewLink(name string, t Transport, s Session) *Link {
	return &Link{
		Name:      name,
		transport: t,
		session:   s,
		delay:     RECONNECT_DELAY,
		stop:      make(chan struct{}),
		log:       logrus.WithField("link", name),
	}
}

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run drives the connection state machine until Close. Every failure path
// funnels back to Connecting after the reconnect delay.
func (l *Link) Run() {
	for {
		select {
		case <-l.stop:
			l.setState(Disconnected)
			return
		default:
		}

		l.setState(Connecting)
		if err := l.transport.Open(); err != nil {
			l.log.Debugf("connection attempt failed: %v", err)
			l.setState(Disconnected)
			l.sleep()
			continue
		}

		l.log.Infof("connected")
		l.setState(Connected)

		for {
			if l.stopped() {
				break
			}
			if status := Exchange(l.transport, l.session, l.log); status == StatusDown {
				break
			}
		}

		l.transport.Close()
		l.setState(Disconnected)
		l.log.Infof("connection lost, retrying in %v", l.delay)
		l.sleep()
	}
}

// Close stops the loop at the next cycle boundary.
func (l *Link) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

func (l *Link) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

func (l *Link) sleep() {
	select {
	case <-l.stop:
	case <-time.After(l.delay):
	}
}
