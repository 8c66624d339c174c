// Package surface carries the control-station side of the link: the
// connection to the vehicle and the mapping from operator input to actuator
// values. The GUI and the physical gamepad driver are external; both talk to
// this package through the shared store and InputState.
package surface

import (
	"github.com/marinerlabs/rovlink/link"
	"github.com/marinerlabs/rovlink/store"
)

// Connection maintains the TCP exchange with the vehicle. Each cycle ships
// the safeguarded transmission snapshot up and applies the returned
// telemetry as a vehicle-origin write.
type Connection struct {
	link *link.Link
}

func NewConnection(st *store.Store, addr string) *Connection {
	transport := link.NewSocketTransport(addr, link.SOCKET_TIMEOUT)
	session := &stationSession{store: st}
	return &Connection{
		link: link.NewLink("vehicle", transport, session),
	}
}

// Connect starts the connection loop without blocking the caller. The link
// reconnects forever.
func (c *Connection) Connect() {
	go c.link.Run()
}

func (c *Connection) State() link.State {
	return c.link.State()
}

func (c *Connection) Close() error {
	return c.link.Close()
}

type stationSession struct {
	store *store.Store
}

func (s *stationSession) Outbound() link.Frame {
	return link.Frame(s.store.GetTransmit())
}

func (s *stationSession) Apply(f link.Frame) link.Status {
	s.store.SetMany(store.Vehicle, f)
	return link.StatusOK
}
