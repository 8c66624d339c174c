// Package dispatch owns the vehicle-side data plumbing: it accepts the
// single control-station connection and runs one self-healing serial link
// per peripheral controller, all sharing one store.
package dispatch

import (
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/marinerlabs/rovlink/link"
	"github.com/marinerlabs/rovlink/store"
)

type Server struct {
	store *store.Store
	ln    net.Listener
	links []*link.Link

	stop chan struct{}
	once sync.Once
	log  *logrus.Entry
}

// NewServer binds the control-station listener and prepares the peripheral
// links. A bind failure is fatal: without its listener the daemon has no
// useful degraded mode.
func NewServer(st *store.Store, cfg Config) (s *Server, err error) {
	s = &Server{
		store: st,
		stop:  make(chan struct{}),
		log:   logrus.WithField("component", "dispatch"),
	}

	s.ln, err = net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to bind socket to the given address %s: %w", cfg.Listen, err)
	}

	for _, p := range cfg.Peripherals {
		transport := link.NewSerialTransport(p.Port, p.Baud)
		session := link.NewPeripheral(st, p.ID)
		s.links = append(s.links, link.NewLink(p.Port, transport, session))
	}

	return s, nil
}

// Run starts the accept loop and every peripheral link, each on its own
// goroutine, and returns. The server never blocks a peripheral link and
// vice versa; the store is the only shared resource.
func (s *Server) Run() {
	for _, l := range s.links {
		go l.Run()
	}
	go s.acceptLoop()
}

// Links exposes the peripheral links for status reporting.
func (s *Server) Links() []*link.Link {
	return s.links
}

// Addr reports the bound control-station address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) acceptLoop() {
	for {
		s.log.Infof("%s is waiting for a client...", s.ln.Addr())

		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			s.log.Warnf("accept failed: %v", err)
			continue
		}

		s.log.Infof("client with address %s connected", conn.RemoteAddr())
		s.serve(conn)

		// Fail-safe: the station is gone, idle every actuator before
		// listening again.
		s.store.SetDefaults()
		s.log.Infof("connection from %s closed, actuators reset", conn.RemoteAddr())
	}
}

// serve exchanges frames with the connected station until the connection
// dies. One client at a time; the loop is the sole re-accept mechanism.
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	transport := link.NewConnTransport(conn, link.SOCKET_TIMEOUT)
	session := &relaySession{store: s.store}

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if status := link.Exchange(transport, session, s.log); status == link.StatusDown {
			return
		}
	}
}

// Close tears the whole server down, aggregating every shutdown failure.
func (s *Server) Close() error {
	var result *multierror.Error

	s.once.Do(func() { close(s.stop) })
	if err := s.ln.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	for _, l := range s.links {
		if err := l.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// relaySession moves station commands into the surface partition and ships
// the surface snapshot back, one of each per cycle.
type relaySession struct {
	store *store.Store
}

func (r *relaySession) Outbound() link.Frame {
	return link.Frame(r.store.Get(store.Surface))
}

func (r *relaySession) Apply(f link.Frame) link.Status {
	r.store.SetMany(store.Surface, f)
	return link.StatusOK
}
