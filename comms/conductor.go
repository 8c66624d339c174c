// Package comms exposes the vehicle state to browser dashboards over
// websockets and accepts ad hoc commands from them. It sits beside the
// control-station link and never replaces it.
package comms

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/marinerlabs/rovlink/store"
)

// FRAMERATE paces the state broadcast to clients.
const FRAMERATE = 10

// Cmd is one dashboard command.
type Cmd struct {
	Cmd   string
	Name  string
	Value float64
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conductor owns the websocket client registry.
type Conductor struct {
	store *store.Store

	mu      sync.Mutex
	clients []*websocket.Conn

	log *logrus.Entry
}

func NewConductor(st *store.Store) *Conductor {
	return &Conductor{
		store: st,
		log:   logrus.WithField("component", "conductor"),
	}
}

// StateHandler upgrades the request and keeps the connection registered
// until the client goes away.
func (c *Conductor) StateHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	c.mu.Lock()
	c.clients = append(c.clients, conn)
	c.mu.Unlock()
	c.log.Infof("dashboard client %s connected", conn.RemoteAddr())

	go c.readCommands(conn)
}

func (c *Conductor) readCommands(conn *websocket.Conn) {
	defer c.remove(conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		// Replies share the connection with the broadcast loop, so bad
		// commands are logged rather than answered.
		var cmd Cmd
		if err := json.Unmarshal(msg, &cmd); err != nil {
			c.log.Warnf("received invalid command: %q", msg)
			continue
		}
		c.ProcessCommand(cmd)
	}
}

func (c *Conductor) ProcessCommand(cmd Cmd) {
	switch cmd.Cmd {
	case "set":
		c.store.Set(store.Surface, cmd.Name, cmd.Value)

	case "reset":
		c.store.SetDefaults()

	default:
		c.log.Warnf("unable to process command %v", cmd)
	}
}

// UpdateClients broadcasts the surface snapshot to every client forever.
func (c *Conductor) UpdateClients() {
	for {
		state := c.store.Get(store.Surface)
		msg, err := json.Marshal(state)
		if err != nil {
			c.log.Errorf("failed to marshal state: %v", err)
			continue
		}

		c.mu.Lock()
		clients := make([]*websocket.Conn, len(c.clients))
		copy(clients, c.clients)
		c.mu.Unlock()

		for _, conn := range clients {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.remove(conn)
			}
		}

		time.Sleep(time.Second / FRAMERATE)
	}
}

func (c *Conductor) remove(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cl := range c.clients {
		if cl == conn {
			c.clients = append(c.clients[:i], c.clients[i+1:]...)
			return
		}
	}
}
