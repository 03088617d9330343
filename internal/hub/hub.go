package hub

import (
	"sync"

	pkglog "github.com/nytron88/streamix-sub000/pkg/log"
)

// Hub is the process-local connection and room registry. A room's
// membership count decides whether the gateway must hold the matching
// pub/sub topic subscription: the caller is told when a join brings a
// room from empty to occupied and when a leave empties it.
//
// All mutations and the relay path synchronize on one mutex so a join's
// count change can never race a concurrent broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds a connection to the registry.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnID, c.ID).Msg("client registered")
}

// Unregister removes a connection and its room memberships. It returns
// the rooms whose membership dropped to zero so the caller can tear down
// their topic subscriptions.
func (h *Hub) Unregister(c *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return nil
	}
	delete(h.clients, c.ID)

	var emptied []string
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, room)
				emptied = append(emptied, room)
			}
		}
	}
	c.rooms = make(map[string]struct{})

	c.closeSend()

	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnID, c.ID).Msg("client unregistered")
	return emptied
}

// Join adds the connection to a room. Joining a room twice is a no-op.
// first reports a 0→1 membership transition.
func (h *Hub) Join(c *Client, room string) (first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := c.rooms[room]; ok {
		return false
	}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
		first = true
	}
	members[c.ID] = c
	c.rooms[room] = struct{}{}

	l := pkglog.L()
	l.Info().Str(pkglog.FieldConnID, c.ID).Str(pkglog.FieldRoom, room).Msg("client joined room")
	return first
}

// Leave removes the connection from a room. Leaving a room the
// connection is not in is a no-op. last reports a 1→0 transition.
func (h *Hub) Leave(c *Client, room string) (last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := c.rooms[room]; !ok {
		return false
	}
	delete(c.rooms, room)

	if members, ok := h.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
			last = true
		}
	}

	l := pkglog.L()
	l.Info().Str(pkglog.FieldConnID, c.ID).Str(pkglog.FieldRoom, room).Msg("client left room")
	return last
}

// Broadcast forwards raw bytes to every connection currently joined to
// the room, in the order this process received them. A connection whose
// send buffer is full misses the message; the durable log is the backstop.
func (h *Hub) Broadcast(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.rooms[room] {
		c.enqueue(data)
	}
}

// Get returns the registered client with the given id, or nil.
func (h *Hub) Get(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

// RoomCount returns the current membership count of a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms returns the rooms that currently have at least one member.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.rooms))
	for room := range h.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// CloseAll disconnects every client. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		c.closeSend()
		if c.Conn != nil {
			c.Conn.Close()
		}
		delete(h.clients, id)
	}
	h.rooms = make(map[string]map[string]*Client)
}
