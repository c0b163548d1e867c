package hub

import (
	"log/slog"
	"sync"
)

// Conn represents one established client connection the hub can deliver to.
type Conn struct {
	// ID is the unique connection id, assigned at accept time.
	ID string
	// UserID is the authenticated user behind the connection.
	UserID string

	send chan []byte
	mu   sync.RWMutex
}

// NewConn creates a connection handle with a buffered outbound queue.
func NewConn(id, userID string) *Conn {
	return &Conn{
		ID:     id,
		UserID: userID,
		send:   make(chan []byte, 256),
	}
}

// Outbound returns the channel the connection's write pump drains.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// deliver queues a payload without blocking. A full buffer means the client
// is lagging or gone; the payload is dropped rather than stalling the hub.
func (c *Conn) deliver(payload []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		slog.Warn("Connection send buffer full, dropping payload", "conn_id", c.ID, "user_id", c.UserID)
	}
}

// close shuts the outbound queue exactly once.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// Hub is the broadcaster: it tracks every live connection and delivers an
// encoded event to one connection, to the connections of a set of users, or
// to everyone. Audience selection is the caller's concern; the hub only
// routes.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	byUser map[string]map[string]*Conn
	logger *slog.Logger
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		conns:  make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
		logger: slog.Default().With("service", "hub"),
	}
}

// Add registers a connection with the hub.
func (h *Hub) Add(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[conn.ID] = conn
	if h.byUser[conn.UserID] == nil {
		h.byUser[conn.UserID] = make(map[string]*Conn)
	}
	h.byUser[conn.UserID][conn.ID] = conn

	h.logger.Debug("Connection added", "conn_id", conn.ID, "user_id", conn.UserID, "total", len(h.conns))
}

// Remove unregisters a connection and closes its outbound queue. Removing an
// unknown connection is a no-op.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	if userConns := h.byUser[conn.UserID]; userConns != nil {
		delete(userConns, connID)
		if len(userConns) == 0 {
			delete(h.byUser, conn.UserID)
		}
	}
	conn.close()

	h.logger.Debug("Connection removed", "conn_id", connID, "user_id", conn.UserID, "total", len(h.conns))
}

// ToConn delivers a payload to one specific connection.
func (h *Hub) ToConn(connID string, payload []byte) {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if ok {
		conn.deliver(payload)
	}
}

// ToUsers delivers a payload to every connection of the given users, skipping
// the excluded user id (empty string excludes nobody).
func (h *Hub) ToUsers(userIDs []string, exceptUserID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range userIDs {
		if userID == exceptUserID {
			continue
		}
		for _, conn := range h.byUser[userID] {
			conn.deliver(payload)
		}
	}
}

// ToAll delivers a payload to every live connection.
func (h *Hub) ToAll(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.conns {
		conn.deliver(payload)
	}
}
