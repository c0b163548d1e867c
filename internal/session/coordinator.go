package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nwells/parley/internal/auth"
	"github.com/nwells/parley/internal/domain"
	"github.com/nwells/parley/internal/hub"
	"github.com/nwells/parley/internal/message"
	"github.com/nwells/parley/internal/presence"
	"github.com/nwells/parley/internal/room"
)

// State is the lifecycle position of a connection's session.
type State int

const (
	StateUnauthenticated State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Deps bundles the coordination components a session routes into.
type Deps struct {
	Presence *presence.Registry
	Rooms    *room.Directory
	Messages *message.Service
	Typing   *TypingRelay
	Hub      *hub.Hub

	// DefaultRoomID is joined by every session on open.
	DefaultRoomID string
	// DefaultRoomName names the default room when it is first created.
	DefaultRoomName string
}

// snapshot is the init payload sent once to a freshly opened session.
type snapshot struct {
	User     domain.User                 `json:"user"`
	Rooms    []domain.Room               `json:"rooms"`
	Users    []domain.User               `json:"users"`
	Messages map[string][]domain.Message `json:"messages"`
}

type ackResult struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Room    *domain.Room    `json:"room,omitempty"`
	Message *domain.Message `json:"message,omitempty"`
}

// Coordinator is the per-connection controller. It carries the authenticated
// identity, routes each inbound frame to the owning component exactly once in
// the connection's own order, and tears down presence on close. Room
// membership survives a close; disconnecting is not leaving.
type Coordinator struct {
	deps     Deps
	identity auth.Identity
	connID   string
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

// NewCoordinator creates a session for an authenticated connection.
// Authentication happens before construction: a coordinator never exists for
// a connection whose credential was refused.
func NewCoordinator(deps Deps, identity auth.Identity, connID string) *Coordinator {
	return &Coordinator{
		deps:     deps,
		identity: identity,
		connID:   connID,
		state:    StateUnauthenticated,
		logger: slog.Default().With(
			"service", "session",
			"user_id", identity.UserID,
			"conn_id", connID,
		),
	}
}

// State returns the session's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open activates the session: registers presence, joins the default room, and
// delivers the initial snapshot to this connection only. The connection must
// already be added to the hub so the session receives its own presence
// broadcast.
func (c *Coordinator) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUnauthenticated {
		c.mu.Unlock()
		return fmt.Errorf("session already %v", c.state)
	}
	c.state = StateActive
	c.mu.Unlock()

	roster := c.deps.Presence.Register(ctx, c.identity.UserID, c.identity.Username, c.connID)
	c.deps.Rooms.Ensure(c.deps.DefaultRoomID, c.deps.DefaultRoomName)
	c.deps.Rooms.Join(ctx, c.deps.DefaultRoomID, c.identity.UserID)

	init := snapshot{
		User:     domain.User{ID: c.identity.UserID, Username: c.identity.Username, Online: true},
		Rooms:    c.deps.Rooms.Rooms(),
		Users:    roster,
		Messages: c.deps.Messages.All(),
	}
	c.deps.Hub.ToConn(c.connID, encodeFrame(EventInit, 0, init))

	c.logger.Info("Session opened")
	return nil
}

// Handle routes one inbound frame. Frames arriving on a closed session are
// dropped; within an active session each frame mutates state exactly once,
// in the order the connection sent them.
func (c *Coordinator) Handle(ctx context.Context, raw []byte) {
	if c.State() != StateActive {
		return
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.logger.Warn("Dropping malformed frame", "error", err)
		c.deps.Hub.ToConn(c.connID, encodeFrame(EventError, 0, ackResult{Error: "malformed frame"}))
		return
	}

	switch frame.Event {
	case EventRoomJoin:
		c.handleJoin(ctx, frame)
	case EventRoomLeave:
		c.handleLeave(ctx, frame)
	case EventMessageSend:
		c.handleSend(ctx, frame)
	case EventTyping:
		c.handleTyping(ctx, frame)
	case EventMessageRead:
		c.handleRead(ctx, frame)
	default:
		c.logger.Warn("Unknown event", "event", frame.Event)
		c.deps.Hub.ToConn(c.connID, encodeFrame(EventError, frame.Seq, ackResult{Error: "unknown event: " + frame.Event}))
	}
}

// Close tears the session down. Presence is released (a stale release from a
// superseded connection is ignored by the registry); room membership is kept.
// Close is idempotent.
func (c *Coordinator) Close(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	wasActive := c.state == StateActive
	c.state = StateClosed
	c.mu.Unlock()

	if wasActive {
		c.deps.Presence.Release(ctx, c.identity.UserID, c.connID)
	}
	c.logger.Info("Session closed")
}

func (c *Coordinator) handleJoin(ctx context.Context, frame Frame) {
	var req struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &req); err != nil || req.RoomID == "" {
		c.ack(frame.Seq, ackResult{Error: "roomId required"})
		return
	}
	rm := c.deps.Rooms.Join(ctx, req.RoomID, c.identity.UserID)
	c.ack(frame.Seq, ackResult{OK: true, Room: &rm})
}

func (c *Coordinator) handleLeave(ctx context.Context, frame Frame) {
	var req struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &req); err != nil || req.RoomID == "" {
		c.ack(frame.Seq, ackResult{Error: "roomId required"})
		return
	}
	c.deps.Rooms.Leave(ctx, req.RoomID, c.identity.UserID)
	c.ack(frame.Seq, ackResult{OK: true})
}

func (c *Coordinator) handleSend(ctx context.Context, frame Frame) {
	var req message.SendRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		c.ack(frame.Seq, ackResult{Error: "malformed send request"})
		return
	}

	msg, err := c.deps.Messages.Send(ctx, c.identity.UserID, c.identity.Username, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.ack(frame.Seq, ackResult{Error: "roomId or toUserId required"})
			return
		}
		c.logger.Error("Send failed", "error", err)
		c.ack(frame.Seq, ackResult{Error: "send failed"})
		return
	}
	c.ack(frame.Seq, ackResult{OK: true, Message: &msg})
}

func (c *Coordinator) handleTyping(ctx context.Context, frame Frame) {
	var req struct {
		RoomID   string `json:"roomId"`
		IsTyping bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(frame.Data, &req); err != nil || req.RoomID == "" {
		// Typing is lossy and unacknowledged; a bad signal is just dropped.
		return
	}
	c.deps.Typing.Set(ctx, c.identity.UserID, c.identity.Username, req.RoomID, req.IsTyping)
}

func (c *Coordinator) handleRead(ctx context.Context, frame Frame) {
	var req struct {
		RoomID    string `json:"roomId"`
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return
	}
	c.deps.Messages.MarkRead(ctx, c.identity.UserID, req.RoomID, req.MessageID)
}

func (c *Coordinator) ack(seq int64, result ackResult) {
	event := EventAck
	if result.Error != "" {
		event = EventError
	}
	c.deps.Hub.ToConn(c.connID, encodeFrame(event, seq, result))
}
