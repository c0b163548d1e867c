package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/nwells/parley/internal/auth"
	"github.com/nwells/parley/internal/domain"
	"github.com/nwells/parley/internal/hub"
	"github.com/nwells/parley/internal/message"
	"github.com/nwells/parley/internal/presence"
	"github.com/nwells/parley/internal/pubsub"
	"github.com/nwells/parley/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPublisher implements pubsub.Publisher for testing
type mockPublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) byTopic(topic string) []pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pubsub.Message
	for _, msg := range m.messages {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

type fixture struct {
	pub      *mockPublisher
	hub      *hub.Hub
	presence *presence.Registry
	rooms    *room.Directory
	messages *message.Service
	deps     Deps
}

func newFixture() *fixture {
	pub := &mockPublisher{}
	h := hub.New()
	presenceReg := presence.NewRegistry(pub)
	rooms := room.NewDirectory(pub)
	messages := message.NewService(rooms, message.NewLog(), pub)

	return &fixture{
		pub:      pub,
		hub:      h,
		presence: presenceReg,
		rooms:    rooms,
		messages: messages,
		deps: Deps{
			Presence:        presenceReg,
			Rooms:           rooms,
			Messages:        messages,
			Typing:          NewTypingRelay(pub),
			Hub:             h,
			DefaultRoomID:   "general",
			DefaultRoomName: "General",
		},
	}
}

// connect adds a hub connection and opens an active session on it.
func (f *fixture) connect(t *testing.T, userID, username, connID string) (*Coordinator, *hub.Conn) {
	t.Helper()
	conn := hub.NewConn(connID, userID)
	f.hub.Add(conn)
	c := NewCoordinator(f.deps, auth.Identity{UserID: userID, Username: username}, connID)
	require.NoError(t, c.Open(context.Background()))
	return c, conn
}

// drainFrames decodes every frame currently queued on the connection.
func drainFrames(t *testing.T, conn *hub.Conn) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case payload, ok := <-conn.Outbound():
			if !ok {
				return frames
			}
			var f Frame
			require.NoError(t, json.Unmarshal(payload, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func inbound(t *testing.T, seq int64, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(Frame{Seq: seq, Event: event, Data: raw})
	require.NoError(t, err)
	return payload
}

func TestCoordinator_OpenDeliversSnapshotToConnectionOnly(t *testing.T) {
	f := newFixture()
	_, bobConn := f.connect(t, "u2", "bob", "c2")
	drainFrames(t, bobConn)

	_, aliceConn := f.connect(t, "u1", "alice", "c1")

	frames := drainFrames(t, aliceConn)
	require.Len(t, frames, 1)
	require.Equal(t, EventInit, frames[0].Event)

	var snap struct {
		User     domain.User                 `json:"user"`
		Rooms    []domain.Room               `json:"rooms"`
		Users    []domain.User               `json:"users"`
		Messages map[string][]domain.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(frames[0].Data, &snap))

	assert.Equal(t, "u1", snap.User.ID)
	assert.True(t, snap.User.Online)
	require.Len(t, snap.Rooms, 1)
	assert.Equal(t, "general", snap.Rooms[0].ID)
	assert.ElementsMatch(t, []string{"u1", "u2"}, snap.Rooms[0].Members)
	assert.Len(t, snap.Users, 2)

	// Nothing is pushed to the other connection directly; broadcasts travel
	// through the bus, not through Open.
	assert.Empty(t, drainFrames(t, bobConn))
}

func TestCoordinator_OpenTwiceFails(t *testing.T) {
	f := newFixture()
	c, _ := f.connect(t, "u1", "alice", "c1")
	assert.Error(t, c.Open(context.Background()))
}

func TestCoordinator_SendAcksWithFinalizedMessage(t *testing.T) {
	f := newFixture()
	c, conn := f.connect(t, "u1", "alice", "c1")
	drainFrames(t, conn)

	c.Handle(context.Background(), inbound(t, 7, EventMessageSend, map[string]any{
		"roomId": "general",
		"text":   "hi",
	}))

	frames := drainFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, EventAck, frames[0].Event)
	assert.Equal(t, int64(7), frames[0].Seq)

	var result struct {
		OK      bool            `json:"ok"`
		Message *domain.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(frames[0].Data, &result))
	assert.True(t, result.OK)
	require.NotNil(t, result.Message)
	assert.NotEmpty(t, result.Message.ID)
	assert.Equal(t, "u1", result.Message.FromUserID)
	assert.Equal(t, "alice", result.Message.FromName)
	assert.False(t, result.Message.Read)

	require.Len(t, f.messages.History("general"), 1)
}

func TestCoordinator_SendWithoutTargetHasNoSideEffects(t *testing.T) {
	f := newFixture()
	c, conn := f.connect(t, "u1", "alice", "c1")
	drainFrames(t, conn)

	c.Handle(context.Background(), inbound(t, 3, EventMessageSend, map[string]any{
		"text": "to nowhere",
	}))

	frames := drainFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, EventError, frames[0].Event)
	assert.Equal(t, int64(3), frames[0].Seq)

	assert.Empty(t, f.messages.All())
	assert.Empty(t, f.pub.byTopic(message.TopicMessageNew))
}

func TestCoordinator_JoinAndLeaveAck(t *testing.T) {
	f := newFixture()
	c, conn := f.connect(t, "u1", "alice", "c1")
	drainFrames(t, conn)

	c.Handle(context.Background(), inbound(t, 1, EventRoomJoin, map[string]any{"roomId": "lobby"}))

	frames := drainFrames(t, conn)
	require.Len(t, frames, 1)
	var joinResult struct {
		OK   bool         `json:"ok"`
		Room *domain.Room `json:"room"`
	}
	require.NoError(t, json.Unmarshal(frames[0].Data, &joinResult))
	assert.True(t, joinResult.OK)
	require.NotNil(t, joinResult.Room)
	assert.Equal(t, []string{"u1"}, joinResult.Room.Members)

	c.Handle(context.Background(), inbound(t, 2, EventRoomLeave, map[string]any{"roomId": "lobby"}))

	frames = drainFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, EventAck, frames[0].Event)
	assert.Empty(t, f.rooms.Members("lobby"))
}

func TestCoordinator_UnknownEventErrors(t *testing.T) {
	f := newFixture()
	c, conn := f.connect(t, "u1", "alice", "c1")
	drainFrames(t, conn)

	c.Handle(context.Background(), inbound(t, 9, "room:explode", map[string]any{}))

	frames := drainFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, EventError, frames[0].Event)
	assert.Equal(t, int64(9), frames[0].Seq)
}

func TestCoordinator_CloseKeepsRoomMembership(t *testing.T) {
	f := newFixture()
	c, conn := f.connect(t, "u1", "alice", "c1")
	drainFrames(t, conn)

	c.Handle(context.Background(), inbound(t, 1, EventRoomJoin, map[string]any{"roomId": "lobby"}))
	c.Close(context.Background())

	// Disconnecting is not leaving: presence drops, membership stays.
	assert.False(t, f.presence.Online("u1"))
	assert.Equal(t, []string{"u1"}, f.rooms.Members("lobby"))
	assert.Equal(t, []string{"u1"}, f.rooms.Members("general"))

	// Close is idempotent.
	c.Close(context.Background())
	assert.Equal(t, StateClosed, c.State())
}

func TestCoordinator_HandleAfterCloseIsDropped(t *testing.T) {
	f := newFixture()
	c, conn := f.connect(t, "u1", "alice", "c1")
	drainFrames(t, conn)
	c.Close(context.Background())

	c.Handle(context.Background(), inbound(t, 1, EventMessageSend, map[string]any{
		"roomId": "general",
		"text":   "too late",
	}))

	assert.Empty(t, f.messages.History("general"))
}

func TestCoordinator_ReadReceiptRouted(t *testing.T) {
	f := newFixture()
	c, conn := f.connect(t, "u1", "alice", "c1")
	drainFrames(t, conn)

	msg, err := f.messages.Send(context.Background(), "u2", "bob", message.SendRequest{RoomID: "general", Text: "hi"})
	require.NoError(t, err)

	c.Handle(context.Background(), inbound(t, 0, EventMessageRead, map[string]any{
		"roomId":    "general",
		"messageId": msg.ID,
	}))

	assert.True(t, f.messages.History("general")[0].Read)
	// No ack for read receipts.
	assert.Empty(t, drainFrames(t, conn))
}

func TestCoordinator_MalformedFrame(t *testing.T) {
	f := newFixture()
	c, conn := f.connect(t, "u1", "alice", "c1")
	drainFrames(t, conn)

	c.Handle(context.Background(), []byte("{not json"))

	frames := drainFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, EventError, frames[0].Event)
}
