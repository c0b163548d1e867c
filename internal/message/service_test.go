package message

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/nwells/parley/internal/domain"
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

func newTestService() (*Service, *mockPublisher) {
	pub := &mockPublisher{}
	directory := room.NewDirectory(pub)
	return NewService(directory, NewLog(), pub), pub
}

func TestService_SendToRoom(t *testing.T) {
	svc, pub := newTestService()

	msg, err := svc.Send(context.Background(), "alice-id", "alice", SendRequest{RoomID: "general", Text: "hi"})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "general", msg.RoomID)
	assert.Equal(t, "alice-id", msg.FromUserID)
	assert.Equal(t, "alice", msg.FromName)
	assert.False(t, msg.Read)
	assert.False(t, msg.SentAt.IsZero())

	// Recorded and announced.
	require.Len(t, svc.History("general"), 1)
	announced := pub.byTopic(TopicMessageNew)
	require.Len(t, announced, 1)

	var published domain.Message
	require.NoError(t, json.Unmarshal(announced[0].Payload, &published))
	assert.Equal(t, msg.ID, published.ID)
}

func TestService_SendGeneratesDistinctIDs(t *testing.T) {
	svc, _ := newTestService()

	first, err := svc.Send(context.Background(), "alice-id", "alice", SendRequest{RoomID: "general", Text: "one"})
	require.NoError(t, err)
	second, err := svc.Send(context.Background(), "alice-id", "alice", SendRequest{RoomID: "general", Text: "two"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestService_SendWithoutTargetIsRejected(t *testing.T) {
	svc, pub := newTestService()

	_, err := svc.Send(context.Background(), "alice-id", "alice", SendRequest{Text: "hello?"})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	// No partial side effects: nothing logged, nothing announced.
	assert.Empty(t, svc.All())
	assert.Empty(t, pub.byTopic(TopicMessageNew))
}

func TestService_DirectSendsConvergeToOneRoom(t *testing.T) {
	svc, _ := newTestService()

	// Alice and bob message each other before seeing the other's message.
	fromAlice, err := svc.Send(context.Background(), "alice", "alice", SendRequest{ToUserID: "bob", Text: "hey"})
	require.NoError(t, err)
	fromBob, err := svc.Send(context.Background(), "bob", "bob", SendRequest{ToUserID: "alice", Text: "yo"})
	require.NoError(t, err)

	require.Equal(t, fromAlice.RoomID, fromBob.RoomID)
	assert.Equal(t, room.DMRoomID("alice", "bob"), fromAlice.RoomID)

	history := svc.History(fromAlice.RoomID)
	require.Len(t, history, 2)
	assert.Equal(t, "hey", history[0].Text)
	assert.Equal(t, "yo", history[1].Text)
}

func TestService_DirectSendCreatesDMWithBothMembers(t *testing.T) {
	pub := &mockPublisher{}
	directory := room.NewDirectory(pub)
	svc := NewService(directory, NewLog(), pub)

	msg, err := svc.Send(context.Background(), "alice", "alice", SendRequest{ToUserID: "bob", Text: "hey"})
	require.NoError(t, err)

	assert.Equal(t, "bob", msg.ToUserID)
	assert.Equal(t, []string{"alice", "bob"}, directory.Members(msg.RoomID))
}

func TestService_MarkReadAnnouncesReceipt(t *testing.T) {
	svc, pub := newTestService()

	msg, err := svc.Send(context.Background(), "alice-id", "alice", SendRequest{RoomID: "general", Text: "hi"})
	require.NoError(t, err)

	svc.MarkRead(context.Background(), "bob-id", "general", msg.ID)

	assert.True(t, svc.History("general")[0].Read)
	receipts := pub.byTopic(TopicMessageRead)
	require.Len(t, receipts, 1)

	var ev domain.ReadEvent
	require.NoError(t, json.Unmarshal(receipts[0].Payload, &ev))
	assert.Equal(t, msg.ID, ev.MessageID)
	assert.Equal(t, "bob-id", ev.ReaderID)
}

func TestService_MarkReadTwiceAnnouncesSameState(t *testing.T) {
	svc, pub := newTestService()

	msg, err := svc.Send(context.Background(), "alice-id", "alice", SendRequest{RoomID: "general", Text: "hi"})
	require.NoError(t, err)

	svc.MarkRead(context.Background(), "bob-id", "general", msg.ID)
	svc.MarkRead(context.Background(), "bob-id", "general", msg.ID)

	receipts := pub.byTopic(TopicMessageRead)
	require.Len(t, receipts, 2)
	assert.Equal(t, receipts[0].Payload, receipts[1].Payload)
	assert.True(t, svc.History("general")[0].Read)
}

func TestService_MarkReadUnknownMessageIsSilent(t *testing.T) {
	svc, pub := newTestService()

	svc.MarkRead(context.Background(), "bob-id", "general", "missing")
	svc.MarkRead(context.Background(), "bob-id", "nowhere", "missing")

	assert.Empty(t, pub.byTopic(TopicMessageRead))
}
