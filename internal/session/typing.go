package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nwells/parley/internal/domain"
	"github.com/nwells/parley/internal/pubsub"
)

// TopicTyping carries domain.TypingEvent payloads. The signal is lossy and
// at-most-once: no ack, no retry, the latest state always wins.
const TopicTyping = "chat.typing"

type typingState struct {
	roomID   string
	isTyping bool
}

// TypingRelay holds the ephemeral typing state and announces changes to the
// other members of the room. Nothing here is persisted or logged as history.
type TypingRelay struct {
	mu        sync.Mutex
	state     map[string]typingState
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewTypingRelay creates an empty relay.
func NewTypingRelay(publisher pubsub.Publisher) *TypingRelay {
	return &TypingRelay{
		state:     make(map[string]typingState),
		publisher: publisher,
		logger:    slog.Default().With("service", "typing"),
	}
}

// Set overwrites the user's typing state and announces it. Every signal is
// published, including repeats: the UI state is level-triggered, so a false
// must remain deliverable even after a lost true.
func (t *TypingRelay) Set(ctx context.Context, userID, username, roomID string, isTyping bool) {
	t.mu.Lock()
	t.state[userID] = typingState{roomID: roomID, isTyping: isTyping}
	t.mu.Unlock()

	payload, err := json.Marshal(domain.TypingEvent{
		RoomID:   roomID,
		UserID:   userID,
		Username: username,
		IsTyping: isTyping,
	})
	if err != nil {
		t.logger.Error("Failed to marshal typing event", "error", err)
		return
	}
	msg := pubsub.Message{Topic: TopicTyping, UserID: userID, Payload: payload}
	if err := t.publisher.Publish(ctx, msg); err != nil {
		t.logger.Error("Failed to publish typing event", "error", err, "user_id", userID)
	}
}

// State returns the user's last signalled room and typing flag.
func (t *TypingRelay) State(userID string) (roomID string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state[userID]
	return s.roomID, s.isTyping
}
