package message

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nwells/parley/internal/domain"
	"github.com/nwells/parley/internal/pubsub"
	"github.com/nwells/parley/internal/room"
)

// SendRequest names the target of a send: an explicit room, or a recipient
// for direct addressing. Exactly one must be set.
type SendRequest struct {
	RoomID   string `json:"roomId,omitempty"`
	ToUserID string `json:"toUserId,omitempty"`
	Text     string `json:"text"`
}

// Service implements the message send protocol and read-receipt tracking on
// top of the log. Accepted messages are appended first, then announced on the
// bus; a rejected request has no side effects at all.
type Service struct {
	directory *room.Directory
	log       *Log
	publisher pubsub.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the message service.
func NewService(directory *room.Directory, log *Log, publisher pubsub.Publisher) *Service {
	return &Service{
		directory: directory,
		log:       log,
		publisher: publisher,
		logger:    slog.Default().With("service", "messages"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Send resolves the target room, records the message, and announces it.
// A request naming neither a room nor a recipient is rejected with
// domain.ErrInvalidRequest before anything is mutated. The returned message
// carries the generated id and timestamp for the sender's ack.
func (s *Service) Send(ctx context.Context, senderID, senderName string, req SendRequest) (domain.Message, error) {
	if req.RoomID == "" && req.ToUserID == "" {
		return domain.Message{}, domain.ErrInvalidRequest
	}

	msg := domain.Message{
		ID:         uuid.NewString(),
		FromUserID: senderID,
		FromName:   senderName,
		Text:       req.Text,
		SentAt:     s.now(),
	}

	if req.ToUserID != "" {
		dm := s.directory.EnsureDM(ctx, senderID, req.ToUserID)
		msg.RoomID = dm.ID
		msg.ToUserID = req.ToUserID
	} else {
		msg.RoomID = req.RoomID
	}

	s.log.Append(msg)
	s.logger.Debug("Message recorded", "message_id", msg.ID, "room_id", msg.RoomID, "from", senderID)

	s.announce(ctx, TopicMessageNew, senderID, msg)
	return msg, nil
}

// MarkRead sets the read flag on the identified message and announces the
// receipt to the room. A message id not present in that room's log is a
// silent no-op; re-marking an already-read message re-announces the same
// state.
func (s *Service) MarkRead(ctx context.Context, readerID, roomID, messageID string) {
	if !s.log.MarkRead(roomID, messageID) {
		s.logger.Debug("Ignoring receipt for unknown message", "room_id", roomID, "message_id", messageID)
		return
	}

	s.announce(ctx, TopicMessageRead, readerID, domain.ReadEvent{
		RoomID:    roomID,
		MessageID: messageID,
		ReaderID:  readerID,
	})
}

// History exposes the room's recorded messages in insertion order.
func (s *Service) History(roomID string) []domain.Message {
	return s.log.History(roomID)
}

// All exposes every room's recorded messages, for the initial snapshot.
func (s *Service) All() map[string][]domain.Message {
	return s.log.All()
}

func (s *Service) announce(ctx context.Context, topic, userID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal event", "error", err, "topic", topic)
		return
	}
	msg := pubsub.Message{Topic: topic, UserID: userID, Payload: payload}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "topic", topic)
	}
}
