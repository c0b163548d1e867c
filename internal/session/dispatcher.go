package session

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nwells/parley/internal/domain"
	"github.com/nwells/parley/internal/hub"
	"github.com/nwells/parley/internal/message"
	"github.com/nwells/parley/internal/presence"
	"github.com/nwells/parley/internal/pubsub"
	"github.com/nwells/parley/internal/room"
)

// Dispatcher consumes domain events from the bus, resolves the audience, and
// hands encoded frames to the hub. Room-scoped events resolve membership at
// delivery time, so a member who left between send and delivery is skipped
// and one who joined is included.
type Dispatcher struct {
	subscriber pubsub.Subscriber
	directory  *room.Directory
	hub        *hub.Hub
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher fanning out to the given hub.
func NewDispatcher(subscriber pubsub.Subscriber, directory *room.Directory, h *hub.Hub) *Dispatcher {
	return &Dispatcher{
		subscriber: subscriber,
		directory:  directory,
		hub:        h,
		logger:     slog.Default().With("service", "dispatch"),
	}
}

// Start registers all bus subscriptions. Handlers run until the context is
// canceled and the bus is closed.
func (d *Dispatcher) Start(ctx context.Context) error {
	subscriptions := map[string]pubsub.Handler{
		presence.TopicPresenceUpdate: d.handlePresence,
		room.TopicRoomUpdate:         d.handleRoomUpdate,
		message.TopicMessageNew:      d.handleMessageNew,
		message.TopicMessageRead:     d.handleMessageRead,
		TopicTyping:                  d.handleTyping,
	}
	for topic, handler := range subscriptions {
		if err := d.subscriber.Subscribe(ctx, topic, handler); err != nil {
			return err
		}
	}
	d.logger.Info("Dispatcher started", "topics", len(subscriptions))
	return nil
}

// handlePresence broadcasts presence changes to every connection.
func (d *Dispatcher) handlePresence(ctx context.Context, msg pubsub.Message) error {
	var update domain.PresenceUpdate
	if err := json.Unmarshal(msg.Payload, &update); err != nil {
		return err
	}
	d.hub.ToAll(encodeFrame(EventPresenceUpdate, 0, update))
	return nil
}

// handleRoomUpdate delivers the updated room to its members as carried in the
// event, which reflects membership immediately after the change.
func (d *Dispatcher) handleRoomUpdate(ctx context.Context, msg pubsub.Message) error {
	var rm domain.Room
	if err := json.Unmarshal(msg.Payload, &rm); err != nil {
		return err
	}
	d.hub.ToUsers(rm.Members, "", encodeFrame(EventRoomUpdate, 0, rm))
	return nil
}

// handleMessageNew delivers a recorded message to the room's live membership.
func (d *Dispatcher) handleMessageNew(ctx context.Context, msg pubsub.Message) error {
	var m domain.Message
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		return err
	}
	members := d.directory.Members(m.RoomID)
	d.hub.ToUsers(members, "", encodeFrame(EventMessageNew, 0, m))
	return nil
}

// handleMessageRead delivers a read receipt to the room's live membership.
func (d *Dispatcher) handleMessageRead(ctx context.Context, msg pubsub.Message) error {
	var ev domain.ReadEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return err
	}
	members := d.directory.Members(ev.RoomID)
	d.hub.ToUsers(members, "", encodeFrame(EventMessageRead, 0, ev))
	return nil
}

// handleTyping delivers a typing signal to every room member except the
// sender, who never sees their own indicator.
func (d *Dispatcher) handleTyping(ctx context.Context, msg pubsub.Message) error {
	var ev domain.TypingEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return err
	}
	members := d.directory.Members(ev.RoomID)
	d.hub.ToUsers(members, ev.UserID, encodeFrame(EventTyping, 0, ev))
	return nil
}
