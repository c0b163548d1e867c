package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/nwells/parley/internal/domain"
	"github.com/nwells/parley/internal/pubsub"
)

// DMPrefix marks room ids derived from a participant pair.
const DMPrefix = "dm:"

// DMRoomID derives the canonical room id for a direct conversation between
// two users. It is a pure function of the pair: the ids are sorted before
// joining, so both participants always resolve to the same room regardless
// of who initiates.
func DMRoomID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return DMPrefix + strings.Join(pair, ":")
}

type record struct {
	name    string
	members map[string]struct{}
}

// Directory owns room existence and membership. Rooms are created lazily on
// first join or first addressed message and never deleted. Membership is a
// set: joining twice is a no-op, as is leaving a room the user is not in.
type Directory struct {
	mu        sync.RWMutex
	rooms     map[string]*record
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewDirectory creates an empty room directory publishing updates on the bus.
func NewDirectory(publisher pubsub.Publisher) *Directory {
	return &Directory{
		rooms:     make(map[string]*record),
		publisher: publisher,
		logger:    slog.Default().With("service", "rooms"),
	}
}

// Ensure returns the room with the given id, creating it with an empty
// membership if it does not exist yet.
func (d *Directory) Ensure(roomID, name string) domain.Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := d.ensureLocked(roomID, name)
	return snapshot(roomID, rec)
}

// EnsureDM resolves the canonical DM room for the two participants, creating
// it with exactly the pair as members if it does not exist yet.
func (d *Directory) EnsureDM(ctx context.Context, userA, userB string) domain.Room {
	roomID := DMRoomID(userA, userB)

	d.mu.Lock()
	rec, existed := d.rooms[roomID]
	if !existed {
		rec = &record{
			name:    "DM",
			members: map[string]struct{}{userA: {}, userB: {}},
		}
		d.rooms[roomID] = rec
	}
	room := snapshot(roomID, rec)
	d.mu.Unlock()

	if !existed {
		d.logger.Info("DM room created", "room_id", roomID)
		d.publishUpdate(ctx, room)
	}
	return room
}

// Join adds the user to the room's membership, creating the room if absent.
// The updated room is returned and a room update is published.
func (d *Directory) Join(ctx context.Context, roomID, userID string) domain.Room {
	d.mu.Lock()
	rec := d.ensureLocked(roomID, roomID)
	rec.members[userID] = struct{}{}
	room := snapshot(roomID, rec)
	d.mu.Unlock()

	d.logger.Debug("User joined room", "room_id", roomID, "user_id", userID)
	d.publishUpdate(ctx, room)
	return room
}

// Leave removes the user from the room's membership. Leaving a room the user
// is not in, or a room that does not exist, is a no-op; an update is only
// published for rooms that exist.
func (d *Directory) Leave(ctx context.Context, roomID, userID string) {
	d.mu.Lock()
	rec, ok := d.rooms[roomID]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(rec.members, userID)
	room := snapshot(roomID, rec)
	d.mu.Unlock()

	d.logger.Debug("User left room", "room_id", roomID, "user_id", userID)
	d.publishUpdate(ctx, room)
}

// Members returns the room's current membership; unknown rooms yield nil.
func (d *Directory) Members(roomID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	return memberIDs(rec)
}

// Get returns the room if it exists.
func (d *Directory) Get(roomID string) (domain.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.rooms[roomID]
	if !ok {
		return domain.Room{}, false
	}
	return snapshot(roomID, rec), true
}

// Rooms returns a snapshot of every room, ordered by id.
func (d *Directory) Rooms() []domain.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rooms := make([]domain.Room, 0, len(d.rooms))
	for id, rec := range d.rooms {
		rooms = append(rooms, snapshot(id, rec))
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

func (d *Directory) ensureLocked(roomID, name string) *record {
	rec, ok := d.rooms[roomID]
	if !ok {
		rec = &record{name: name, members: make(map[string]struct{})}
		d.rooms[roomID] = rec
		d.logger.Info("Room created", "room_id", roomID, "name", name)
	}
	return rec
}

func (d *Directory) publishUpdate(ctx context.Context, room domain.Room) {
	payload, err := json.Marshal(room)
	if err != nil {
		d.logger.Error("Failed to marshal room update", "error", err, "room_id", room.ID)
		return
	}
	msg := pubsub.Message{Topic: TopicRoomUpdate, Payload: payload}
	if err := d.publisher.Publish(ctx, msg); err != nil {
		d.logger.Error("Failed to publish room update", "error", err, "room_id", room.ID)
	}
}

func snapshot(id string, rec *record) domain.Room {
	return domain.Room{ID: id, Name: rec.name, Members: memberIDs(rec)}
}

func memberIDs(rec *record) []string {
	ids := make([]string, 0, len(rec.members))
	for id := range rec.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
