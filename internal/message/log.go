package message

import (
	"sync"

	"github.com/nwells/parley/internal/domain"
)

// roomLog is the append-only record for one room. Each room carries its own
// lock so appends to different rooms never contend.
type roomLog struct {
	mu   sync.Mutex
	msgs []domain.Message
}

// Log maps room ids to ordered, append-only message sequences. Insertion
// order is the canonical order used for replay and history; it grows for the
// lifetime of the process.
type Log struct {
	mu    sync.RWMutex
	rooms map[string]*roomLog
}

// NewLog creates an empty message log.
func NewLog() *Log {
	return &Log{rooms: make(map[string]*roomLog)}
}

// Append records the message under its room id. Appends to the same room are
// atomic with respect to each other; arrival order at the room's lock is the
// recorded order.
func (l *Log) Append(msg domain.Message) {
	rl := l.room(msg.RoomID)
	rl.mu.Lock()
	rl.msgs = append(rl.msgs, msg)
	rl.mu.Unlock()
}

// MarkRead sets the read flag on the identified message in the room's log.
// It reports whether the message was found. Marking an already-read message
// again still reports found, so callers re-broadcast the same state
// (idempotent, monotonic false to true only). An unknown room or message id
// is a silent no-op.
func (l *Log) MarkRead(roomID, messageID string) bool {
	l.mu.RLock()
	rl, ok := l.rooms[roomID]
	l.mu.RUnlock()
	if !ok {
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for i := range rl.msgs {
		if rl.msgs[i].ID == messageID {
			rl.msgs[i].Read = true
			return true
		}
	}
	return false
}

// History returns a copy of the room's message sequence in insertion order.
// Unknown rooms yield nil.
func (l *Log) History(roomID string) []domain.Message {
	l.mu.RLock()
	rl, ok := l.rooms[roomID]
	l.mu.RUnlock()
	if !ok {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	out := make([]domain.Message, len(rl.msgs))
	copy(out, rl.msgs)
	return out
}

// All returns a copy of every room's message sequence, keyed by room id.
// Used to build the initial snapshot for a new connection.
func (l *Log) All() map[string][]domain.Message {
	l.mu.RLock()
	ids := make([]string, 0, len(l.rooms))
	for id := range l.rooms {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	out := make(map[string][]domain.Message, len(ids))
	for _, id := range ids {
		out[id] = l.History(id)
	}
	return out
}

func (l *Log) room(roomID string) *roomLog {
	l.mu.RLock()
	rl, ok := l.rooms[roomID]
	l.mu.RUnlock()
	if ok {
		return rl
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if rl, ok = l.rooms[roomID]; ok {
		return rl
	}
	rl = &roomLog{}
	l.rooms[roomID] = rl
	return rl
}
