package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/nwells/parley/internal/domain"
	"github.com/nwells/parley/internal/pubsub"
)

type userState struct {
	username string
	online   bool
	connID   string
}

// Registry owns the online/offline state and connection association of every
// user the coordinator has seen. A user has at most one active connection;
// a newer connection supersedes the older association.
type Registry struct {
	mu        sync.RWMutex
	users     map[string]*userState
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewRegistry creates an empty presence registry publishing updates on the bus.
func NewRegistry(publisher pubsub.Publisher) *Registry {
	return &Registry{
		users:     make(map[string]*userState),
		publisher: publisher,
		logger:    slog.Default().With("service", "presence"),
	}
}

// Register marks the user online and associates the connection, superseding
// any previous connection for the same user. It returns the full roster as
// seen immediately after the change and publishes a presence update.
func (r *Registry) Register(ctx context.Context, userID, username, connID string) []domain.User {
	r.mu.Lock()
	state, ok := r.users[userID]
	if !ok {
		state = &userState{}
		r.users[userID] = state
	}
	superseded := state.connID
	state.username = username
	state.online = true
	state.connID = connID
	roster := r.rosterLocked()
	r.mu.Unlock()

	if superseded != "" && superseded != connID {
		r.logger.Info("Connection superseded", "user_id", userID, "old_conn", superseded, "new_conn", connID)
	}
	r.logger.Info("User online", "user_id", userID, "username", username, "conn_id", connID)

	r.publish(ctx, domain.PresenceUpdate{ID: userID, Username: username, Online: true})
	return roster
}

// Release marks the user offline only if connID still matches the recorded
// association. A release from a superseded connection is ignored so a stale
// disconnect cannot mark a newer session offline.
func (r *Registry) Release(ctx context.Context, userID, connID string) {
	r.mu.Lock()
	state, ok := r.users[userID]
	if !ok || state.connID != connID {
		r.mu.Unlock()
		r.logger.Debug("Ignoring stale release", "user_id", userID, "conn_id", connID)
		return
	}
	state.online = false
	state.connID = ""
	username := state.username
	r.mu.Unlock()

	r.logger.Info("User offline", "user_id", userID, "conn_id", connID)
	r.publish(ctx, domain.PresenceUpdate{ID: userID, Username: username, Online: false})
}

// Roster returns every known user with their current online flag.
func (r *Registry) Roster() []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rosterLocked()
}

// Online reports whether the user currently has an active connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.users[userID]
	return ok && state.online
}

func (r *Registry) rosterLocked() []domain.User {
	roster := make([]domain.User, 0, len(r.users))
	for id, state := range r.users {
		roster = append(roster, domain.User{
			ID:       id,
			Username: state.username,
			Online:   state.online,
		})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].Username < roster[j].Username })
	return roster
}

func (r *Registry) publish(ctx context.Context, update domain.PresenceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		r.logger.Error("Failed to marshal presence update", "error", err)
		return
	}
	msg := pubsub.Message{
		Topic:   TopicPresenceUpdate,
		UserID:  update.ID,
		Payload: payload,
	}
	if err := r.publisher.Publish(ctx, msg); err != nil {
		r.logger.Error("Failed to publish presence update", "error", err, "user_id", update.ID)
	}
}
