package domain

import "time"

// User is the roster view of an account: identity plus live presence.
// The password hash never leaves the auth package; this is the shape
// every other component (and the wire) sees.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// Room is a named set of user ids sharing one message log. A room is
// either a public named room or a DM room derived from two participant
// ids. Rooms are created lazily and never deleted.
type Room struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Message is one chat message recorded in exactly one room's log.
type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	FromUserID string    `json:"from"`
	FromName   string    `json:"username"`
	ToUserID   string    `json:"to,omitempty"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"time"`
	Read       bool      `json:"read"`
}
