package domain

// PresenceUpdate announces a user's online state to every connection.
type PresenceUpdate struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// TypingEvent relays a typing indicator to the other members of a room.
type TypingEvent struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// ReadEvent announces that a reader has seen a specific message.
type ReadEvent struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId"`
}
