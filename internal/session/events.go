package session

import (
	"encoding/json"
	"log/slog"
)

// Inbound event names accepted from connections.
const (
	EventRoomJoin    = "room:join"
	EventRoomLeave   = "room:leave"
	EventMessageSend = "message:send"
	EventTyping      = "typing"
	EventMessageRead = "message:read"
)

// Outbound event names pushed to connections.
const (
	EventInit           = "init"
	EventPresenceUpdate = "presence:update"
	EventRoomUpdate     = "room:update"
	EventMessageNew     = "message:new"
	EventAck            = "ack"
	EventError          = "error"
)

// Frame is the wire envelope for a single event in either direction. Inbound
// frames may carry a seq; the ack (or error) for that frame echoes it back so
// the client can reconcile request and response over the event channel.
type Frame struct {
	Seq   int64           `json:"seq,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// encodeFrame builds the wire bytes for an outbound event. Marshal failures
// are a programming error in the payload type; they are logged and yield nil,
// which the hub treats as nothing to deliver.
func encodeFrame(event string, seq int64, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal event data", "event", event, "error", err)
		return nil
	}
	payload, err := json.Marshal(Frame{Seq: seq, Event: event, Data: raw})
	if err != nil {
		slog.Error("Failed to marshal frame", "event", event, "error", err)
		return nil
	}
	return payload
}
