package pubsub

import "context"

// Message is the envelope passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "chat.message.new").
	Topic string
	// UserID identifies the user who initiated the message, when there is one.
	UserID string
	// Payload contains the encoded event data.
	Payload []byte
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe registers the handler for the topic and returns once the
	// subscription is active; messages are processed on a background goroutine.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
