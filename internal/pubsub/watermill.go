package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// metadata key used to carry the originating user through watermill.
const metaKeyUserID = "user_id"

// Bus implements Publisher and Subscriber on top of watermill's in-memory
// GoChannel transport. All coordinator events flow through one Bus instance.
type Bus struct {
	pub message.Publisher
	sub message.Subscriber
}

// NewBus initializes the in-process pub/sub bus.
func NewBus() *Bus {
	logger := watermill.NewStdLogger(false, false)
	ch := gochannel.NewGoChannel(gochannel.Config{}, logger)
	return &Bus{pub: ch, sub: ch}
}

// Publish implements the Publisher interface.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	wm := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wm.Metadata.Set(metaKeyUserID, msg.UserID)
	return b.pub.Publish(msg.Topic, wm)
}

// Subscribe implements the Subscriber interface. The handler runs on a
// dedicated goroutine until the subscription's channel is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wm := range messages {
			msg := Message{
				Topic:   topic,
				UserID:  wm.Metadata.Get(metaKeyUserID),
				Payload: wm.Payload,
			}
			if err := handler(ctx, msg); err != nil {
				slog.Error("Failed to handle message", "topic", topic, "msg_id", wm.UUID, "error", err)
				wm.Nack()
			} else {
				wm.Ack()
			}
		}
		slog.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts down the bus and stops message consumption.
func (b *Bus) Close() error {
	return b.sub.Close()
}
