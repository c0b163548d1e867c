package message

const (
	// TopicMessageNew carries domain.Message payloads for accepted sends.
	TopicMessageNew = "chat.message.new"

	// TopicMessageRead carries domain.ReadEvent payloads for read receipts.
	TopicMessageRead = "chat.message.read"
)
