package presence

// TopicPresenceUpdate carries domain.PresenceUpdate payloads whenever a
// user's online state changes.
const TopicPresenceUpdate = "presence.update"
