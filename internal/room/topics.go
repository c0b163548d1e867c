package room

// TopicRoomUpdate carries domain.Room payloads whenever a room's membership
// changes. The fan-out audience is the room's membership at delivery time.
const TopicRoomUpdate = "room.update"
