package models

import "time"

// RoomInfo is the Redis-backed state of a chat room. Rooms are ephemeral:
// they exist only while at least one member is inside, and all of their
// state (hash, member set, message log) is deleted together.
type RoomInfo struct {
	// RoomID is "room:<capacity>:<rand>".
	RoomID string `json:"room_id"`
	// MaxUsers is the fixed capacity requested at creation.
	MaxUsers int `json:"max_users"`
	// CurrentUsers is the live occupancy, 0 < CurrentUsers <= MaxUsers.
	CurrentUsers int `json:"current_users"`
}

// HasSpace reports whether another member fits into the room.
func (r RoomInfo) HasSpace() bool {
	return r.CurrentUsers < r.MaxUsers
}

// RoomMessage is one entry of a room's append-only message log, stored as a
// JSON record so content may safely contain any character.
type RoomMessage struct {
	// Sender is the display name (username) of the author.
	Sender string `json:"sender"`
	// Content is the message text. Never empty or whitespace-only.
	Content string `json:"content"`
	// Timestamp is the UTC send time in RFC 3339 form.
	Timestamp string `json:"timestamp"`
}

// Time parses the message timestamp. Callers treat a parse failure as
// "skip this record", not as a fatal error.
func (m RoomMessage) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.Timestamp)
}
