package models

import "encoding/json"

// Event names delivered to live connections.
const (
	EventNewMessage   = "new_message"
	EventNotification = "notification"
	EventError        = "error"
)

// Event is one fan-out unit: published to the room's Redis channel and
// relayed to every connection currently subscribed to that room.
type Event struct {
	RoomID  string          `json:"room_id"`
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an Event. Marshal errors are impossible for
// the payload types used here, so they are swallowed into an empty payload.
func NewEvent(roomID, name string, payload any) Event {
	raw, _ := json.Marshal(payload)
	return Event{RoomID: roomID, Name: name, Payload: raw}
}

// NotificationPayload carries informational room events ("X joined").
type NotificationPayload struct {
	Text string `json:"text"`
}

// ErrorPayload is sent to a single connection when its request fails.
type ErrorPayload struct {
	Error string `json:"error"`
}

// ClientFrame is an inbound WebSocket frame from a connected user.
type ClientFrame struct {
	// Type selects the action; "send_message" is the only one today.
	Type string `json:"type"`
	// Message is the message text for send_message frames.
	Message string `json:"message"`
}

// FrameSendMessage is the ClientFrame.Type for posting a message.
const FrameSendMessage = "send_message"
