package chathub

import "omilia/backend/internal/models"

// Conn is one live connection tracked by the Hub. The WebSocket transport
// is the only implementation today; the interface keeps the hub testable
// and leaves the door open for other transports.
type Conn interface {
	// ID is the unique connection identity (assigned at handshake).
	ID() string
	// User returns the authenticated account behind the connection.
	User() *models.User
	// Room is the room this connection is subscribed to, "" when none.
	Room() string
	// SetRoom re-points the subscription. Called only from the hub loop
	// and from the handshake before registration.
	SetRoom(roomID string)
	// SendCh is the channel the hub pushes outbound events into.
	SendCh() chan<- models.Event
	// Run starts the connection's pumps.
	Run()
	// Close shuts the connection down; safe to call more than once.
	Close()
}

// Inbound is a frame received from a connection, routed through the hub.
type Inbound struct {
	Conn  Conn
	Frame models.ClientFrame
}
