package chathub

import (
	"omilia/backend/internal/models"

	"gorm.io/gorm"
)

type mockConn struct {
	id     string
	user   *models.User
	room   string
	send   chan models.Event
	closed bool
}

func newMockConn(id string, userID uint, username string) *mockConn {
	return &mockConn{
		id:   id,
		user: &models.User{Model: gorm.Model{ID: userID}, Username: username},
		send: make(chan models.Event, 10),
	}
}

func (c *mockConn) ID() string                  { return c.id }
func (c *mockConn) User() *models.User          { return c.user }
func (c *mockConn) Room() string                { return c.room }
func (c *mockConn) SetRoom(roomID string)       { c.room = roomID }
func (c *mockConn) SendCh() chan<- models.Event { return c.send }
func (c *mockConn) Run()                        {}

// Close shuts the send channel like the real transport does, so a write to
// a closed connection fails the same way it would in production.
func (c *mockConn) Close() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
