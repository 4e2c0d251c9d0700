package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"omilia/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var newline = []byte{'\n'}

// WebSocketConn implements Conn over a gorilla/websocket connection.
type WebSocketConn struct {
	ConnID string
	Usr    *models.User
	RoomID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan models.Event

	closeOnce sync.Once
}

func (c *WebSocketConn) ID() string                  { return c.ConnID }
func (c *WebSocketConn) User() *models.User          { return c.Usr }
func (c *WebSocketConn) Room() string                { return c.RoomID }
func (c *WebSocketConn) SetRoom(roomID string)       { c.RoomID = roomID }
func (c *WebSocketConn) SendCh() chan<- models.Event { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketConn) Run() {
	go c.writePump()
	go c.readPump()
}

// Close shuts the send channel, which stops the write pump and closes the
// socket. Safe against double close: the hub may close a replaced
// connection whose own unregister arrives later.
func (c *WebSocketConn) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketConn) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Printf("Error decoding JSON from user %s: %v", c.Usr.Username, err)
			continue
		}

		c.Hub.IncomingCh <- Inbound{Conn: c, Frame: frame}
	}
}

func (c *WebSocketConn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("Error encoding JSON for user %s: %v", c.Usr.Username, err)
				continue
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Flush whatever else is already queued, one record per line so
			// the client can split the frame back into JSON documents.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next := <-c.Send
				extra, _ := json.Marshal(next)
				w.Write(newline)
				w.Write(extra)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
