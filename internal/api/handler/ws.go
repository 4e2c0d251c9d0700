package handler

import (
	"log"
	"net/http"

	"omilia/backend/internal/chathub"
	"omilia/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades an authenticated client. Browsers cannot set
// headers on WebSocket requests, so the token is also accepted as a query
// parameter.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	userID, err := h.Auth.ParseToken(token, "access")
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}
	user, err := h.Storage.UserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	blocked, err := h.Storage.IsUserBlocked(c.Request.Context(), user.RedisID())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if blocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "User is blocked"})
		return
	}

	// Pick up the room before registering so the connection catches the
	// room's fan-out from the first event.
	roomID, err := h.Rooms.CurrentRoom(c.Request.Context(), user.RedisID())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ERROR: websocket upgrade failed for user %s: %v", user.Username, err)
		return
	}

	conn := &chathub.WebSocketConn{
		ConnID: uuid.NewString(),
		Usr:    user,
		RoomID: roomID,
		Conn:   ws,
		Hub:    h.Hub,
		Send:   make(chan models.Event, 256),
	}
	h.Hub.RegisterCh <- conn
	conn.Run()
}
