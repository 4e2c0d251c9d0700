package handler

import (
	"errors"
	"net/http"

	"omilia/backend/internal/rooms"

	"github.com/gin-gonic/gin"
)

type joinRoomRequest struct {
	RoomSize int `json:"room_size" binding:"required"`
}

// JoinRoom allocates the user into a room of the requested size.
// 200 when an existing room was joined, 201 when a new one was created.
func (h *Handler) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomID, created, err := h.Rooms.Join(c.Request.Context(), currentUser(c), req.RoomSize)
	if err != nil {
		c.JSON(roomErrStatus(err), gin.H{"error": err.Error()})
		return
	}

	if created {
		c.JSON(http.StatusCreated, gin.H{"message": "Created and joined new room", "room_id": roomID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined room successfully", "room_id": roomID})
}

// LeaveRoom removes the user from their current room.
func (h *Handler) LeaveRoom(c *gin.Context) {
	roomID, err := h.Rooms.Leave(c.Request.Context(), currentUser(c))
	if err != nil {
		c.JSON(roomErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left room successfully", "room_id": roomID})
}

// MyRoom reports which room the user currently occupies, if any.
func (h *Handler) MyRoom(c *gin.Context) {
	roomID, err := h.Rooms.CurrentRoom(c.Request.Context(), currentUser(c).RedisID())
	if err != nil {
		c.JSON(roomErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	if roomID == "" {
		c.JSON(http.StatusOK, gin.H{"room_id": nil, "message": "You are not in a room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}

// RoomMessages returns the room's log filtered to the caller's join time.
func (h *Handler) RoomMessages(c *gin.Context) {
	msgs, err := h.Rooms.History(c.Request.Context(), currentUser(c), c.Param("room_id"))
	if err != nil {
		c.JSON(roomErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// roomErrStatus maps the domain taxonomy to HTTP statuses: expected domain
// errors are client errors, everything else is a 500 whose details stay in
// the server log.
func roomErrStatus(err error) int {
	switch {
	case errors.Is(err, rooms.ErrAlreadyInRoom),
		errors.Is(err, rooms.ErrNotInRoom),
		errors.Is(err, rooms.ErrNotJoined),
		errors.Is(err, rooms.ErrEmptyMessage),
		errors.Is(err, rooms.ErrInvalidCapacity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
