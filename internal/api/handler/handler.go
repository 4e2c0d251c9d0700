// Package handler wires the HTTP and WebSocket surface to the services.
package handler

import (
	"omilia/backend/internal/auth"
	"omilia/backend/internal/chathub"
	"omilia/backend/internal/complaint"
	"omilia/backend/internal/rooms"
	"omilia/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler carries the service dependencies of every endpoint.
type Handler struct {
	Auth       *auth.Service
	Rooms      *rooms.Service
	Complaints *complaint.Service
	Storage    storage.Storage
	Hub        *chathub.Hub
}

func NewHandler(a *auth.Service, r *rooms.Service, cs *complaint.Service, s storage.Storage, hub *chathub.Hub) *Handler {
	return &Handler{Auth: a, Rooms: r, Complaints: cs, Storage: s, Hub: hub}
}

// RegisterRoutes attaches every endpoint to the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)
	r.POST("/logout", h.Logout)

	authed := r.Group("/", h.RequireAuth)
	{
		authed.POST("/link_telegram", h.LinkTelegram)
		authed.POST("/change_username", h.ChangeUsername)

		authed.POST("/join_room", h.JoinRoom)
		authed.POST("/leave_room", h.LeaveRoom)
		authed.GET("/my_room", h.MyRoom)
		authed.GET("/room_messages/:room_id", h.RoomMessages)

		authed.POST("/complaints", h.SubmitComplaint)
		authed.GET("/complaints", h.RequireAdmin, h.ListComplaints)
		authed.DELETE("/complaints/:id", h.RequireAdmin, h.RemoveComplaint)
	}

	r.GET("/ws", h.ServeWebSocket)
}
