package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type complaintRequest struct {
	TargetUserID string `json:"target_user_id" binding:"required"`
	MessageID    string `json:"message_id"`
	Reason       string `json:"reason" binding:"required"`
}

// SubmitComplaint files a report against another user.
func (h *Handler) SubmitComplaint(c *gin.Context) {
	var req complaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.Complaints.Create(c.Request.Context(), currentUser(c).RedisID(), req.TargetUserID, req.MessageID, req.Reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Complaint submitted", "complaint_id": id})
}

// ListComplaints returns every open complaint. Admin-only.
func (h *Handler) ListComplaints(c *gin.Context) {
	complaints, err := h.Complaints.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaints": complaints})
}

// RemoveComplaint deletes a resolved complaint. Admin-only.
func (h *Handler) RemoveComplaint(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid complaint ID"})
		return
	}

	removed, err := h.Complaints.Remove(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Complaint not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Complaint removed"})
}
