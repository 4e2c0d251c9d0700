package handler

import (
	"net/http"
	"strings"

	"omilia/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const ctxUserKey = "current_user"

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// RequireAuth validates the access token, loads the account, and rejects
// blocked users before the request reaches any handler.
func (h *Handler) RequireAuth(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	userID, err := h.Auth.ParseToken(token, "access")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	user, err := h.Storage.UserByID(userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	blocked, err := h.Storage.IsUserBlocked(c.Request.Context(), user.RedisID())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if blocked {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "User is blocked"})
		return
	}

	c.Set(ctxUserKey, user)
	c.Next()
}

// RequireAdmin gates admin-only endpoints. Must run after RequireAuth.
func (h *Handler) RequireAdmin(c *gin.Context) {
	if currentUser(c).Role != "admin" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(ctxUserKey).(*models.User)
}
