package handler

import (
	"errors"
	"net/http"

	"omilia/backend/internal/auth"
	"omilia/backend/internal/rooms"

	"github.com/gin-gonic/gin"
)

const refreshCookie = "refresh_token"

type registerRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register creates an account and returns the generated username.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Auth.Register(req.Login, req.Password)
	if errors.Is(err, auth.ErrLoginTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful", "username": user.Username})
}

type loginRequest struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	TelegramID string `json:"telegram_id"`
}

// Login authenticates and returns an access token; the refresh token goes
// into an HttpOnly cookie. ?remember=1 stretches the refresh lifetime.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	remember := c.Query("remember") == "1"

	_, access, refresh, err := h.Auth.Login(req.Login, req.Password, req.TelegramID, remember)
	if errors.Is(err, auth.ErrNoTelegramUser) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.SetCookie(refreshCookie, refresh, 30*24*3600, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "access_token": access})
}

// Refresh issues a new access token from the refresh-token cookie.
func (h *Handler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie(refreshCookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token missing"})
		return
	}
	userID, err := h.Auth.ParseToken(refresh, "refresh")
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	access, err := h.Auth.AccessToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

// Logout clears the refresh cookie and force-leaves any room the user is
// in, so an abandoned session never holds a room slot.
func (h *Handler) Logout(c *gin.Context) {
	if refresh, err := c.Cookie(refreshCookie); err == nil {
		if userID, err := h.Auth.ParseToken(refresh, "refresh"); err == nil {
			if user, err := h.Storage.UserByID(userID); err == nil {
				if _, err := h.Rooms.Leave(c.Request.Context(), user); err != nil && !errors.Is(err, rooms.ErrNotInRoom) {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
					return
				}
			}
		}
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

type linkTelegramRequest struct {
	TelegramID string `json:"telegram_id" binding:"required"`
}

// LinkTelegram attaches a Telegram identity to the current account.
func (h *Handler) LinkTelegram(c *gin.Context) {
	var req linkTelegramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Auth.LinkTelegram(currentUser(c), req.TelegramID)
	if errors.Is(err, auth.ErrTelegramLinked) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Telegram ID linked successfully"})
}

type changeUsernameRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
}

// ChangeUsername replaces the public display name.
func (h *Handler) ChangeUsername(c *gin.Context) {
	var req changeUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Auth.ChangeUsername(currentUser(c), req.Username)
	if errors.Is(err, auth.ErrUsernameTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Username changed successfully"})
}
