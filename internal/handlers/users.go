package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/services"
)

type UserHandler struct {
	directoryService *services.DirectoryService
}

func NewUserHandler(directoryService *services.DirectoryService) *UserHandler {
	return &UserHandler{directoryService: directoryService}
}

// ListUsers returns the directory without the caller
func (h *UserHandler) ListUsers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	users, err := h.directoryService.ListUsers(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UsersResponse{Users: users})
}

// UpdateFCMToken updates the user's FCM token
func (h *UserHandler) UpdateFCMToken(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.UpdateFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.directoryService.UpdatePushToken(c.Request.Context(), userID, req.FCMToken); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
