package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/services"
)

type FriendHandler struct {
	friendService    *services.FriendService
	directoryService *services.DirectoryService
}

func NewFriendHandler(friendService *services.FriendService, directoryService *services.DirectoryService) *FriendHandler {
	return &FriendHandler{
		friendService:    friendService,
		directoryService: directoryService,
	}
}

// GetFriends returns all friends of the caller
func (h *FriendHandler) GetFriends(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	friends, err := h.friendService.GetFriends(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// GetPendingRequests returns pending friend requests addressed to the caller
func (h *FriendHandler) GetPendingRequests(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.friendService.GetPendingRequests(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// GetSentRequests returns pending friend requests sent by the caller
func (h *FriendHandler) GetSentRequests(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.friendService.GetSentRequests(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// SendFriendRequest sends a friend request
func (h *FriendHandler) SendFriendRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.SendFriendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	fromSnapshot, err := h.directoryService.Snapshot(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	toSnapshot, err := h.directoryService.Snapshot(ctx, req.TargetUserID)
	if err != nil {
		respondError(c, err)
		return
	}

	requestID, err := h.friendService.SendFriendRequest(ctx, userID, req.TargetUserID, fromSnapshot, toSnapshot)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"requestId": requestID})
}

// AcceptFriendRequest accepts a friend request
func (h *FriendHandler) AcceptFriendRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.AcceptRejectRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.friendService.AcceptFriendRequest(c.Request.Context(), req.RequestID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RejectFriendRequest rejects a friend request
func (h *FriendHandler) RejectFriendRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.AcceptRejectRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.friendService.RejectFriendRequest(c.Request.Context(), req.RequestID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetFriendshipStatus describes the caller's relation to another user
func (h *FriendHandler) GetFriendshipStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	otherID := c.Param("userId")
	status, err := h.friendService.GetFriendshipStatus(c.Request.Context(), userID, otherID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": otherID, "status": status})
}

// RemoveFriend removes a friend
func (h *FriendHandler) RemoveFriend(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	friendUserID := c.Param("friendUserId")
	if err := h.friendService.RemoveFriend(c.Request.Context(), userID, friendUserID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetNickname returns the caller's nickname for a friend
func (h *FriendHandler) GetNickname(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	nickname, err := h.friendService.GetFriendNickname(c.Request.Context(), userID, c.Param("friendUserId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nickname": nickname})
}

// SetNickname sets or clears the caller's nickname for a friend
func (h *FriendHandler) SetNickname(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.NicknameBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.friendService.SetFriendNickname(c.Request.Context(), userID, c.Param("friendUserId"), req.Nickname); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
