package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/services"
)

type ChatHandler struct {
	chatService      *services.ChatService
	directoryService *services.DirectoryService
}

func NewChatHandler(chatService *services.ChatService, directoryService *services.DirectoryService) *ChatHandler {
	return &ChatHandler{
		chatService:      chatService,
		directoryService: directoryService,
	}
}

// CreateChat returns the chat with another user, creating it on first use
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateChatBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	current, err := h.directoryService.Participant(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	other, err := h.directoryService.Participant(ctx, req.OtherUserID)
	if err != nil {
		respondError(c, err)
		return
	}

	chatID, err := h.chatService.GetOrCreateChat(ctx, current, other)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chatId": chatID})
}

// GetChats returns the caller's chats, most recently active first
func (h *ChatHandler) GetChats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	chats, err := h.chatService.GetUserChats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	messages, err := h.chatService.ListMessages(c.Request.Context(), c.Param("chatId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.SendMessageBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), c.Param("chatId"), userID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ClearChat deletes every message of the chat
func (h *ChatHandler) ClearChat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.chatService.ClearChat(c.Request.Context(), c.Param("chatId"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
