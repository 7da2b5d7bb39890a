package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/friendchat-service/internal/middleware"
	"github.com/yourusername/friendchat-service/internal/services"
)

// Services is everything the router needs
type Services struct {
	Verifier      services.IdentityVerifier
	Directory     *services.DirectoryService
	Friends       *services.FriendService
	Chats         *services.ChatService
	Notifications *services.NotificationService
	Presence      *services.PresenceService
}

// NewRouter registers every route on a new gin engine
func NewRouter(svc Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	userHandler := NewUserHandler(svc.Directory)
	friendHandler := NewFriendHandler(svc.Friends, svc.Directory)
	chatHandler := NewChatHandler(svc.Chats, svc.Directory)
	notificationHandler := NewNotificationHandler(svc.Notifications)
	streamHandler := NewStreamHandler(svc.Chats, svc.Notifications, svc.Presence, allowedOrigins)

	auth := middleware.AuthMiddleware(svc.Verifier, svc.Directory)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Friendchat API is running",
		})
	})

	api := router.Group("/api")
	api.Use(auth)
	{
		users := api.Group("/users")
		{
			users.GET("", userHandler.ListUsers)
			users.POST("/fcm-token", userHandler.UpdateFCMToken)
		}

		friends := api.Group("/friends")
		{
			friends.GET("", friendHandler.GetFriends)
			friends.GET("/pending", friendHandler.GetPendingRequests)
			friends.GET("/sent", friendHandler.GetSentRequests)
			friends.POST("/request", friendHandler.SendFriendRequest)
			friends.POST("/accept", friendHandler.AcceptFriendRequest)
			friends.POST("/reject", friendHandler.RejectFriendRequest)
			friends.GET("/status/:userId", friendHandler.GetFriendshipStatus)
			friends.DELETE("/:friendUserId", friendHandler.RemoveFriend)
			friends.GET("/:friendUserId/nickname", friendHandler.GetNickname)
			friends.PUT("/:friendUserId/nickname", friendHandler.SetNickname)
		}

		chats := api.Group("/chats")
		{
			chats.POST("", chatHandler.CreateChat)
			chats.GET("", chatHandler.GetChats)
			chats.GET("/:chatId/messages", chatHandler.GetMessages)
			chats.POST("/:chatId/messages", chatHandler.SendMessage)
			chats.DELETE("/:chatId/messages", chatHandler.ClearChat)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationHandler.GetNotifications)
			notifications.POST("/read-all", notificationHandler.MarkAllAsRead)
		}
	}

	ws := router.Group("/ws")
	ws.Use(auth)
	{
		ws.GET("/presence", streamHandler.Presence)
		ws.GET("/status/:userId", streamHandler.Status)
		ws.GET("/chats", streamHandler.Chats)
		ws.GET("/chats/:chatId/messages", streamHandler.Messages)
		ws.GET("/notifications", streamHandler.Notifications)
	}

	return router
}
