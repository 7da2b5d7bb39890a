package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/services"
	"github.com/yourusername/friendchat-service/pkg/logger"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	teardownTimeout = 5 * time.Second
)

// presence messages a client may send on /ws/presence
const (
	presenceConnected = "connected"
	presenceOffline   = "offline"
)

type presenceCommand struct {
	Type string `json:"type"`
}

// StreamHandler serves the realtime websocket streams
type StreamHandler struct {
	chatService         *services.ChatService
	notificationService *services.NotificationService
	presenceService     *services.PresenceService
	upgrader            websocket.Upgrader
}

func NewStreamHandler(chatService *services.ChatService, notificationService *services.NotificationService, presenceService *services.PresenceService, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		chatService:         chatService,
		notificationService: notificationService,
		presenceService:     presenceService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (h *StreamHandler) upgrade(c *gin.Context) (*websocket.Conn, bool) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.WithError(err).WithField("path", c.FullPath()).Warn("Websocket upgrade failed")
		return nil, false
	}
	return conn, true
}

// readLoop consumes client frames until the connection fails and returns
// the error that ended it
func readLoop(conn *websocket.Conn, onMessage func([]byte)) <-chan error {
	done := make(chan error, 1)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			if onMessage != nil {
				onMessage(data)
			}
		}
	}()
	return done
}

// pump writes every update to the client until the feed or the connection ends
func pump[T any](conn *websocket.Conn, updates <-chan T, encode func(T) interface{}) {
	closed := readLoop(conn, nil)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case v, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(encode(v)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Presence binds the connection to the caller's presence. A clean close
// publishes offline at once; any other loss runs the deferred write.
func (h *StreamHandler) Presence(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	defer conn.Close()

	log := logger.Log.WithField("user_id", userID)
	session := h.presenceService.Open(userID)
	if err := session.Connected(c.Request.Context()); err != nil {
		log.WithError(err).Warn("Presence connect failed")
	}

	commands := make(chan presenceCommand, 4)
	closed := readLoop(conn, func(data []byte) {
		var cmd presenceCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return
		}
		select {
		case commands <- cmd:
		default:
		}
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-commands:
			switch cmd.Type {
			case presenceConnected:
				if err := session.Connected(c.Request.Context()); err != nil {
					log.WithError(err).Warn("Presence reconnect failed")
				}
			case presenceOffline:
				ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
				session.Close(ctx)
				cancel()
			}
		case err := <-closed:
			ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
			defer cancel()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				session.Close(ctx)
				log.Debug("Presence connection closed")
			} else {
				session.Dropped(ctx)
				log.WithError(err).Debug("Presence connection dropped")
			}
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
			}
		}
	}
}

// Status streams the presence of another user
func (h *StreamHandler) Status(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	feed, err := h.presenceService.WatchStatus(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer feed.Close()

	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	defer conn.Close()

	pump(conn, feed.Updates(), func(s models.UserStatus) interface{} { return s })
}

// Chats streams the caller's chat list
func (h *StreamHandler) Chats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	feed, err := h.chatService.WatchUserChats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer feed.Close()

	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	defer conn.Close()

	pump(conn, feed.Updates(), func(chats []*models.Chat) interface{} {
		return gin.H{"chats": chats}
	})
	h.logFeedEnd(feed.Err(), userID, "chats")
}

// Messages streams the messages of one chat
func (h *StreamHandler) Messages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	feed, err := h.chatService.WatchMessages(c.Request.Context(), c.Param("chatId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer feed.Close()

	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	defer conn.Close()

	pump(conn, feed.Updates(), func(messages []*models.Message) interface{} {
		return gin.H{"messages": messages}
	})
	h.logFeedEnd(feed.Err(), userID, "messages")
}

// Notifications streams the caller's notifications with the unread count
func (h *StreamHandler) Notifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	feed, err := h.notificationService.WatchUserNotifications(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer feed.Close()

	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	defer conn.Close()

	pump(conn, feed.Updates(), func(list []models.Notification) interface{} {
		return models.NotificationsResponse{Notifications: list, UnreadCount: services.UnreadCount(list)}
	})
	h.logFeedEnd(feed.Err(), userID, "notifications")
}

func (h *StreamHandler) logFeedEnd(err error, userID, stream string) {
	if err == nil {
		return
	}
	logger.Log.WithError(err).WithFields(logrus.Fields{
		"user_id": userID,
		"stream":  stream,
	}).Warn("Stream ended with error")
}
