package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/repository"
	"github.com/yourusername/friendchat-service/internal/store"
	"github.com/yourusername/friendchat-service/pkg/logger"
)

// NotificationService creates notifications as part of friend actions,
// tracks their read state and pushes them to devices
type NotificationService struct {
	store  store.DocumentStore
	repo   *repository.NotificationRepository
	users  *repository.UserRepository
	pusher Pusher
	now    func() time.Time
}

func NewNotificationService(s store.DocumentStore, repo *repository.NotificationRepository, users *repository.UserRepository, pusher Pusher) *NotificationService {
	if pusher == nil {
		pusher = NoopPusher{}
	}
	return &NotificationService{
		store:  s,
		repo:   repo,
		users:  users,
		pusher: pusher,
		now:    time.Now,
	}
}

// StageFriendRequest adds the notification telling req.To about the request
func (s *NotificationService) StageFriendRequest(b store.Batch, req *models.FriendRequest) *models.Notification {
	n := &models.Notification{
		UserID:        req.To,
		Type:          models.NotificationFriendRequest,
		FromUserID:    req.From,
		FromUserName:  req.FromUserData.Name,
		FromUserImage: req.FromUserData.Image,
		RequestID:     req.RequestID,
		CreatedAt:     s.now(),
	}
	s.repo.StageCreate(b, n)
	return n
}

// StageFriendAccepted adds the notification telling the sender that req was
// accepted. It carries no request id, so handling the request never marks it.
func (s *NotificationService) StageFriendAccepted(b store.Batch, req *models.FriendRequest) *models.Notification {
	n := &models.Notification{
		UserID:        req.From,
		Type:          models.NotificationFriendAccepted,
		FromUserID:    req.To,
		FromUserName:  req.ToUserData.Name,
		FromUserImage: req.ToUserData.Image,
		CreatedAt:     s.now(),
	}
	s.repo.StageCreate(b, n)
	return n
}

// StageRequestHandled marks read every unread notification about requestID
func (s *NotificationService) StageRequestHandled(ctx context.Context, b store.Batch, requestID string) error {
	notifications, err := s.repo.GetByRequest(ctx, requestID)
	if err != nil {
		return err
	}
	for _, n := range notifications {
		if !n.Read {
			s.repo.StageMarkRead(b, n.NotificationID)
		}
	}
	return nil
}

// StageDeleteBetween deletes every notification exchanged by the pair
func (s *NotificationService) StageDeleteBetween(ctx context.Context, b store.Batch, a, c string) error {
	notifications, err := s.repo.GetBetween(ctx, a, c)
	if err != nil {
		return err
	}
	for _, n := range notifications {
		s.repo.StageDelete(b, n.NotificationID)
	}
	return nil
}

// Deliver pushes n to the recipient's device. Failures are logged only.
func (s *NotificationService) Deliver(ctx context.Context, n *models.Notification) {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":         n.UserID,
		"notification_id": n.NotificationID,
		"type":            n.Type,
	})

	user, err := s.users.GetUserByID(ctx, n.UserID)
	if err != nil {
		log.WithError(err).Warn("Failed to load push recipient")
		return
	}
	if user == nil || user.FCMToken == "" {
		log.Debug("Recipient has no push token")
		return
	}

	if err := s.pusher.Push(ctx, user.FCMToken, pushMessage(n)); err != nil {
		log.WithError(err).Warn("Failed to push notification")
		return
	}
	log.Debug("Notification pushed")
}

func pushMessage(n *models.Notification) PushMessage {
	msg := PushMessage{
		Data: map[string]string{
			"type":           string(n.Type),
			"notificationId": n.NotificationID,
			"fromUserId":     n.FromUserID,
			"requestId":      n.RequestID,
		},
	}
	switch n.Type {
	case models.NotificationFriendAccepted:
		msg.Title = "Friend request accepted"
		msg.Body = fmt.Sprintf("%s accepted your friend request", n.FromUserName)
	default:
		msg.Title = "New friend request"
		msg.Body = fmt.Sprintf("%s sent you a friend request", n.FromUserName)
	}
	return msg
}

// GetUserNotifications returns the notifications of userID, newest first
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.repo.GetForUser(ctx, userID)
}

// WatchUserNotifications streams the notifications of userID, newest first
func (s *NotificationService) WatchUserNotifications(ctx context.Context, userID string) (*Feed[[]models.Notification], error) {
	sub, err := s.repo.WatchForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newFeed(sub, repository.DecodeNotifications), nil
}

// MarkAllAsRead marks read the fetched notifications that belong to userID
// and are still unread. It returns how many were updated.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string, fetched []models.Notification) (int, error) {
	b := s.store.Batch()
	for _, n := range fetched {
		if n.UserID == userID && !n.Read {
			s.repo.StageMarkRead(b, n.NotificationID)
		}
	}
	if b.Len() == 0 {
		return 0, nil
	}
	if err := b.Commit(ctx); err != nil {
		return 0, err
	}
	return b.Len(), nil
}

// MarkFetchedAsRead marks read the notifications of userID listed in ids.
// An empty ids marks every notification of userID.
func (s *NotificationService) MarkFetchedAsRead(ctx context.Context, userID string, ids []string) (int, error) {
	notifications, err := s.repo.GetForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return s.MarkAllAsRead(ctx, userID, notifications)
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	fetched := make([]models.Notification, 0, len(ids))
	for _, n := range notifications {
		if wanted[n.NotificationID] {
			fetched = append(fetched, n)
		}
	}
	return s.MarkAllAsRead(ctx, userID, fetched)
}

// UnreadCount counts the unread entries of list
func UnreadCount(list []models.Notification) int {
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count
}
