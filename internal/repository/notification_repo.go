package repository

import (
	"context"
	"sort"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/store"
)

type NotificationRepository struct {
	store store.DocumentStore
}

func NewNotificationRepository(s store.DocumentStore) *NotificationRepository {
	return &NotificationRepository{store: s}
}

// StageCreate adds the notification to b, assigning an id if it has none
func (r *NotificationRepository) StageCreate(b store.Batch, n *models.Notification) {
	if n.NotificationID == "" {
		n.NotificationID = r.store.NewID(NotificationsCollection)
	}
	b.Create(NotificationsCollection, n.NotificationID, store.Encode(n))
}

func (r *NotificationRepository) StageMarkRead(b store.Batch, notificationID string) {
	b.Update(NotificationsCollection, notificationID, store.Update{Path: "read", Value: true})
}

func (r *NotificationRepository) StageDelete(b store.Batch, notificationID string) {
	b.Delete(NotificationsCollection, notificationID)
}

func (r *NotificationRepository) userQuery(userID string) store.Query {
	return store.NewQuery(NotificationsCollection).Where("userId", store.OpEqual, userID)
}

// GetForUser retrieves the notifications of a recipient, newest first
func (r *NotificationRepository) GetForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	docs, err := r.store.Query(ctx, r.userQuery(userID))
	if err != nil {
		return nil, err
	}
	return DecodeNotifications(docs), nil
}

// WatchForUser subscribes to the notifications of a recipient
func (r *NotificationRepository) WatchForUser(ctx context.Context, userID string) (*store.Subscription, error) {
	return r.store.Watch(ctx, r.userQuery(userID))
}

// GetByRequest retrieves the notifications that refer to a friend request
func (r *NotificationRepository) GetByRequest(ctx context.Context, requestID string) ([]models.Notification, error) {
	docs, err := r.store.Query(ctx, store.NewQuery(NotificationsCollection).
		Where("requestId", store.OpEqual, requestID))
	if err != nil {
		return nil, err
	}
	return DecodeNotifications(docs), nil
}

// GetBetween retrieves the notifications exchanged by a pair in both directions
func (r *NotificationRepository) GetBetween(ctx context.Context, a, b string) ([]models.Notification, error) {
	var all []models.Notification
	for _, dir := range [][2]string{{a, b}, {b, a}} {
		docs, err := r.store.Query(ctx, r.userQuery(dir[0]).Where("fromUserId", store.OpEqual, dir[1]))
		if err != nil {
			return nil, err
		}
		all = append(all, DecodeNotifications(docs)...)
	}
	return all, nil
}

// DecodeNotifications converts documents and sorts them by createdAt, newest first
func DecodeNotifications(docs []*store.Document) []models.Notification {
	notifications := make([]models.Notification, 0, len(docs))
	for _, doc := range docs {
		var n models.Notification
		if err := doc.DataTo(&n); err != nil {
			continue
		}
		n.NotificationID = doc.ID
		notifications = append(notifications, n)
	}
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications
}
