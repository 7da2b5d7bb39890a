package models

import "time"

type NotificationType string

const (
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_accepted"
)

// Notification is addressed to UserID and created as a side effect of friend actions
type Notification struct {
	NotificationID string           `firestore:"-" json:"id"`
	UserID         string           `firestore:"userId" json:"userId"`
	Type           NotificationType `firestore:"type" json:"type"`
	FromUserID     string           `firestore:"fromUserId" json:"fromUserId"`
	FromUserName   string           `firestore:"fromUserName" json:"fromUserName"`
	FromUserImage  string           `firestore:"fromUserImage" json:"fromUserImage"`
	RequestID      string           `firestore:"requestId,omitempty" json:"requestId,omitempty"`
	Read           bool             `firestore:"read" json:"read"`
	CreatedAt      time.Time        `firestore:"createdAt" json:"createdAt"`
}

// NotificationsResponse represents the notification listing response
type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// MarkReadBody lists the notifications the client has fetched
type MarkReadBody struct {
	NotificationIDs []string `json:"notificationIds"`
}
