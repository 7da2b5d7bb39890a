package models

import "time"

// Identity is what the identity provider vouches for
type Identity struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	Email       string
}

// User represents a user in the directory
type User struct {
	UserID       string    `firestore:"userId" json:"id"`
	Username     string    `firestore:"username" json:"username"`
	FullName     string    `firestore:"fullName" json:"fullName"`
	ImageURL     string    `firestore:"imageUrl" json:"imageUrl"`
	EmailAddress string    `firestore:"emailAddress" json:"emailAddress"`
	FCMToken     string    `firestore:"fcmToken,omitempty" json:"-"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
	LastSeenAt   time.Time `firestore:"lastSeenAt" json:"lastSeenAt"`
}

// Snapshot returns the {name,image} copy stored on requests and friendships
func (u *User) Snapshot() UserSnapshot {
	name := u.FullName
	if name == "" {
		name = u.Username
	}
	return UserSnapshot{Name: name, Image: u.ImageURL}
}

// DirectoryUser is one entry of the user listing
type DirectoryUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"fullName"`
	ImageURL     string    `json:"imageUrl"`
	EmailAddress string    `json:"emailAddress"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UsersResponse represents the directory listing response
type UsersResponse struct {
	Users []DirectoryUser `json:"users"`
}

// UpdateFCMTokenRequest represents the FCM token update request
type UpdateFCMTokenRequest struct {
	FCMToken string `json:"fcmToken" binding:"required"`
}
