package models

import "time"

// RequestStatus is the lifecycle state of a friend request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// FriendshipStatus describes the relation between two users from one side
type FriendshipStatus string

const (
	StatusFriends         FriendshipStatus = "friends"
	StatusRequestSent     FriendshipStatus = "request_sent"
	StatusRequestReceived FriendshipStatus = "request_received"
	StatusNotFriends      FriendshipStatus = "not_friends"
)

// UserSnapshot is the denormalized profile copied into requests and friendships
type UserSnapshot struct {
	Name  string `firestore:"name" json:"name"`
	Image string `firestore:"image" json:"image"`
}

// FriendRequest represents a friend request between two users
type FriendRequest struct {
	RequestID    string        `firestore:"-" json:"id"`
	From         string        `firestore:"from" json:"from"`
	To           string        `firestore:"to" json:"to"`
	Status       RequestStatus `firestore:"status" json:"status"`
	FromUserData UserSnapshot  `firestore:"fromUserData" json:"fromUserData"`
	ToUserData   UserSnapshot  `firestore:"toUserData" json:"toUserData"`
	CreatedAt    time.Time     `firestore:"createdAt" json:"createdAt"`
	AcceptedAt   *time.Time    `firestore:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	RejectedAt   *time.Time    `firestore:"rejectedAt,omitempty" json:"rejectedAt,omitempty"`
}

// PendingRequestLock marks a pair as having a pending request. Its id is the pair id.
type PendingRequestLock struct {
	RequestID string    `firestore:"requestId"`
	From      string    `firestore:"from"`
	To        string    `firestore:"to"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// Friendship represents a mutual friendship, keyed by the pair id
type Friendship struct {
	FriendshipID string                  `firestore:"-" json:"id"`
	Users        []string                `firestore:"users" json:"users"`
	UserDetails  map[string]UserSnapshot `firestore:"userDetails" json:"userDetails"`
	Nicknames    map[string]string       `firestore:"nicknames" json:"nicknames"`
	CreatedAt    time.Time               `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time               `firestore:"updatedAt" json:"updatedAt"`
}

// Other returns the member of the friendship that is not userID
func (f *Friendship) Other(userID string) string {
	for _, u := range f.Users {
		if u != userID {
			return u
		}
	}
	return ""
}

// Friend is a friendship as seen by one of its members
type Friend struct {
	FriendshipID string    `json:"friendshipId"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Image        string    `json:"image"`
	Nickname     string    `json:"nickname,omitempty"`
	Since        time.Time `json:"since"`
}

// SendFriendRequestBody represents the request body for sending friend request
type SendFriendRequestBody struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

// AcceptRejectRequestBody represents the request body for accepting/rejecting friend request
type AcceptRejectRequestBody struct {
	RequestID string `json:"requestId" binding:"required"`
}

// NicknameBody sets or clears a nickname
type NicknameBody struct {
	Nickname string `json:"nickname"`
}
