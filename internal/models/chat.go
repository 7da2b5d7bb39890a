package models

import "time"

type ParticipantDetail struct {
	ID    string `firestore:"id" json:"id"`
	Name  string `firestore:"name" json:"name"`
	Image string `firestore:"image" json:"image"`
}

// Chat is the conversation between two users, keyed by the pair id
type Chat struct {
	ChatID             string                       `firestore:"-" json:"id"`
	Participants       []string                     `firestore:"participants" json:"participants"`
	ParticipantDetails map[string]ParticipantDetail `firestore:"participantDetails" json:"participantDetails"`
	LastMessage        *string                      `firestore:"lastMessage" json:"lastMessage"`
	LastMessageTime    time.Time                    `firestore:"lastMessageTime" json:"lastMessageTime"`
	CreatedAt          time.Time                    `firestore:"createdAt" json:"createdAt"`
}

// HasParticipant reports whether userID belongs to the chat
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is stored under chats/{chatId}/messages
type Message struct {
	MessageID string    `firestore:"-" json:"id"`
	Text      string    `firestore:"text" json:"text"`
	UserID    string    `firestore:"userId" json:"userId"`
	UserName  string    `firestore:"userName" json:"userName"`
	UserImage string    `firestore:"userImage" json:"userImage"`
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
}

type CreateChatBody struct {
	OtherUserID string `json:"otherUserId" binding:"required"`
}

type SendMessageBody struct {
	Text string `json:"text" binding:"required"`
}
