package repository

import (
	"context"

	"github.com/yourusername/friendchat-service/internal/store"
)

const (
	FriendRequestsCollection  = "friendRequests"
	PendingRequestsCollection = "pendingRequests"
	FriendsCollection         = "friends"
	ChatsCollection           = "chats"
	NotificationsCollection   = "notifications"
	UsersCollection           = "users"
)

// MessagesCollection is the message subcollection of a chat
func MessagesCollection(chatID string) string {
	return ChatsCollection + "/" + chatID + "/messages"
}

// getDoc returns nil without error when the document does not exist.
func getDoc(ctx context.Context, s store.DocumentStore, collection, id string) (*store.Document, error) {
	doc, err := s.Get(ctx, collection, id)
	if store.IsNotFound(err) {
		return nil, nil
	}
	return doc, err
}
