package repository

import (
	"context"
	"time"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/store"
)

type ChatRepository struct {
	store store.DocumentStore
}

func NewChatRepository(s store.DocumentStore) *ChatRepository {
	return &ChatRepository{store: s}
}

// CreateChat creates the chat if it does not exist yet. It reports false
// when another caller created it first.
func (r *ChatRepository) CreateChat(ctx context.Context, chat *models.Chat) (bool, error) {
	err := r.store.Create(ctx, ChatsCollection, chat.ChatID, store.Encode(chat))
	if store.IsAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetChat retrieves a chat by ID, nil if it does not exist
func (r *ChatRepository) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	doc, err := getDoc(ctx, r.store, ChatsCollection, chatID)
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeChat(doc)
}

func (r *ChatRepository) userChatsQuery(userID string) store.Query {
	return store.NewQuery(ChatsCollection).
		Where("participants", store.OpArrayContains, userID).
		Order("lastMessageTime", store.Desc)
}

// GetUserChats retrieves the chats of userID, most recently active first
func (r *ChatRepository) GetUserChats(ctx context.Context, userID string) ([]*models.Chat, error) {
	docs, err := r.store.Query(ctx, r.userChatsQuery(userID))
	if err != nil {
		return nil, err
	}
	return DecodeChats(docs), nil
}

func (r *ChatRepository) WatchUserChats(ctx context.Context, userID string) (*store.Subscription, error) {
	return r.store.Watch(ctx, r.userChatsQuery(userID))
}

func (r *ChatRepository) NewMessageID(chatID string) string {
	return r.store.NewID(MessagesCollection(chatID))
}

func (r *ChatRepository) messagesQuery(chatID string) store.Query {
	return store.NewQuery(MessagesCollection(chatID)).Order("timestamp", store.Asc)
}

// GetMessages retrieves the messages of a chat, oldest first
func (r *ChatRepository) GetMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	docs, err := r.store.Query(ctx, r.messagesQuery(chatID))
	if err != nil {
		return nil, err
	}
	return DecodeMessages(docs), nil
}

func (r *ChatRepository) WatchMessages(ctx context.Context, chatID string) (*store.Subscription, error) {
	return r.store.Watch(ctx, r.messagesQuery(chatID))
}

// StageMessage adds the message and the chat's last message update to b
func (r *ChatRepository) StageMessage(b store.Batch, chatID string, msg *models.Message) {
	b.Create(MessagesCollection(chatID), msg.MessageID, store.Encode(msg))
	b.Update(ChatsCollection, chatID,
		store.Update{Path: "lastMessage", Value: msg.Text},
		store.Update{Path: "lastMessageTime", Value: msg.Timestamp},
	)
}

// StageDeleteMessages deletes the given messages of a chat
func (r *ChatRepository) StageDeleteMessages(b store.Batch, chatID string, messageIDs []string) {
	for _, id := range messageIDs {
		b.Delete(MessagesCollection(chatID), id)
	}
}

// StageClear deletes the given messages and resets the chat's last message
func (r *ChatRepository) StageClear(b store.Batch, chatID string, messageIDs []string, now time.Time) {
	r.StageDeleteMessages(b, chatID, messageIDs)
	b.Update(ChatsCollection, chatID,
		store.Update{Path: "lastMessage", Value: nil},
		store.Update{Path: "lastMessageTime", Value: now},
	)
}

func decodeChat(doc *store.Document) (*models.Chat, error) {
	var chat models.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, err
	}
	chat.ChatID = doc.ID
	return &chat, nil
}

func DecodeChats(docs []*store.Document) []*models.Chat {
	chats := make([]*models.Chat, 0, len(docs))
	for _, doc := range docs {
		chat, err := decodeChat(doc)
		if err != nil {
			continue
		}
		chats = append(chats, chat)
	}
	return chats
}

func DecodeMessages(docs []*store.Document) []*models.Message {
	messages := make([]*models.Message, 0, len(docs))
	for _, doc := range docs {
		var msg models.Message
		if err := doc.DataTo(&msg); err != nil {
			continue
		}
		msg.MessageID = doc.ID
		messages = append(messages, &msg)
	}
	return messages
}
