package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/repository"
	"github.com/yourusername/friendchat-service/internal/store"
	"github.com/yourusername/friendchat-service/pkg/logger"
	"github.com/yourusername/friendchat-service/pkg/utils"
)

// clearAttempts bounds how often ClearChat lists messages again after a
// concurrent send
const clearAttempts = 3

type ChatService struct {
	store    store.DocumentStore
	chatRepo *repository.ChatRepository
	now      func() time.Time
}

func NewChatService(s store.DocumentStore, chatRepo *repository.ChatRepository) *ChatService {
	return &ChatService{
		store:    s,
		chatRepo: chatRepo,
		now:      time.Now,
	}
}

// GenerateChatID returns the chat id of a pair. The argument order does not matter.
func GenerateChatID(u1, u2 string) string {
	return utils.PairID(u1, u2)
}

// GetOrCreateChat returns the id of the pair's chat, creating it on first use
func (s *ChatService) GetOrCreateChat(ctx context.Context, current, other models.ParticipantDetail) (string, error) {
	if current.ID == "" || other.ID == "" || current.ID == other.ID {
		return "", errors.Wrap(ErrInvalidArgument, "a chat needs two different users")
	}

	now := s.now()
	participants := []string{current.ID, other.ID}
	sort.Strings(participants)
	chat := &models.Chat{
		ChatID:       GenerateChatID(current.ID, other.ID),
		Participants: participants,
		ParticipantDetails: map[string]models.ParticipantDetail{
			current.ID: current,
			other.ID:   other,
		},
		LastMessageTime: now,
		CreatedAt:       now,
	}

	created, err := s.chatRepo.CreateChat(ctx, chat)
	if err != nil {
		return "", err
	}
	if created {
		logger.Log.WithField("chat_id", chat.ChatID).Info("Chat created")
	}
	return chat.ChatID, nil
}

// GetUserChats returns the chats of userID, most recently active first
func (s *ChatService) GetUserChats(ctx context.Context, userID string) ([]*models.Chat, error) {
	return s.chatRepo.GetUserChats(ctx, userID)
}

// WatchUserChats streams the chats of userID, most recently active first
func (s *ChatService) WatchUserChats(ctx context.Context, userID string) (*Feed[[]*models.Chat], error) {
	sub, err := s.chatRepo.WatchUserChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newFeed(sub, repository.DecodeChats), nil
}

// participantChat loads a chat that userID belongs to
func (s *ChatService) participantChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	chat, err := s.chatRepo.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, errors.Wrapf(ErrNotFound, "chat %s", chatID)
	}
	if !chat.HasParticipant(userID) {
		return nil, errors.Wrap(ErrUnauthorized, "not a participant of this chat")
	}
	return chat, nil
}

// SendMessage appends a message and updates the chat's last message
func (s *ChatService) SendMessage(ctx context.Context, chatID, senderID, text string) (*models.Message, error) {
	if err := utils.ValidateMessageText(text); err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	chat, err := s.participantChat(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}

	sender := chat.ParticipantDetails[senderID]
	msg := &models.Message{
		MessageID: s.chatRepo.NewMessageID(chatID),
		Text:      strings.TrimSpace(text),
		UserID:    senderID,
		UserName:  sender.Name,
		UserImage: sender.Image,
		Timestamp: s.now(),
	}

	b := s.store.Batch()
	s.chatRepo.StageMessage(b, chatID, msg)
	if err := b.Commit(ctx); err != nil {
		if store.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "chat %s", chatID)
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the messages of a chat, oldest first
func (s *ChatService) ListMessages(ctx context.Context, chatID, callerID string) ([]*models.Message, error) {
	if _, err := s.participantChat(ctx, chatID, callerID); err != nil {
		return nil, err
	}
	return s.chatRepo.GetMessages(ctx, chatID)
}

// WatchMessages streams the messages of a chat, oldest first
func (s *ChatService) WatchMessages(ctx context.Context, chatID, callerID string) (*Feed[[]*models.Message], error) {
	if _, err := s.participantChat(ctx, chatID, callerID); err != nil {
		return nil, err
	}
	sub, err := s.chatRepo.WatchMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return newFeed(sub, repository.DecodeMessages), nil
}

// ClearChat deletes every message of the chat and resets its last message
// in one batch. The chat itself remains. When lastMessageTime moves past
// every listed message, a send landed after the listing and the listing is
// taken again. If sends keep landing, only the listed messages are deleted
// and the last message is left to the newer one.
func (s *ChatService) ClearChat(ctx context.Context, chatID, callerID string) error {
	chat, err := s.participantChat(ctx, chatID, callerID)
	if err != nil {
		return err
	}

	var ids []string
	reset := false
	for attempt := 0; attempt < clearAttempts && !reset; attempt++ {
		messages, err := s.chatRepo.GetMessages(ctx, chatID)
		if err != nil {
			return err
		}
		current, err := s.chatRepo.GetChat(ctx, chatID)
		if err != nil {
			return err
		}
		if current == nil {
			return errors.Wrapf(ErrNotFound, "chat %s", chatID)
		}

		seen := chat.LastMessageTime
		ids = make([]string, 0, len(messages))
		for _, msg := range messages {
			ids = append(ids, msg.MessageID)
			if msg.Timestamp.After(seen) {
				seen = msg.Timestamp
			}
		}
		reset = !current.LastMessageTime.After(seen)
		chat = current
	}

	b := s.store.Batch()
	if reset {
		s.chatRepo.StageClear(b, chatID, ids, s.now())
	} else {
		s.chatRepo.StageDeleteMessages(b, chatID, ids)
	}
	if err := b.Commit(ctx); err != nil {
		if store.IsNotFound(err) {
			return errors.Wrapf(ErrNotFound, "chat %s", chatID)
		}
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"chat_id":  chatID,
		"messages": len(ids),
		"reset":    reset,
	}).Info("Chat cleared")
	return nil
}
