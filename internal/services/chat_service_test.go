package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/repository"
	"github.com/yourusername/friendchat-service/internal/store"
)

var (
	alice = models.ParticipantDetail{ID: "alice", Name: "Alice", Image: "a.png"}
	bob   = models.ParticipantDetail{ID: "bob", Name: "Bob", Image: "b.png"}
	carol = models.ParticipantDetail{ID: "carol", Name: "Carol"}
)

func TestGenerateChatID(t *testing.T) {
	assert.Equal(t, GenerateChatID("alice", "bob"), GenerateChatID("bob", "alice"))
	assert.Equal(t, "alice_bob", GenerateChatID("bob", "alice"))
	assert.NotEqual(t, GenerateChatID("alice", "bob"), GenerateChatID("alice", "carol"))
}

func TestGetOrCreateChat_Idempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			current, other := alice, bob
			if i%2 == 1 {
				current, other = bob, alice
			}
			id, err := env.chats.GetOrCreateChat(ctx, current, other)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, "alice_bob", id)
	}
	assert.Equal(t, 1, env.count(t, repository.ChatsCollection))

	chats, err := env.chats.GetUserChats(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Nil(t, chats[0].LastMessage)
	assert.Equal(t, "Alice", chats[0].ParticipantDetails["alice"].Name)
}

func TestGetOrCreateChat_Self(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.chats.GetOrCreateChat(context.Background(), alice, alice)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSendAndListMessages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	chatID, err := env.chats.GetOrCreateChat(ctx, alice, bob)
	require.NoError(t, err)

	_, err = env.chats.SendMessage(ctx, chatID, "alice", "hello")
	require.NoError(t, err)
	_, err = env.chats.SendMessage(ctx, chatID, "bob", "hi there")
	require.NoError(t, err)

	messages, err := env.chats.ListMessages(ctx, chatID, "bob")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Text)
	assert.Equal(t, "Alice", messages[0].UserName)
	assert.Equal(t, "hi there", messages[1].Text)

	chats, err := env.chats.GetUserChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "hi there", *chats[0].LastMessage)
}

func TestSendMessage_Checks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	chatID, err := env.chats.GetOrCreateChat(ctx, alice, bob)
	require.NoError(t, err)

	_, err = env.chats.SendMessage(ctx, chatID, "alice", "   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = env.chats.SendMessage(ctx, chatID, "carol", "hey")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.chats.SendMessage(ctx, "nope", "alice", "hey")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.chats.ListMessages(ctx, chatID, "carol")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetUserChats_Ordering(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	first, err := env.chats.GetOrCreateChat(ctx, alice, bob)
	require.NoError(t, err)
	second, err := env.chats.GetOrCreateChat(ctx, alice, carol)
	require.NoError(t, err)

	_, err = env.chats.SendMessage(ctx, first, "bob", "latest")
	require.NoError(t, err)

	chats, err := env.chats.GetUserChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, first, chats[0].ChatID)
	assert.Equal(t, second, chats[1].ChatID)
}

func TestClearChat(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	chatID, err := env.chats.GetOrCreateChat(ctx, alice, bob)
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three", "four"} {
		_, err := env.chats.SendMessage(ctx, chatID, "alice", text)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, env.chats.ClearChat(ctx, chatID, "carol"), ErrUnauthorized)
	assert.ErrorIs(t, env.chats.ClearChat(ctx, "missing", "alice"), ErrNotFound)

	feed, err := env.chats.WatchMessages(ctx, chatID, "bob")
	require.NoError(t, err)
	defer feed.Close()
	first := <-feed.Updates()
	require.Len(t, first, 4)

	require.NoError(t, env.chats.ClearChat(ctx, chatID, "bob"))

	// the next snapshot is the cleared state, never a partial one
	next := <-feed.Updates()
	assert.Empty(t, next)

	chats, err := env.chats.GetUserChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Nil(t, chats[0].LastMessage)
	assert.Equal(t, 1, env.count(t, repository.ChatsCollection))
}

// sendingStore runs afterListing each time the messages of a chat are listed
type sendingStore struct {
	*store.MemoryStore
	afterListing func()
}

func (s *sendingStore) Query(ctx context.Context, q store.Query) ([]*store.Document, error) {
	docs, err := s.MemoryStore.Query(ctx, q)
	if err == nil && s.afterListing != nil && strings.HasSuffix(q.Collection, "/messages") {
		s.afterListing()
	}
	return docs, err
}

func newSendingChats(t *testing.T) (*ChatService, *sendingStore, string) {
	t.Helper()
	s := &sendingStore{MemoryStore: store.NewMemoryStore()}
	chats := NewChatService(s, repository.NewChatRepository(s))
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	chats.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	chatID, err := chats.GetOrCreateChat(context.Background(), alice, bob)
	require.NoError(t, err)
	for _, text := range []string{"one", "two"} {
		_, err := chats.SendMessage(context.Background(), chatID, "alice", text)
		require.NoError(t, err)
	}
	return chats, s, chatID
}

func TestClearChat_SendDuringListing(t *testing.T) {
	ctx := context.Background()
	chats, s, chatID := newSendingChats(t)

	sent := false
	s.afterListing = func() {
		if sent {
			return
		}
		sent = true
		_, err := chats.SendMessage(ctx, chatID, "bob", "late")
		require.NoError(t, err)
	}

	require.NoError(t, chats.ClearChat(ctx, chatID, "alice"))
	s.afterListing = nil

	messages, err := chats.ListMessages(ctx, chatID, "alice")
	require.NoError(t, err)
	assert.Empty(t, messages)
	chat, err := chats.chatRepo.GetChat(ctx, chatID)
	require.NoError(t, err)
	assert.Nil(t, chat.LastMessage)
}

func TestClearChat_SendsKeepLanding(t *testing.T) {
	ctx := context.Background()
	chats, s, chatID := newSendingChats(t)

	n := 0
	s.afterListing = func() {
		n++
		_, err := chats.SendMessage(ctx, chatID, "bob", fmt.Sprintf("late %d", n))
		require.NoError(t, err)
	}

	require.NoError(t, chats.ClearChat(ctx, chatID, "alice"))
	s.afterListing = nil

	// the message sent after the last listing survives and stays the last message
	messages, err := chats.ListMessages(ctx, chatID, "alice")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, fmt.Sprintf("late %d", clearAttempts), messages[0].Text)

	chat, err := chats.chatRepo.GetChat(ctx, chatID)
	require.NoError(t, err)
	require.NotNil(t, chat.LastMessage)
	assert.Equal(t, messages[0].Text, *chat.LastMessage)
}

func TestWatchUserChats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	feed, err := env.chats.WatchUserChats(ctx, "alice")
	require.NoError(t, err)
	defer feed.Close()
	assert.Empty(t, <-feed.Updates())

	chatID, err := env.chats.GetOrCreateChat(ctx, bob, alice)
	require.NoError(t, err)

	chats := waitFor(t, feed.Updates(), func(c []*models.Chat) bool { return len(c) == 1 })
	assert.Equal(t, chatID, chats[0].ChatID)
}
