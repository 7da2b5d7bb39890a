package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/repository"
	"github.com/yourusername/friendchat-service/internal/store"
)

type recordingPusher struct {
	mu     sync.Mutex
	tokens []string
	msgs   []PushMessage
	err    error
}

func (p *recordingPusher) Push(_ context.Context, token string, msg PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, token)
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type testEnv struct {
	store         *store.MemoryStore
	pusher        *recordingPusher
	directory     *DirectoryService
	friends       *FriendService
	chats         *ChatService
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	users := repository.NewUserRepository(s)
	pusher := &recordingPusher{}
	notifications := NewNotificationService(s, repository.NewNotificationRepository(s), users, pusher)
	return &testEnv{
		store:         s,
		pusher:        pusher,
		directory:     NewDirectoryService(users),
		friends:       NewFriendService(s, repository.NewFriendRepository(s), notifications),
		chats:         NewChatService(s, repository.NewChatRepository(s)),
		notifications: notifications,
	}
}

func (e *testEnv) addUser(t *testing.T, id, name string) models.UserSnapshot {
	t.Helper()
	_, err := e.directory.RecordIdentity(context.Background(), models.Identity{
		ID:          id,
		Username:    id,
		DisplayName: name,
		AvatarURL:   "https://img/" + id,
	})
	require.NoError(t, err)
	snap, err := e.directory.Snapshot(context.Background(), id)
	require.NoError(t, err)
	return snap
}

func (e *testEnv) send(t *testing.T, from, to string) string {
	t.Helper()
	id, err := e.friends.SendFriendRequest(context.Background(), from, to,
		models.UserSnapshot{Name: from}, models.UserSnapshot{Name: to})
	require.NoError(t, err)
	return id
}

func (e *testEnv) count(t *testing.T, collection string) int {
	t.Helper()
	docs, err := e.store.Query(context.Background(), store.NewQuery(collection))
	require.NoError(t, err)
	return len(docs)
}

func waitFor[T any](t *testing.T, ch <-chan T, match func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "feed closed")
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for update")
		}
	}
}
