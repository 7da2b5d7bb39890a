package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/friendchat-service/internal/models"
)

func TestMarkAllAsRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.send(t, "alice", "bob")
	env.send(t, "carol", "bob")
	env.send(t, "bob", "dave")

	fetched, err := env.notifications.GetUserNotifications(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, 2, UnreadCount(fetched))

	daves, err := env.notifications.GetUserNotifications(ctx, "dave")
	require.NoError(t, err)

	// another user's notifications in the list are ignored
	updated, err := env.notifications.MarkAllAsRead(ctx, "bob", append(fetched, daves...))
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	after, err := env.notifications.GetUserNotifications(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, UnreadCount(after))

	daves, err = env.notifications.GetUserNotifications(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, 1, UnreadCount(daves))

	updated, err = env.notifications.MarkAllAsRead(ctx, "bob", after)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestMarkFetchedAsRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.send(t, "alice", "bob")
	env.send(t, "carol", "bob")

	fetched, err := env.notifications.GetUserNotifications(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, fetched, 2)

	updated, err := env.notifications.MarkFetchedAsRead(ctx, "bob", []string{fetched[0].NotificationID})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	after, err := env.notifications.GetUserNotifications(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, UnreadCount(after))
}

func TestGetUserNotifications_NewestFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.send(t, "alice", "bob")
	env.send(t, "carol", "bob")

	list, err := env.notifications.GetUserNotifications(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].CreatedAt.Before(list[1].CreatedAt))
}

func TestWatchUserNotifications(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	feed, err := env.notifications.WatchUserNotifications(ctx, "bob")
	require.NoError(t, err)
	defer feed.Close()
	assert.Empty(t, <-feed.Updates())

	id := env.send(t, "alice", "bob")
	list := waitFor(t, feed.Updates(), func(n []models.Notification) bool { return len(n) == 1 })
	assert.Equal(t, id, list[0].RequestID)

	require.NoError(t, env.friends.AcceptFriendRequest(ctx, id, "bob"))
	list = waitFor(t, feed.Updates(), func(n []models.Notification) bool { return UnreadCount(n) == 0 })
	assert.Len(t, list, 1)

	feed.Close()
	assert.NoError(t, feed.Err())
}
