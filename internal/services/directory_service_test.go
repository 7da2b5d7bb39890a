package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/friendchat-service/internal/models"
)

func TestRecordIdentity_KeepsCreatedAtAndToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env.directory.now = func() time.Time { return first }
	_, err := env.directory.RecordIdentity(ctx, models.Identity{ID: "alice", Username: "alice"})
	require.NoError(t, err)
	require.NoError(t, env.directory.UpdatePushToken(ctx, "alice", "tok"))

	env.directory.now = func() time.Time { return first.Add(time.Hour) }
	_, err = env.directory.RecordIdentity(ctx, models.Identity{ID: "alice", Username: "alice2", DisplayName: "Alice"})
	require.NoError(t, err)

	users, err := env.directory.ListUsers(ctx, "someone-else")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice2", users[0].Username)
	assert.Equal(t, "Alice", users[0].FullName)
	assert.True(t, first.Equal(users[0].CreatedAt))

	user, err := env.directory.getUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok", user.FCMToken)
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "me", "anon", "new"} {
		at := base.Add(time.Duration(i) * time.Minute)
		env.directory.now = func() time.Time { return at }
		identity := models.Identity{ID: id, Username: id, DisplayName: id + " name"}
		if id == "anon" {
			identity = models.Identity{ID: id}
		}
		_, err := env.directory.RecordIdentity(ctx, identity)
		require.NoError(t, err)
	}

	users, err := env.directory.ListUsers(ctx, "me")
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "new", users[0].ID)
	assert.Equal(t, "anon", users[1].ID)
	assert.Equal(t, "Anonymous", users[1].Username)
	assert.Equal(t, "Anonymous User", users[1].FullName)
	assert.Equal(t, "old", users[2].ID)
}

func TestListUsers_Limit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for i := 0; i < directoryLimit+5; i++ {
		_, err := env.directory.RecordIdentity(ctx, models.Identity{ID: time.Duration(i).String()})
		require.NoError(t, err)
	}

	users, err := env.directory.ListUsers(ctx, "nobody")
	require.NoError(t, err)
	assert.Len(t, users, directoryLimit)
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.directory.Snapshot(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	snap := env.addUser(t, "bob", "Bob Builder")
	assert.Equal(t, "Bob Builder", snap.Name)
	assert.Equal(t, "https://img/bob", snap.Image)

	detail, err := env.directory.Participant(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", detail.ID)

	assert.ErrorIs(t, env.directory.UpdatePushToken(ctx, "bob", ""), ErrInvalidArgument)
	assert.ErrorIs(t, env.directory.UpdatePushToken(ctx, "ghost", "tok"), ErrNotFound)
}
