package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/presence"
)

func newPresence() (*PresenceService, *presence.MemoryStore, *presence.DisconnectRegistry) {
	s := presence.NewMemoryStore()
	r := presence.NewDisconnectRegistry(s)
	return NewPresenceService(s, r, 0), s, r
}

func isOnline(want bool) func(models.UserStatus) bool {
	return func(s models.UserStatus) bool { return s.IsOnline == want }
}

func TestPresence_AbruptDrop(t *testing.T) {
	ctx := context.Background()
	svc, _, registry := newPresence()

	watcher, err := svc.WatchStatus(ctx, "alice")
	require.NoError(t, err)
	defer watcher.Close()

	session := svc.Open("alice")
	require.NoError(t, session.Connected(ctx))
	waitFor(t, watcher.Updates(), isOnline(true))
	assert.True(t, registry.Live("alice"))

	require.NoError(t, session.Dropped(ctx))
	status := waitFor(t, watcher.Updates(), isOnline(false))
	require.NotNil(t, status.LastSeen)
	assert.WithinDuration(t, time.Now(), *status.LastSeen, 5*time.Second)
	assert.False(t, registry.Live("alice"))
}

func TestPresence_Reconnect(t *testing.T) {
	ctx := context.Background()
	svc, _, registry := newPresence()

	session := svc.Open("bob")
	require.NoError(t, session.Connected(ctx))
	require.NoError(t, session.Dropped(ctx))
	require.NoError(t, session.Dropped(ctx))

	require.NoError(t, session.Connected(ctx))
	require.NoError(t, session.Connected(ctx))
	status, err := svc.GetStatus(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
	assert.True(t, registry.Live("bob"))

	require.NoError(t, session.Dropped(ctx))
	status, err = svc.GetStatus(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, status.IsOnline)
	assert.False(t, registry.Live("bob"), "replaced registrations must not linger")
}

func TestPresence_GracefulClose(t *testing.T) {
	ctx := context.Background()
	svc, _, registry := newPresence()

	session := svc.Open("carol")
	require.NoError(t, session.Connected(ctx))
	session.Close(ctx)
	session.Close(ctx)

	status, err := svc.GetStatus(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, status.IsOnline)
	assert.False(t, registry.Live("carol"))

	// a later connected signal reopens the session
	require.NoError(t, session.Connected(ctx))
	status, err = svc.GetStatus(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
	assert.True(t, registry.Live("carol"))

	require.NoError(t, session.Dropped(ctx))
	status, err = svc.GetStatus(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, status.IsOnline)
}

func TestPresence_SweepSparesOtherInstances(t *testing.T) {
	ctx := context.Background()
	s := presence.NewMemoryStore()
	svc := NewPresenceService(s, presence.NewDisconnectRegistry(s), 10*time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// held by another instance that refreshed its heartbeat recently
	require.NoError(t, s.Set(ctx, "remote", models.PresenceRecord{
		State:       models.PresenceOnline,
		LastChanged: now.Add(-time.Hour).UnixMilli(),
		Heartbeat:   now.Add(-2 * time.Minute).UnixMilli(),
	}))
	// left behind by an instance that is gone
	require.NoError(t, s.Set(ctx, "gone", models.PresenceRecord{
		State:       models.PresenceOnline,
		LastChanged: now.Add(-time.Hour).UnixMilli(),
		Heartbeat:   now.Add(-30 * time.Minute).UnixMilli(),
	}))
	local := svc.Open("local")
	require.NoError(t, local.Connected(ctx))

	swept, err := svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	status, err := svc.GetStatus(ctx, "remote")
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
	status, err = svc.GetStatus(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, status.IsOnline)

	// the other instance stops refreshing while this one keeps its session
	now = now.Add(time.Hour)
	swept, err = svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	status, err = svc.GetStatus(ctx, "remote")
	require.NoError(t, err)
	assert.False(t, status.IsOnline)

	rec, _, err := s.Get(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceOnline, rec.State)
	assert.Equal(t, now.UnixMilli(), rec.Heartbeat)
	assert.Less(t, rec.LastChanged, rec.Heartbeat)
}

func TestPresence_HeartbeatStopsAfterClose(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newPresence()

	session := svc.Open("erin")
	require.NoError(t, session.Connected(ctx))
	session.Close(ctx)

	_, err := svc.SweepStale(ctx)
	require.NoError(t, err)

	rec, _, err := store.Get(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceOffline, rec.State)
	assert.Empty(t, svc.liveSessions())
}

func TestPresence_ManyWatchers(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newPresence()

	feeds := make([]*StatusFeed, 3)
	for i := range feeds {
		f, err := svc.WatchStatus(ctx, "dave")
		require.NoError(t, err)
		defer f.Close()
		feeds[i] = f
	}

	require.NoError(t, svc.Open("dave").Connected(ctx))
	for _, f := range feeds {
		status := waitFor(t, f.Updates(), isOnline(true))
		assert.Equal(t, "dave", status.UserID)
	}
}

func TestPresence_SweepStale(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newPresence()

	require.NoError(t, store.Set(ctx, "ghost", models.PresenceRecord{State: models.PresenceOnline, LastChanged: 1}))
	require.NoError(t, svc.Open("live").Connected(ctx))

	swept, err := svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	ghost, err := svc.GetStatus(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ghost.IsOnline)

	live, err := svc.GetStatus(ctx, "live")
	require.NoError(t, err)
	assert.True(t, live.IsOnline)
}
