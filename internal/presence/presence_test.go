package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/friendchat-service/internal/models"
)

func receive(t *testing.T, w *Watcher) models.PresenceRecord {
	t.Helper()
	select {
	case rec := <-w.Updates():
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for presence update")
	}
	return models.PresenceRecord{}
}

func TestMemoryStore_WatchReceivesCurrentAndLater(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "alice", models.PresenceRecord{State: models.PresenceOnline, LastChanged: 1}))

	w1, err := s.Watch(ctx, "alice")
	require.NoError(t, err)
	defer w1.Close()
	w2, err := s.Watch(ctx, "alice")
	require.NoError(t, err)
	defer w2.Close()

	assert.Equal(t, models.PresenceOnline, receive(t, w1).State)
	assert.Equal(t, models.PresenceOnline, receive(t, w2).State)

	require.NoError(t, s.Set(ctx, "alice", models.PresenceRecord{State: models.PresenceOffline, LastChanged: 2}))
	assert.Equal(t, int64(2), receive(t, w1).LastChanged)
	assert.Equal(t, int64(2), receive(t, w2).LastChanged)
}

func TestWatcher_KeepsLatest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w, err := s.Watch(ctx, "bob")
	require.NoError(t, err)
	defer w.Close()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.Set(ctx, "bob", models.PresenceRecord{State: models.PresenceOnline, LastChanged: i}))
	}
	assert.Equal(t, int64(5), receive(t, w).LastChanged)
}

func TestWatcher_CloseReleases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()

	w, err := s.Watch(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, s.hub.count("carol"))

	cancel()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher not closed by context")
	}
	w.Close()
	assert.Equal(t, 0, s.hub.count("carol"))
}

func TestMemoryStore_ListOnline(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "a", models.PresenceRecord{State: models.PresenceOnline}))
	require.NoError(t, s.Set(ctx, "b", models.PresenceRecord{State: models.PresenceOffline}))

	online, err := s.ListOnline(ctx)
	require.NoError(t, err)
	assert.Len(t, online, 1)
	assert.Contains(t, online, "a")
}

func TestDisconnectRegistry_FiresOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := NewDisconnectRegistry(s)
	r.now = func() time.Time { return time.UnixMilli(42) }

	r.Register("conn-1", "dave", models.PresenceOffline)
	assert.True(t, r.Live("dave"))

	require.NoError(t, r.Fire(ctx, "conn-1"))
	rec, ok, err := s.Get(ctx, "dave")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.PresenceOffline, rec.State)
	assert.Equal(t, int64(42), rec.LastChanged)
	assert.False(t, r.Live("dave"))

	require.NoError(t, s.Set(ctx, "dave", models.PresenceRecord{State: models.PresenceOnline, LastChanged: 50}))
	require.NoError(t, r.Fire(ctx, "conn-1"))
	rec, _, _ = s.Get(ctx, "dave")
	assert.Equal(t, models.PresenceOnline, rec.State)
}

func TestDisconnectRegistry_Cancel(t *testing.T) {
	r := NewDisconnectRegistry(NewMemoryStore())
	r.Register("conn-1", "erin", models.PresenceOffline)
	assert.True(t, r.Cancel("conn-1"))
	assert.False(t, r.Cancel("conn-1"))
	assert.False(t, r.Live("erin"))
}
