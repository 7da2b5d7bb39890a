package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/friendchat-service/internal/models"
)

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	v := NewJWTVerifier("secret")

	token, err := v.Issue(models.Identity{ID: "alice", DisplayName: "Alice", Email: "a@example.com"}, time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.ID)
	assert.Equal(t, "Alice", identity.DisplayName)
	assert.Equal(t, "a@example.com", identity.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), identity.ExpiresAt, time.Minute)

	_, err = NewJWTVerifier("other").Verify(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired, err := v.Issue(models.Identity{ID: "alice"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, expired)
	assert.ErrorIs(t, err, ErrUnauthorized)

	anonymous, err := v.Issue(models.Identity{}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, anonymous)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

type countingVerifier struct {
	calls     int32
	expiresAt time.Time
	reject    bool
}

func (v *countingVerifier) Verify(_ context.Context, token string) (*VerifiedIdentity, error) {
	atomic.AddInt32(&v.calls, 1)
	if token == "bad" || v.reject {
		return nil, ErrUnauthorized
	}
	return &VerifiedIdentity{Identity: models.Identity{ID: token}, ExpiresAt: v.expiresAt}, nil
}

func TestIdentityCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingVerifier{expiresAt: time.Now().Add(time.Hour)}
	cache := NewIdentityCache(inner, time.Hour)
	defer cache.Close()

	for i := 0; i < 3; i++ {
		identity, err := cache.Verify(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", identity.ID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))

	_, err := cache.Verify(ctx, "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, cache.Len())
}

func TestIdentityCache_ExpiredEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	inner := &countingVerifier{expiresAt: time.Now().Add(-time.Second)}
	cache := NewIdentityCache(inner, time.Hour)
	defer cache.Close()

	_, err := cache.Verify(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	// the provider now refuses the token, so no stale entry may remain
	inner.reject = true
	_, err = cache.Verify(ctx, "alice")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, cache.Len())
}

func TestIdentityCache_Expiry(t *testing.T) {
	ctx := context.Background()
	inner := &countingVerifier{expiresAt: time.Now().Add(-time.Second)}
	cache := NewIdentityCache(inner, time.Hour)
	defer cache.Close()

	_, err := cache.Verify(ctx, "alice")
	require.NoError(t, err)
	_, err = cache.Verify(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls), "expired entries are verified again")

	cache.evictExpired(time.Now())
	assert.Equal(t, 0, cache.Len())
}
