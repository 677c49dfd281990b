package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTripAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.AccessToken(ctx)
	require.True(t, errors.Is(err, ErrNotFound))
	_, err = s.RefreshToken(ctx)
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.SetAccessToken(ctx, "at-1"))
	require.NoError(t, s.SetRefreshToken(ctx, "rt-1"))

	at, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at-1", at)
	rt, err := s.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", rt)

	require.NoError(t, s.Clear(ctx))
	_, err = s.AccessToken(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.RefreshToken(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	// Clearing an already-empty store is fine.
	require.NoError(t, s.Clear(ctx))
}

func TestAdminTokenStore_Volatile(t *testing.T) {
	s := NewAdminTokenStore()
	assert.False(t, s.Has())
	assert.Empty(t, s.Token())
	assert.True(t, s.Expiry().IsZero())

	expiry := time.Now().Add(15 * time.Minute)
	s.Set("admin-token", expiry)
	assert.True(t, s.Has())
	assert.Equal(t, "admin-token", s.Token())
	assert.Equal(t, expiry, s.Expiry())

	s.Clear()
	assert.False(t, s.Has())
	assert.Empty(t, s.Token())
	assert.True(t, s.Expiry().IsZero())
}
