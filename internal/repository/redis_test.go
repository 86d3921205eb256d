package repository

import (
	"context"
	"testing"
	"time"

	"petsitting/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetSession", func(t *testing.T) {
		created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		session := &models.Session{ChatID: 123, Token: "token", CreatedAt: created}

		err := repo.SetSession(ctx, session)
		require.NoError(t, err)

		got, err := repo.GetSession(ctx, 123)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "token", got.Token)
		assert.True(t, created.Equal(got.CreatedAt))
		assert.Nil(t, got.ExpiresAt)
		assert.Equal(t, time.Hour, s.TTL("session:123"))
	})

	t.Run("TokenExpiryShortensTTL", func(t *testing.T) {
		exp := time.Now().Add(10 * time.Minute)
		require.NoError(t, repo.SetSession(ctx, &models.Session{ChatID: 5, Token: "t", ExpiresAt: &exp}))

		ttl := s.TTL("session:5")
		assert.LessOrEqual(t, ttl, 10*time.Minute)
		assert.Greater(t, ttl, 9*time.Minute)
	})

	t.Run("ExpiredSessionRemoved", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, &models.Session{ChatID: 6, Token: "t"}))
		exp := time.Now().Add(-time.Minute)
		require.NoError(t, repo.SetSession(ctx, &models.Session{ChatID: 6, Token: "t", ExpiresAt: &exp}))

		got, err := repo.GetSession(ctx, 6)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetNonExistentSession", func(t *testing.T) {
		got, err := repo.GetSession(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SessionExpires", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, &models.Session{ChatID: 7, Token: "t"}))
		s.FastForward(time.Hour + time.Second)
		got, err := repo.GetSession(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptValue", func(t *testing.T) {
		require.NoError(t, s.Set("session:8", "{broken"))
		_, err := repo.GetSession(ctx, 8)
		assert.Error(t, err)
	})

	t.Run("ClearSession", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, &models.Session{ChatID: 456, Token: "t"}))

		err := repo.ClearSession(ctx, 456)
		require.NoError(t, err)

		got, _ := repo.GetSession(ctx, 456)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		chatID := int64(789)
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, chatID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, chatID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		// Third request (exceeds limit)
		allowed, err = repo.CheckRateLimit(ctx, chatID, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, chatID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisSessionRepository(nil, time.Hour)
		_, err := repo.GetSession(ctx, 123)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		err := Ping(ctx, client)
		assert.NoError(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		err := Close(client)
		assert.NoError(t, err)
	})
}
