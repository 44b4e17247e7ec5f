package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	key := DocumentKey("acme", "issuer")

	t.Run("Success_Hit", func(t *testing.T) {
		client := &mockRedis{}
		client.On("Get", ctx, key).Return(redis.NewStringResult(`{"id":"x"}`, nil))

		value, ok, err := NewRedisCache(client, time.Minute).Get(ctx, key)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"id":"x"}`, string(value))
	})

	t.Run("Success_Miss", func(t *testing.T) {
		client := &mockRedis{}
		client.On("Get", ctx, key).Return(redis.NewStringResult("", redis.Nil))

		value, ok, err := NewRedisCache(client, time.Minute).Get(ctx, key)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, value)
	})

	t.Run("Error_Get", func(t *testing.T) {
		client := &mockRedis{}
		client.On("Get", ctx, key).Return(redis.NewStringResult("", errors.New("i/o timeout")))

		_, _, err := NewRedisCache(client, time.Minute).Get(ctx, key)

		assert.Error(t, err)
	})

	t.Run("Success_SetUsesTTL", func(t *testing.T) {
		client := &mockRedis{}
		client.On("Set", ctx, key, []byte("body"), 2*time.Minute).Return(redis.NewStatusResult("OK", nil))

		err := NewRedisCache(client, 2*time.Minute).Set(ctx, key, []byte("body"))

		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Success_Invalidate", func(t *testing.T) {
		client := &mockRedis{}
		client.On("Del", ctx, []string{key, CredentialKey("acme", "issuer")}).Return(redis.NewIntResult(2, nil))

		err := NewInvalidator(NewRedisCache(client, time.Minute), discardLogger()).
			Invalidate(ctx, "ACME", "Issuer")

		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Error_Invalidate", func(t *testing.T) {
		client := &mockRedis{}
		client.On("Del", ctx, mock.Anything).Return(redis.NewIntResult(0, errors.New("connection reset")))

		err := NewInvalidator(NewRedisCache(client, time.Minute), discardLogger()).
			Invalidate(ctx, "acme", "issuer")

		assert.Error(t, err)
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
