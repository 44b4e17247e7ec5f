package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/allisson/didregistry/internal/errors"
)

const keyPrefix = "didreg:resolver:"

// Cache stores rendered artifacts. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// DocumentKey is the cache key of a document's live did.json.
func DocumentKey(orgSlug, label string) string {
	return keyPrefix + "doc:" + orgSlug + "/" + label
}

// CredentialKey is the cache key of a document's publication credential.
func CredentialKey(orgSlug, label string) string {
	return keyPrefix + "vc:" + orgSlug + "/" + label
}

// redisCommands is the subset of *redis.Client the cache needs.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache keeps artifacts in Redis with a fixed TTL.
type RedisCache struct {
	client redisCommands
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache. client is usually a *redis.Client.
func NewRedisCache(client redisCommands, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Wrap(err, "redis ping failed")
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(err, "failed to read resolver cache")
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return apperrors.Wrap(err, "failed to write resolver cache")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return apperrors.Wrap(err, "failed to delete resolver cache keys")
	}
	return nil
}

// NopCache never stores anything. It is wired when REDIS_URL is unset.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, string, []byte) error         { return nil }
func (NopCache) Delete(context.Context, ...string) error           { return nil }

// Invalidator drops the cached artifacts of a document after publish or deactivation.
type Invalidator struct {
	cache  Cache
	logger *slog.Logger
}

// NewInvalidator creates an Invalidator over cache.
func NewInvalidator(cache Cache, logger *slog.Logger) *Invalidator {
	return &Invalidator{cache: cache, logger: logger}
}

// Invalidate removes the live document and credential entries.
func (i *Invalidator) Invalidate(ctx context.Context, orgSlug, label string) error {
	orgSlug = strings.ToLower(orgSlug)
	label = strings.ToLower(label)
	if err := i.cache.Delete(ctx, DocumentKey(orgSlug, label), CredentialKey(orgSlug, label)); err != nil {
		return err
	}
	i.logger.Debug("resolver cache invalidated",
		slog.String("organization", orgSlug),
		slog.String("label", label),
	)
	return nil
}
