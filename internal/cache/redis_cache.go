package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/config"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

type RedisStreamCache struct {
	client *redis.Client
	prefix string
}

func NewRedisStreamCache(cfg config.RedisConfig, prefix string) (*RedisStreamCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStreamCacheWithClient(client, prefix), nil
}

// NewRedisStreamCacheWithClient wraps an existing client; Close closes it.
func NewRedisStreamCacheWithClient(client *redis.Client, prefix string) *RedisStreamCache {
	return &RedisStreamCache{
		client: client,
		prefix: prefix,
	}
}

func (c *RedisStreamCache) key(id string) string {
	return fmt.Sprintf("%s:id:%s", c.prefix, id)
}

func (c *RedisStreamCache) Get(ctx context.Context, id string) (*domain.Stream, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var stream domain.Stream
	if err := json.Unmarshal(data, &stream); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &stream, nil
}

func (c *RedisStreamCache) Set(ctx context.Context, stream *domain.Stream, ttl time.Duration) error {
	data, err := c.encode(stream)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, c.key(stream.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

func (c *RedisStreamCache) Add(ctx context.Context, stream *domain.Stream, ttl time.Duration) error {
	data, err := c.encode(stream)
	if err != nil {
		return err
	}

	if err := c.client.SetNX(ctx, c.key(stream.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to setnx in redis: %w", err)
	}

	return nil
}

// encode strips the stream key; it is never served from cache.
func (c *RedisStreamCache) encode(stream *domain.Stream) ([]byte, error) {
	data, err := json.Marshal(stream.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache data: %w", err)
	}
	return data, nil
}

func (c *RedisStreamCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}

	return nil
}

func (c *RedisStreamCache) Close() error {
	return c.client.Close()
}
