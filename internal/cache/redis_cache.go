package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/chat-backend/internal/config"
	"github.com/weiawesome/chat-backend/internal/domain"
)

// RedisUserCache implements UserCache backed by Redis.
type RedisUserCache struct {
	client *redis.Client
	prefix string
}

// NewRedisUserCache connects to Redis and verifies the connection.
func NewRedisUserCache(cfg config.RedisConfig, prefix string) (*RedisUserCache, error) {
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

	return &RedisUserCache{
		client: client,
		prefix: prefix,
	}, nil
}

func (c *RedisUserCache) BuildKey(userID int64) string {
	return fmt.Sprintf("%s:user:%d", c.prefix, userID)
}

func (c *RedisUserCache) Get(ctx context.Context, key string) (*domain.User, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &user, nil
}

func (c *RedisUserCache) Set(ctx context.Context, key string, user *domain.User, ttl time.Duration) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisUserCache) Close() error {
	return c.client.Close()
}
