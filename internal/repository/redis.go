package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisRepository offers small helpers around Redis: remembering pruned
// endpoints so a race cannot resurrect them, and the per-user unread
// counter that backs the app icon badge.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// IsEndpointSuppressed returns true if the endpoint was recently pruned
// after the push service reported it gone.
func (r *RedisRepository) IsEndpointSuppressed(ctx context.Context, endpoint string) (bool, error) {
	exists, err := r.client.Exists(ctx, "push:endpoint:suppressed:"+endpoint).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// SuppressEndpoint marks an endpoint dead for a TTL.
func (r *RedisRepository) SuppressEndpoint(ctx context.Context, endpoint string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return r.client.SetEX(ctx, "push:endpoint:suppressed:"+endpoint, "1", ttl).Err()
}

// SetUnread sets the unread counter for a user.
func (r *RedisRepository) SetUnread(ctx context.Context, userID string, count int) error {
	return r.client.Set(ctx, unreadKey(userID), count, 0).Err()
}

// IncrementUnread bumps the unread counter and returns the new value.
func (r *RedisRepository) IncrementUnread(ctx context.Context, userID string) (int, error) {
	n, err := r.client.Incr(ctx, unreadKey(userID)).Result()
	return int(n), err
}

// GetUnread reads the unread counter; a missing key reads as zero.
func (r *RedisRepository) GetUnread(ctx context.Context, userID string) (int, error) {
	n, err := r.client.Get(ctx, unreadKey(userID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// ClearUnread resets the unread counter.
func (r *RedisRepository) ClearUnread(ctx context.Context, userID string) error {
	return r.client.Del(ctx, unreadKey(userID)).Err()
}

func unreadKey(userID string) string {
	return "push:unread:" + userID
}
