package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sousei-dev/push-service/internal/models"
)

const (
	sessionKeyPrefix  = "push:session:"
	userSetKeyPrefix  = "push:user-sessions:"
	sessionChanPrefix = "push:client:"
	allSessionsChan   = "push:clients:all"
)

// RedisRegistry stores sessions as hashes with a TTL refreshed by
// heartbeats, and forwards messages over pub/sub channels that connected
// pages subscribe to through the realtime gateway.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisRegistry {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &RedisRegistry{client: client, ttl: ttl, logger: logger}
}

func (r *RedisRegistry) Register(ctx context.Context, s Session) error {
	key := sessionKeyPrefix + s.ID
	fields := map[string]interface{}{
		"user_id":       s.UserID,
		"focused":       s.Focused,
		"user_agent":    s.UserAgent,
		"registered_at": s.RegisteredAt.UTC().Format(time.RFC3339),
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, r.ttl)
	pipe.SAdd(ctx, userSetKeyPrefix+s.UserID, s.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register session %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisRegistry) Heartbeat(ctx context.Context, sessionID string) error {
	ok, err := r.client.Expire(ctx, sessionKeyPrefix+sessionID, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("heartbeat session %s: %w", sessionID, err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisRegistry) SetFocus(ctx context.Context, sessionID string, focused bool) error {
	key := sessionKeyPrefix + sessionID
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("focus session %s: %w", sessionID, err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, "focused", focused)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("focus session %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisRegistry) Deregister(ctx context.Context, sessionID string) error {
	userID, err := r.client.HGet(ctx, sessionKeyPrefix+sessionID, "user_id").Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("deregister session %s: %w", sessionID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+sessionID)
	if userID != "" {
		pipe.SRem(ctx, userSetKeyPrefix+userID, sessionID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRegistry) Sessions(ctx context.Context, userID string) ([]Session, error) {
	ids, err := r.client.SMembers(ctx, userSetKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", userID, err)
	}

	sessions := make([]Session, 0, len(ids))
	for _, id := range ids {
		fields, err := r.client.HGetAll(ctx, sessionKeyPrefix+id).Result()
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		if len(fields) == 0 {
			// Expired session still in the user set; clean it up lazily.
			r.client.SRem(ctx, userSetKeyPrefix+userID, id)
			continue
		}
		registeredAt, _ := time.Parse(time.RFC3339, fields["registered_at"])
		sessions = append(sessions, Session{
			ID:           id,
			UserID:       userID,
			Focused:      fields["focused"] == "1" || fields["focused"] == "true",
			UserAgent:    fields["user_agent"],
			RegisteredAt: registeredAt,
		})
	}
	return sessions, nil
}

func (r *RedisRegistry) Post(ctx context.Context, sessionID string, msg models.ClientMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, sessionChanPrefix+sessionID, body).Err()
}

func (r *RedisRegistry) Broadcast(ctx context.Context, userID string, msg models.ClientMessage) error {
	sessions, err := r.Sessions(ctx, userID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if err := r.Post(ctx, s.ID, msg); err != nil {
			r.logger.Warn("failed to post to session",
				slog.String("session_id", s.ID), slog.Any("error", err))
		}
	}
	return nil
}

// Drain is a no-op here: messages go out over pub/sub the moment they
// are posted, so polling sessions have nothing held back for them.
func (r *RedisRegistry) Drain(ctx context.Context, sessionID string) ([]models.ClientMessage, error) {
	exists, err := r.client.Exists(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("drain session %s: %w", sessionID, err)
	}
	if exists == 0 {
		return nil, ErrSessionNotFound
	}
	return nil, nil
}

func (r *RedisRegistry) BroadcastAll(ctx context.Context, msg models.ClientMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, allSessionsChan, body).Err()
}
