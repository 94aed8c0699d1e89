package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/schoolops/campus/pkg/sdk"
)

// RedisStorage implements sdk.SessionStorage on two Redis keys,
// <prefix>:token and <prefix>:user, always written in one MULTI/EXEC.
// It lets several client processes on different hosts share one session.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Ensure RedisStorage implements sdk.SessionStorage at compile time.
var _ sdk.SessionStorage = (*RedisStorage)(nil)

// NewRedisStorage wraps client. A positive ttl expires both keys together.
func NewRedisStorage(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStorage {
	if prefix == "" {
		prefix = "campus:session"
	}
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStorage) key(slot string) string {
	return s.prefix + ":" + slot
}

func (s *RedisStorage) Load(ctx context.Context) (sdk.Slots, error) {
	values, err := s.client.MGet(ctx, s.key(sdk.CredentialSlot), s.key(sdk.ProfileSlot)).Result()
	if err != nil {
		return sdk.Slots{}, fmt.Errorf("failed to read session keys: %w", err)
	}

	var slots sdk.Slots
	if v, ok := values[0].(string); ok {
		slots.Credential = v
	}
	if v, ok := values[1].(string); ok {
		slots.Profile = []byte(v)
	}
	return slots, nil
}

func (s *RedisStorage) Save(ctx context.Context, slots sdk.Slots) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sdk.CredentialSlot), slots.Credential, s.ttl)
		pipe.Set(ctx, s.key(sdk.ProfileSlot), slots.Profile, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session keys: %w", err)
	}
	return nil
}

func (s *RedisStorage) Clear(ctx context.Context) error {
	err := s.client.Del(ctx, s.key(sdk.CredentialSlot), s.key(sdk.ProfileSlot)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to clear session keys: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
