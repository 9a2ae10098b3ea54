package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPreferenceRepository keeps preferences in a single Redis hash
type RedisPreferenceRepository struct {
	client *redis.Client
	key    string
}

// NewRedisPreferenceRepository creates a store under "<prefix>:preferences"
func NewRedisPreferenceRepository(client *redis.Client, prefix string) *RedisPreferenceRepository {
	return &RedisPreferenceRepository{client: client, key: prefix + ":preferences"}
}

// Get implements PreferenceStore
func (r *RedisPreferenceRepository) Get(ctx context.Context, name string) (string, bool, error) {
	value, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return value, true, nil
}

// Set implements PreferenceStore
func (r *RedisPreferenceRepository) Set(ctx context.Context, name, value string) error {
	if err := r.client.HSet(ctx, r.key, name, value).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Delete implements PreferenceStore
func (r *RedisPreferenceRepository) Delete(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, r.key, names...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}
