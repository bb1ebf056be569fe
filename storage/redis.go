package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepo stores entries as plain Redis strings under a key prefix, relying on Redis TTLs
// for expiry. Several processes pointed at the same prefix share one session.
type RedisRepo struct {
	client redis.UniversalClient
	prefix string
}

var _ Repo = (*RedisRepo)(nil)

// NewRedisRepo connects to a single Redis node.
func NewRedisRepo(addr, password string, db int, prefix string) *RedisRepo {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisRepoWithClient(client, prefix)
}

func NewRedisRepoWithClient(client redis.UniversalClient, prefix string) *RedisRepo {
	return &RedisRepo{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisRepo) key(k string) string {
	return r.prefix + k
}

func (r *RedisRepo) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisRepo) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, r.key(k))
	}
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks connectivity; hosts call it once at startup.
func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}
