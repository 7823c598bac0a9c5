package episode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisIndexKey = "episodes:index"

// RedisStore implements Store on Redis: one key per episode plus an
// index list ordered by insertion, with SETNX for first-write-wins.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed episode store.
//
// Args:
//   - addr: Redis address (e.g., "localhost:6379")
//   - password: Redis password (empty string if none)
//   - db: Redis database number (0-15, typically 0)
//   - ttl: episode retention; zero keeps episodes indefinitely
//
// Returns:
//   - *RedisStore or error if connection fails
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) Put(ctx context.Context, ep *Episode) error {
	key := fmt.Sprintf("episode:%s", ep.ID)

	data, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("failed to marshal episode: %w", err)
	}

	// SETNX: first write wins per episode ID
	wasSet, err := r.client.SetNX(ctx, key, data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis SETNX failed: %w", err)
	}
	if !wasSet {
		return nil // episode already recorded
	}

	// Newest first in the index list
	if err := r.client.LPush(ctx, redisIndexKey, ep.ID).Err(); err != nil {
		return fmt.Errorf("redis LPUSH failed: %w", err)
	}

	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Episode, error) {
	key := fmt.Sprintf("episode:%s", id)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // not found
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var ep Episode
	if err := json.Unmarshal([]byte(data), &ep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal episode: %w", err)
	}

	return &ep, nil
}

func (r *RedisStore) List(ctx context.Context, limit int) ([]*Episode, error) {
	end := int64(-1)
	if limit > 0 {
		end = int64(limit) - 1
	}

	ids, err := r.client.LRange(ctx, redisIndexKey, 0, end).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE failed: %w", err)
	}

	eps := make([]*Episode, 0, len(ids))
	for _, id := range ids {
		ep, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ep != nil { // expired entries stay in the index; skip them
			eps = append(eps, ep)
		}
	}
	return eps, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
