package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the counters in Redis. INCRBY gives the same
// read-modify-write atomicity as the SQL upsert.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "counter:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "counter:"}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) IncrementCounter(ctx context.Context, name string, delta int64) (int64, error) {
	value, err := s.client.IncrBy(ctx, s.key(name), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	return value, nil
}

func (s *RedisStore) GetCounter(ctx context.Context, name string) (int64, error) {
	value, err := s.client.Get(ctx, s.key(name)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	return value, nil
}

func (s *RedisStore) ResetCounters(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := s.client.Set(ctx, s.key(name), 0, 0).Err(); err != nil {
			return fmt.Errorf("reset counter %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
