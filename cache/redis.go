package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/secureflow/secureflow/scan"
)

// keyPrefix namespaces scan entries within a shared Redis instance.
const keyPrefix = "secureflow:scan:"

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379").
	URL string

	// TTL is the entry validity window. Zero means DefaultTTL.
	TTL time.Duration

	// ConnectTimeout is the maximum time to wait for the initial ping.
	ConnectTimeout time.Duration
}

// RedisStore persists entries in Redis with a server-side TTL, for
// teams sharing one cache across CI runners. Freshness is enforced by
// Redis key expiry, so an entry that can still be read is by definition
// within the window.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}

	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: redis connection failed: %w", err)
	}

	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

func redisKey(category scan.Category, target, tool string) string {
	return keyPrefix + Fingerprint(category, target, tool)
}

// Get returns the cached result if the key has not expired. Undecodable
// entries are deleted and reported as ErrCorrupt.
func (s *RedisStore) Get(ctx context.Context, category scan.Category, target, tool string) (*scan.Result, error) {
	key := redisKey(category, target, tool)
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache: redis read failed: %w", err)
	}

	var result scan.Result
	if err := json.Unmarshal(data, &result); err != nil {
		s.client.Del(ctx, key)
		return nil, ErrCorrupt
	}
	return &result, nil
}

// Put persists the result with the store TTL, replacing any prior entry.
func (s *RedisStore) Put(ctx context.Context, category scan.Category, target, tool string, result *scan.Result) error {
	if result == nil {
		return fmt.Errorf("cache: result is required")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache: encode failed: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(category, target, tool), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis write failed: %w", err)
	}
	return nil
}

// InvalidateAll removes every secureflow scan entry. Other keys in the
// instance are untouched.
func (s *RedisStore) InvalidateAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache: redis delete failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: redis scan failed: %w", err)
	}
	return nil
}

// Stats reports entry counts. All readable keys are fresh because
// expiry is server-side.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{}
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		stats.TotalEntries++
		stats.ValidEntries++
		if size, err := s.client.StrLen(ctx, iter.Val()).Result(); err == nil {
			stats.SizeBytes += size
		}
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("cache: redis scan failed: %w", err)
	}
	return stats, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
