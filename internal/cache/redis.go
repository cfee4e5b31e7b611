package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces template entries in Redis.
const KeyPrefix = "fill-pdf:template:"

const scanBatchSize = 100

// RedisOptions selects the Redis server used by RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps entries as gob blobs with a Redis expiry equal to the
// cache TTL.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects lazily; the first command reports connection
// problems.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	log.Printf("[cache] redis store using %s db %d", opts.Addr, opts.DB)
	return &RedisStore{client: client}
}

func redisKey(key string) string {
	return KeyPrefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	e, err := decodeEntry(data)
	if err != nil {
		log.Printf("[cache] ignoring corrupt entry %s: %v", key, err)
		return nil, false, nil
	}
	return e, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Clear deletes every key under KeyPrefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, KeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
