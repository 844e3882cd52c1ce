package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore stores state records in Redis.
// Suitable for multi-instance deployments; GETDEL gives the same one-time
// consume semantics as the in-memory store.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a new Redis-based state store.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	if len(cfg.Redis.Addresses) == 0 {
		return nil, fmt.Errorf("redis addresses not configured")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      cfg.Redis.Addresses,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MasterName: cfg.Redis.MasterName,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "oauthsvc:state:"
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}, nil
}

// Save stores a new state record with the store's TTL.
func (s *RedisStore) Save(rec *Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	key := s.keyPrefix + rec.Token
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store state: %w", err)
	}
	return nil
}

// Consume retrieves and removes a record atomically via GETDEL.
func (s *RedisStore) Consume(token string) (*Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := s.client.GetDel(ctx, s.keyPrefix+token).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to consume state: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &rec, nil
}

// SweepExpired is a no-op for Redis; key TTLs handle expiry.
func (s *RedisStore) SweepExpired(now time.Time) int {
	return 0
}

// Count returns the number of stored records.
func (s *RedisStore) Count() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Name returns the store type name.
func (s *RedisStore) Name() string {
	return "redis"
}
