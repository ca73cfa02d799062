package flowstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const takeRetries = 3

// RedisSessionStore keeps one hash per session. Every write refreshes the
// hash expiry.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store backed by Redis.
func NewRedisSessionStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSessionStore {
	if prefix == "" {
		prefix = "sso:session:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisSessionStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisSessionStore) hashKey(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	b, err := s.client.HGet(ctx, s.hashKey(sessionID), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis hget: %w", err)
	}
	return b, true, nil
}

func (s *RedisSessionStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	hk := s.hashKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hk, key, value)
		pipe.Expire(ctx, hk, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID, key string) error {
	if err := s.client.HDel(ctx, s.hashKey(sessionID), key).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// TakeIf watches the session hash so a concurrent write between the read and
// the delete aborts the transaction.
func (s *RedisSessionStore) TakeIf(ctx context.Context, sessionID, key string, match func([]byte) bool) ([]byte, bool, error) {
	hk := s.hashKey(sessionID)

	var (
		taken []byte
		ok    bool
	)
	txf := func(tx *redis.Tx) error {
		taken, ok = nil, false
		b, err := tx.HGet(ctx, hk, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if !match(b) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, hk, key)
			return nil
		})
		if err != nil {
			return err
		}
		taken, ok = b, true
		return nil
	}

	for i := 0; i < takeRetries; i++ {
		err := s.client.Watch(ctx, txf, hk)
		if err == nil {
			return taken, ok, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, false, fmt.Errorf("redis take: %w", err)
	}
	return nil, false, fmt.Errorf("redis take: %w", redis.TxFailedErr)
}
