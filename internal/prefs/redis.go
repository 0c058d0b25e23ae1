package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps preferences as plain string keys under a prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix defaults to
// "unical:prefs".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = "unical:prefs"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis builds a client from a redis:// URL and checks connectivity.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("prefs: invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("prefs: redis ping failed: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(k string) string {
	return strings.Join([]string{s.prefix, strings.TrimSpace(k)}, ":")
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

// ClearExcept snapshots the kept keys, deletes everything under the prefix
// and writes the snapshot back in one transaction.
func (s *RedisStore) ClearExcept(ctx context.Context, keep []string) error {
	snapshot := make(map[string]string, len(keep))
	for _, k := range keep {
		v, ok, err := s.Get(ctx, k)
		if err != nil {
			return err
		}
		if ok {
			snapshot[k] = v
		}
	}

	var all []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+":*", 100).Result()
		if err != nil {
			return err
		}
		all = append(all, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(all) > 0 {
			pipe.Del(ctx, all...)
		}
		for k, v := range snapshot {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	return err
}
