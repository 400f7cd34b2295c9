package linkcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares the cache entry between instances. Keys expire together
// with the entry's TTL.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (r *RedisStore) key(origin string) string {
	if r.keyPrefix == "" {
		return "links:" + origin
	}
	return r.keyPrefix + ":links:" + origin
}

func (r *RedisStore) Load(ctx context.Context, origin string) (*Entry, error) {
	data, err := r.client.Get(ctx, r.key(origin)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := sonic.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}

	return &entry, nil
}

func (r *RedisStore) Save(ctx context.Context, entry *Entry) error {
	data, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := r.client.Set(ctx, r.key(entry.Origin), data, entry.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Close is a no-op: the client is owned by the caller.
func (r *RedisStore) Close() error {
	return nil
}
