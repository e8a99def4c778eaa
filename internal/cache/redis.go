package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"petshop-kart/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	maxJitter = 2 * time.Minute

	// versionTTL outlives any cart entry so a counter cannot reset while a
	// reader still holds an older value.
	versionTTL = 24 * time.Hour
)

// setIfVersion writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// NewRedisCache returns a cache whose entries live for ttl plus up to two
// minutes of jitter, so carts filled together do not expire together.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

type RedisCache struct {
	client  redis.Cmdable
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, customerID string) ([]model.CartLine, error) {
	data, err := r.client.Get(ctx, cacheKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []model.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if lines == nil {
		lines = []model.CartLine{}
	}

	return lines, nil
}

// Version returns the customer's invalidation counter, zero if it was never bumped.
func (r *RedisCache) Version(ctx context.Context, customerID string) (int64, error) {
	v, err := r.client.Get(ctx, versionKey(customerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version failed: %w", err)
	}
	return v, nil
}

func (r *RedisCache) Set(ctx context.Context, customerID string, version int64, lines []model.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + rand.N(maxJitter)
	keys := []string{cacheKey(customerID), versionKey(customerID)}
	written, err := setIfVersion.Run(ctx, r.client, keys, version, data, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if written == 0 {
		return ErrStaleVersion
	}
	return nil
}

// Delete drops the cached cart and bumps its version in one transaction.
func (r *RedisCache) Delete(ctx context.Context, customerID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(customerID))
		pipe.Expire(ctx, versionKey(customerID), versionTTL)
		pipe.Del(ctx, cacheKey(customerID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(customerID string) string {
	return "cart:" + customerID
}

func versionKey(customerID string) string {
	return "cart:" + customerID + ":v"
}
