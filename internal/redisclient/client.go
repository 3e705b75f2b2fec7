package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "pdv:"

// releaseScript deletes a lock only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Client struct {
	rdb *redis.Client
	// lock name -> token of the lock this client holds
	tokens sync.Map
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetJSON decodes the cached value at key into dest. It reports false on a miss.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value at key with TTL
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache key %s: %w", key, err)
	}
	return c.rdb.Set(ctx, cacheKey(key), raw, ttl).Err()
}

// Delete removes cached keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = cacheKey(k)
	}
	return c.rdb.Del(ctx, full...).Err()
}

// AcquireLock acquires a distributed lock owned by this client
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	name := lockName(lockKey)
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, name, token, ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	c.tokens.Store(name, token)
	return true, nil
}

// ReleaseLock releases a lock acquired by this client. A lock that expired
// and was taken by someone else is left alone.
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	name := lockName(lockKey)
	token, ok := c.tokens.LoadAndDelete(name)
	if !ok {
		return nil
	}
	return releaseScript.Run(ctx, c.rdb, []string{name}, token).Err()
}

func cacheKey(key string) string {
	return keyPrefix + "cache:" + key
}

func lockName(key string) string {
	return keyPrefix + "lock:" + key
}
