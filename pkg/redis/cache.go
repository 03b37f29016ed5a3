package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache provides typed, msgpack-encoded caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Key not found is not an error
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := msgpack.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// SetOnce stores a value only if the key does not exist yet (SETNX).
// Returns false when the key was already present; the stored value is left untouched.
func (c *Cache) SetOnce(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("cache marshal failed: %w", err)
	}

	ok, err := c.client.Redis().SetNX(ctx, c.key(key), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache setnx failed: %w", err)
	}
	return ok, nil
}

// SetPointer stores a small pointer value (e.g. the latest version key), overwriting
func (c *Cache) SetPointer(ctx context.Context, key, target string, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Set(ctx, c.key(key), target, ttl).Err()
}

// GetPointer reads a pointer written by SetPointer
func (c *Cache) GetPointer(ctx context.Context, key string) (string, bool, error) {
	if !c.client.Enabled() {
		return "", false, nil
	}
	v, err := c.client.Redis().Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get failed: %w", err)
	}
	return v, true, nil
}

// Predefined TTLs
const (
	TTLScenario = 24 * time.Hour      // 시나리오 결과
	TTLModel    = 30 * 24 * time.Hour // fit 버전 (append-only)
)

// ModelKey is the version key of one fit: (sku, model type, fit timestamp)
func ModelKey(sku, modelType string, fittedAt time.Time) string {
	return fmt.Sprintf("model:%s:%s:%d", modelType, sku, fittedAt.UTC().UnixNano())
}

// LatestModelKey points at the newest fit version of a sku/model type
func LatestModelKey(sku, modelType string) string {
	return fmt.Sprintf("model:%s:%s:latest", modelType, sku)
}
