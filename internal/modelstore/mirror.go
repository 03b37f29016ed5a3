package modelstore

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rgm/pkg/redis"
)

// Mirror replicates fit versions outside the process
type Mirror interface {
	Put(ctx context.Context, rec Record) error
	Latest(ctx context.Context, sku string, typ ModelType) (Record, bool, error)
}

// RedisMirror stores msgpack-encoded versions with SETNX, so a version is never overwritten
type RedisMirror struct {
	cache   *redis.Cache
	ttl     time.Duration
	enabled bool
}

// NewRedisMirror creates a mirror on the shared redis client
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{
		cache:   redis.NewCache(client, client.Prefix()),
		ttl:     redis.TTLModel,
		enabled: client.Enabled(),
	}
}

// Put writes the version once and moves the latest pointer
func (m *RedisMirror) Put(ctx context.Context, rec Record) error {
	if !m.enabled {
		return nil
	}
	key := redis.ModelKey(rec.Key.SKU, string(rec.Key.Type), rec.Key.FittedAt)
	stored, err := m.cache.SetOnce(ctx, key, rec, m.ttl)
	if err != nil {
		return err
	}
	if !stored {
		return fmt.Errorf("%s: %w", key, ErrVersionExists)
	}

	latestKey := redis.LatestModelKey(rec.Key.SKU, string(rec.Key.Type))
	prev, ok, err := m.latestKey(ctx, rec.Key.SKU, rec.Key.Type)
	if err != nil {
		return err
	}
	if ok && !rec.Key.FittedAt.After(prev.FittedAt) {
		return nil
	}
	// TODO: pointer update is last-writer-wins across processes; move to a Lua compare-and-set
	return m.cache.SetPointer(ctx, latestKey, key, m.ttl)
}

// Latest reads the newest mirrored version
func (m *RedisMirror) Latest(ctx context.Context, sku string, typ ModelType) (Record, bool, error) {
	target, ok, err := m.cache.GetPointer(ctx, redis.LatestModelKey(sku, string(typ)))
	if err != nil || !ok {
		return Record{}, false, err
	}
	var rec Record
	found, err := m.cache.Get(ctx, target, &rec)
	if err != nil || !found {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (m *RedisMirror) latestKey(ctx context.Context, sku string, typ ModelType) (Key, bool, error) {
	rec, ok, err := m.Latest(ctx, sku, typ)
	if err != nil || !ok {
		return Key{}, false, err
	}
	return rec.Key, true, nil
}
