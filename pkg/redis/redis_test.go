package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rgm/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false, KeyPrefix: "rgm"}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.Equal(t, "rgm", client.Prefix())
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test")
	cfg := ScenarioRateLimit(2, 4)

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, cfg.Limit, remaining)
}

func TestScenarioRateLimit(t *testing.T) {
	cfg := ScenarioRateLimit(2, 4)
	assert.Equal(t, "scenarios", cfg.Key)
	assert.Equal(t, 4, cfg.Limit)
	assert.Equal(t, 2*time.Second, cfg.Window)

	cfg = ScenarioRateLimit(0, 0)
	assert.Equal(t, 1, cfg.Limit)
	assert.Equal(t, time.Second, cfg.Window)
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	stored, err := cache.SetOnce(ctx, "key", "value", TTLModel)
	require.NoError(t, err)
	assert.False(t, stored)

	_, ok, err := cache.GetPointer(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModelKeys(t *testing.T) {
	fitted := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "model:elasticity:COLA-2:1772409600000000000", ModelKey("COLA-2", "elasticity", fitted))
	assert.Equal(t, "model:forecast:COLA-2:latest", LatestModelKey("COLA-2", "forecast"))
}
