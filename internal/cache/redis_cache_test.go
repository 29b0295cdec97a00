package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"combopos/backend/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisSuggestionCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisSuggestionCacheWithClient(client)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisSuggestionCacheRoundTrip(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	value := []domain.ComboSuggestion{
		{ComboID: "combo-coffee-pair", ComboName: "Đôi cà phê", Eligible: true, Description: "2x coffee"},
		{ComboID: "combo-breakfast", ComboName: "Bữa sáng", Eligible: false, Description: "1x SP001 + 1x SP002"},
	}
	require.NoError(t, c.Set(ctx, "pos:combo-suggestions:abc", value, 20*time.Second))

	got, ok, err := c.Get(ctx, "pos:combo-suggestions:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, value, got)

	ttl := mr.TTL("pos:combo-suggestions:abc")
	assert.Equal(t, 20*time.Second, ttl)

	mr.FastForward(21 * time.Second)
	_, ok, err = c.Get(ctx, "pos:combo-suggestions:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSuggestionCacheMiss(t *testing.T) {
	c, _ := setupTestRedis(t)

	got, ok, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRedisSuggestionCacheInvalidJSON(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("broken", "{not json"))

	_, ok, err := c.Get(context.Background(), "broken")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisSuggestionCacheStoresEmptyList(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "empty", nil, time.Minute))
	raw, err := mr.Get("empty")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	got, ok, err := c.Get(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestNoopSuggestionCache(t *testing.T) {
	var c SuggestionCache = NoopSuggestionCache{}
	require.NoError(t, c.Set(context.Background(), "k", []domain.ComboSuggestion{{ComboID: "x"}}, time.Minute))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
