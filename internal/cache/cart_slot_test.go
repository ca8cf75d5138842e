package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCartSlotRoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	slot := NewRedisCartSlot(client, "shop", 0)
	ctx := context.Background()

	_, found, err := slot.Get(ctx, "cart:s1")
	require.NoError(t, err)
	require.False(t, found)

	payload := []byte(`[{"id":"1","name":"Shoe","price":"80","quantity":2}]`)
	require.NoError(t, slot.Put(ctx, "cart:s1", payload))

	got, found, err := slot.Get(ctx, "cart:s1")
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, string(payload), string(got))
	require.True(t, mr.Exists("shop:cart:s1"))
}

func TestRedisCartSlotTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	slot := NewRedisCartSlot(client, "", time.Hour)
	require.NoError(t, slot.Put(context.Background(), "cart:s2", []byte(`[]`)))
	require.Equal(t, time.Hour, mr.TTL("shop:cart:s2"))

	mr.FastForward(2 * time.Hour)
	_, found, err := slot.Get(context.Background(), "cart:s2")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisCartSlotWithoutClient(t *testing.T) {
	slot := NewRedisCartSlot(nil, "shop", 0)
	_, _, err := slot.Get(context.Background(), "cart")
	require.ErrorIs(t, err, ErrRedisDisabled)
	require.ErrorIs(t, slot.Put(context.Background(), "cart", nil), ErrRedisDisabled)
}

func TestBuildKey(t *testing.T) {
	require.Equal(t, "shop", buildKey("shop", " "))
	require.Equal(t, "shop:cart:1", buildKey("shop", "cart:1"))
	require.Equal(t, defaultPrefix, normalizePrefix("  "))
}
