package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client
}

func TestRedisSinkPublish(t *testing.T) {
	client := setupTestRedis(t)
	sink := NewRedisSink(client, "test:events", 100)
	ctx := context.Background()

	ev := New("user-1", TypeRotated, 4.3, 10.0)
	require.NoError(t, sink.Publish(ctx, ev))

	entries, err := client.LRange(ctx, "test:events", 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, TypeRotated, got.Type)
	assert.InDelta(t, 4.3, got.RemainingCredits, 1e-9)
}

func TestRedisSinkTrimsToMaxLen(t *testing.T) {
	client := setupTestRedis(t)
	sink := NewRedisSink(client, "test:events", 5)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, sink.Publish(ctx, New("user-1", TypeReconciled, float64(i), 10.0)))
	}

	length, err := client.LLen(ctx, "test:events").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(5), length)

	// The newest events survive the trim.
	entries, err := client.LRange(ctx, "test:events", -1, -1).Result()
	require.NoError(t, err)
	var last Event
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &last))
	assert.InDelta(t, 11.0, last.RemainingCredits, 1e-9)
}

func TestMemorySinkBounded(t *testing.T) {
	sink := NewMemorySink(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Publish(ctx, New("user-1", TypeReconciled, float64(i), 10.0)))
	}

	got := sink.Events()
	require.Len(t, got, 3)
	assert.InDelta(t, 2.0, got[0].RemainingCredits, 1e-9)
	assert.InDelta(t, 4.0, got[2].RemainingCredits, 1e-9)
}
