package util

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDeduper_FailsOpenWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	core, logs := observer.New(zap.WarnLevel)
	d := NewDeduperWithLogger(rdb, time.Minute, zap.New(core))

	assert.True(t, d.AcquireOnce(context.Background(), "activity", "evt-1"))
	assert.True(t, d.AcquireOnce(context.Background(), "activity", "evt-1"))
	assert.Equal(t, 2, logs.FilterMessage("Redis dedup check failed, allowing processing").Len())
}

func TestFormatKeys(t *testing.T) {
	assert.Equal(t, "dedup:member-sync:u1", FormatDedupKey("member-sync", "u1"))
	assert.Equal(t, "retry:activity:evt-1", FormatRetryKey("activity", "evt-1"))
}

// Runs against a real server when TEST_REDIS_ADDR is set.
func TestDeduperAndRetryCounter_Redis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()
	id := uuid.NewString()

	d := NewDeduper(rdb, time.Minute)
	assert.True(t, d.AcquireOnce(ctx, "test", id))
	assert.False(t, d.AcquireOnce(ctx, "test", id))
	d.Release(ctx, "test", id)
	assert.True(t, d.AcquireOnce(ctx, "test", id))

	rc := NewRetryCounter(rdb, time.Minute)
	key := FormatRetryKey("test", id)
	n, err := rc.IncrementAndGet(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = rc.IncrementAndGet(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, rc.Reset(ctx, key))
	n, err = rc.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
