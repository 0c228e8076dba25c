package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	return NewDeduperWithLogger(rdb, ttl, zap.NewNop())
}

// NewDeduperWithLogger creates a deduper with logger support
func NewDeduperWithLogger(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// FormatDedupKey formats the dedup key for a handler and id.
func FormatDedupKey(handler, id string) string {
	return fmt.Sprintf("dedup:%s:%s", handler, id)
}

// AcquireOnce tries to acquire a dedup lock for a given handler + id.
// Returns true if this is the first time within the TTL, false for a
// duplicate.
func (d *Deduper) AcquireOnce(ctx context.Context, handler, id string) bool {
	key := FormatDedupKey(handler, id)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis unavailable: do not block processing
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Debug("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.String("dedup_key", key),
		)
	}

	return ok
}

// Release drops a dedup lock so the id can be processed again, used when
// processing failed after AcquireOnce succeeded.
func (d *Deduper) Release(ctx context.Context, handler, id string) {
	if err := d.rdb.Del(ctx, FormatDedupKey(handler, id)).Err(); err != nil {
		d.logger.Warn("Redis dedup release failed",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}
