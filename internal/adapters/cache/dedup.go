package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"unibox/platform/logger"
)

const (
	dedupKeyPrefix = "unibox:seen:"
	dedupTTL       = 24 * time.Hour
)

// RedisDedup is an advisory duplicate filter in front of the message
// ledger's unique index. Redis being down never blocks ingestion; every
// failure reads as "not seen" and the database decides.
type RedisDedup struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisDedup(client *redis.Client, appLogger *logger.Logger) *RedisDedup {
	return &RedisDedup{
		client: client,
		logger: appLogger.WithModule("dedup-cache"),
	}
}

func (d *RedisDedup) Seen(ctx context.Context, externalMessageID string) bool {
	n, err := d.client.Exists(ctx, dedupKeyPrefix+externalMessageID).Result()
	if err != nil {
		d.logger.DebugWithFields("Dedup cache lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return n > 0
}

func (d *RedisDedup) MarkSeen(ctx context.Context, externalMessageID string) {
	if err := d.client.Set(ctx, dedupKeyPrefix+externalMessageID, 1, dedupTTL).Err(); err != nil {
		d.logger.DebugWithFields("Dedup cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
