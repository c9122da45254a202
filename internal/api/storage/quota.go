package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Quota caps how many files a user may upload per day.
type Quota interface {
	Allow(ctx context.Context, userID uuid.UUID) (bool, error)
}

var (
	_ Quota = (*RedisQuota)(nil)
	_ Quota = NoQuota{}
)

// NoQuota allows every upload.
type NoQuota struct{}

func (NoQuota) Allow(context.Context, uuid.UUID) (bool, error) { return true, nil }

type incrFunc func(ctx context.Context, key string, window time.Duration) (int64, error)

// RedisQuota counts uploads in a per-user, per-day Redis key.
type RedisQuota struct {
	incr   incrFunc
	limit  int64
	logger *slog.Logger
	now    func() time.Time
}

func NewRedisQuota(client *redis.Client, limit int64, logger *slog.Logger) *RedisQuota {
	return &RedisQuota{
		incr: func(ctx context.Context, key string, window time.Duration) (int64, error) {
			cnt, err := client.Incr(ctx, key).Result()
			if err != nil {
				return 0, err
			}
			if cnt == 1 {
				_ = client.Expire(ctx, key, window).Err()
			}
			return cnt, nil
		},
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
}

// Allow fails open: a Redis outage never blocks uploads.
func (q *RedisQuota) Allow(ctx context.Context, userID uuid.UUID) (bool, error) {
	day := q.now().UTC().Format("20060102")
	key := fmt.Sprintf("upload_quota:%s:%s", userID, day)

	cnt, err := q.incr(ctx, key, 24*time.Hour)
	if err != nil {
		q.logger.WarnContext(ctx, "Upload quota unavailable, allowing upload", slog.Any("error", err))
		return true, nil
	}
	return cnt <= q.limit, nil
}

// NewQuota returns a Redis-backed quota, or NoQuota when Redis is not
// configured or limit is zero.
func NewQuota(client *redis.Client, limit int64, logger *slog.Logger) Quota {
	if client == nil || limit <= 0 {
		return NoQuota{}
	}
	return NewRedisQuota(client, limit, logger)
}
