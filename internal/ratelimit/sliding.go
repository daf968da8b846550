package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlidingWindow keeps one sorted-set member per admitted request, scored by
// its arrival in nanoseconds. Rejected requests are not recorded, so a client
// hammering a closed window cannot push its own reset further out.
type SlidingWindow struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

func (l SlidingWindow) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func nanos(t time.Time) string { return strconv.FormatInt(t.UnixNano(), 10) }

// resetAt is when the oldest entry leaves the window.
func resetAt(oldest []redis.Z, now time.Time, window time.Duration) time.Time {
	if len(oldest) == 0 {
		return now.Add(window)
	}
	return time.Unix(0, int64(oldest[0].Score)).Add(window)
}

// Allow records a request for key and reports whether it fits max per window.
func (l SlidingWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	now := l.now()
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	setKey := l.Prefix + key
	member := nanos(now) + ":" + uuid.NewString()

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", nanos(now.Add(-window)))
	pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, setKey)
	oldest := pipe.ZRangeWithScores(ctx, setKey, 0, 0)
	pipe.PExpire(ctx, setKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, now.Add(window), err
	}

	reset := resetAt(oldest.Val(), now, window)
	used := int(count.Val())
	if used <= max {
		return true, max - used, reset, nil
	}
	if err := l.Client.ZRem(ctx, setKey, member).Err(); err != nil {
		return false, 0, reset, err
	}
	return false, 0, reset, nil
}
